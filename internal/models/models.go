package models

import (
	"fmt"
	"time"
)

// Role is a closed, totally ordered set: User < Author < Admin.
type Role int

const (
	RoleUser Role = iota
	RoleAuthor
	RoleAdmin
)

var roleNames = [...]string{
	RoleUser:   "user",
	RoleAuthor: "author",
	RoleAdmin:  "admin",
}

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleUser, RoleAuthor, RoleAdmin}
}

func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole converts the text form back into a Role.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return RoleUser, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Account is the identity record owned by the account directory.
type Account struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	DisplayName   string    `json:"display_name"`
	Bio           *string   `json:"bio,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	Role          Role      `json:"role"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Profile is the public projection of an Account.
type Profile struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	Bio           *string   `json:"bio,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func (a *Account) Profile() Profile {
	return Profile{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		Bio:           a.Bio,
		AvatarURL:     a.AvatarURL,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

// AuthResponse is returned on successful login or registration.
type AuthResponse struct {
	User      Profile   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RegisterInput struct {
	Username    string `json:"username"     validate:"required,min=3,max=50,alphanumunicode"`
	Email       string `json:"email"        validate:"required,email,max=255"`
	Password    string `json:"password"     validate:"required,min=8,max=72,bcryptmax"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

type LoginInput struct {
	EmailOrUsername string `json:"email_or_username" validate:"required,max=255"`
	Password        string `json:"password"          validate:"required,max=72,bcryptmax"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72,bcryptmax"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72,bcryptmax,nefield=CurrentPassword"`
}
