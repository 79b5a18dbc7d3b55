package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_guard/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

const uniqueViolation = "23505"

// GormRepo is the account directory backed by gorm.
type GormRepo struct {
	DB *gorm.DB
}

// accountRecord is the persisted shape of models.Account. Role is stored as
// its text form and only translated here.
type accountRecord struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	Username      string  `gorm:"size:50;uniqueIndex;not null"`
	Email         string  `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash  string  `gorm:"not null"`
	DisplayName   string  `gorm:"size:100;not null"`
	Bio           *string `gorm:"type:text"`
	AvatarURL     *string `gorm:"size:512"`
	Role          string  `gorm:"size:16;not null"`
	IsActive      bool    `gorm:"not null;index"`
	EmailVerified bool    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (accountRecord) TableName() string { return "users" }

func toRecord(a *models.Account) accountRecord {
	return accountRecord{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		PasswordHash:  a.PasswordHash,
		DisplayName:   a.DisplayName,
		Bio:           a.Bio,
		AvatarURL:     a.AvatarURL,
		Role:          a.Role.String(),
		IsActive:      a.IsActive,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (r accountRecord) toModel() (*models.Account, error) {
	role, err := models.ParseRole(r.Role)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", r.ID, err)
	}
	return &models.Account{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		DisplayName:   r.DisplayName,
		Bio:           r.Bio,
		AvatarURL:     r.AvatarURL,
		Role:          role,
		IsActive:      r.IsActive,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	// sqlite drivers without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ping checks that the database answers.
func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
