package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/authz"
	"github.com/Skotchmaster/blog_guard/internal/hash"
	"github.com/Skotchmaster/blog_guard/internal/logging"
	"github.com/Skotchmaster/blog_guard/internal/models"
	"github.com/Skotchmaster/blog_guard/internal/repo"
	"github.com/Skotchmaster/blog_guard/internal/tokens"
)

// Directory is the account store the auth flows read and write.
type Directory interface {
	FindActiveByLogin(ctx context.Context, identifier string) (*models.Account, error)
	FindActiveByID(ctx context.Context, id int64) (*models.Account, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, acc *models.Account) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

type Validator interface {
	Validate(i any) error
}

type AuthService struct {
	Directory Directory
	Hasher    *hash.Hasher
	Tokens    *tokens.Service
	Validator Validator
	Audit     audit.Sink
}

func NewAuthService(dir Directory, h *hash.Hasher, tok *tokens.Service, v Validator, sink audit.Sink) *AuthService {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &AuthService{Directory: dir, Hasher: h, Tokens: tok, Validator: v, Audit: sink}
}

func internal(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrInternal, err)
}

func (s *AuthService) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	if err := s.Validator.Validate(&in); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return nil, err
	}

	taken, err := s.Directory.UsernameOrEmailTaken(ctx, in.Username, in.Email)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "directory lookup failed", "error", err)
		return nil, internal(err)
	}
	if taken {
		l.Warn("register_error", "status", 409, "reason", "username or email already exists")
		return nil, apperr.ErrConflict
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	acc := &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		DisplayName:  in.DisplayName,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.Directory.Create(ctx, acc); err != nil {
		if errors.Is(err, repo.ErrAccountExists) {
			l.Warn("register_error", "status", 409, "reason", "lost race on unique index")
			return nil, apperr.ErrConflict
		}
		l.Error("register_error", "status", 500, "reason", "cannot create account", "error", err)
		return nil, internal(err)
	}

	resp, err := s.issue(acc)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot issue token", "error", err)
		return nil, err
	}

	l.Info("user_registered", "account_id", acc.ID)
	audit.Emit(ctx, s.Audit, audit.Event{Type: audit.UserRegistered, AccountID: acc.ID, Username: acc.Username})
	return resp, nil
}

// Login resolves an active account by username or email and checks the
// password. Unknown accounts and wrong passwords are indistinguishable to the
// caller, in result and in bcrypt work done.
func (s *AuthService) Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "login", in.EmailOrUsername)

	if err := s.Validator.Validate(&in); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return nil, err
	}

	acc, err := s.Directory.FindActiveByLogin(ctx, in.EmailOrUsername)
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		s.Hasher.Equalize(in.Password)
		return nil, s.rejectLogin(ctx, l, in.EmailOrUsername, "unknown or inactive account")
	case err != nil:
		l.Error("login_failed", "status", 500, "reason", "directory lookup failed", "error", err)
		return nil, internal(err)
	}

	ok, err := s.Hasher.Verify(in.Password, acc.PasswordHash)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot verify password", "error", err)
		return nil, err
	}
	if !ok {
		return nil, s.rejectLogin(ctx, l, in.EmailOrUsername, "wrong password")
	}

	resp, err := s.issue(acc)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue token", "error", err)
		return nil, err
	}

	l.Info("user_logged_in", "account_id", acc.ID)
	audit.Emit(ctx, s.Audit, audit.Event{Type: audit.UserLoggedIn, AccountID: acc.ID, Username: acc.Username})
	return resp, nil
}

func (s *AuthService) rejectLogin(ctx context.Context, l *slog.Logger, login, reason string) error {
	l.Warn("login_failed", "status", 401, "reason", reason)
	audit.Emit(ctx, s.Audit, audit.Event{Type: audit.LoginFailed, Username: login, Reason: reason})
	return apperr.ErrInvalidCredentials
}

func (s *AuthService) issue(acc *models.Account) (*models.AuthResponse, error) {
	token, exp, err := s.Tokens.Issue(acc)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: acc.Profile(), Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	acc, err := s.Directory.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			return nil, apperr.ErrNotFound
		}
		logging.FromContext(ctx).Error("get_account_error", "account_id", id, "error", err)
		return nil, internal(err)
	}
	return acc, nil
}

// CurrentUser validates token and re-resolves its subject. A token whose
// account has since been deactivated or removed no longer authenticates.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.Tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return s.activeSubject(ctx, claims.Subject)
}

func (s *AuthService) activeSubject(ctx context.Context, id int64) (*models.Account, error) {
	acc, err := s.GetAccount(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %d is not active", apperr.ErrUnauthorized, id)
	}
	return acc, err
}

func (s *AuthService) CheckPermission(held, required models.Role) bool {
	return authz.Permits(held, required)
}

func (s *AuthService) ChangePassword(ctx context.Context, accountID int64, in models.ChangePasswordInput) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "account_id", accountID)

	if err := s.Validator.Validate(&in); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return err
	}

	acc, err := s.activeSubject(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.Hasher.Verify(in.CurrentPassword, acc.PasswordHash)
	if err != nil {
		l.Error("change_password_error", "status", 500, "reason", "cannot verify password", "error", err)
		return err
	}
	if !ok {
		l.Warn("change_password_error", "status", 401, "reason", "wrong current password")
		return apperr.ErrInvalidCredentials
	}

	digest, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		l.Error("change_password_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return err
	}
	if err := s.Directory.UpdatePasswordHash(ctx, acc.ID, digest); err != nil {
		if errors.Is(err, repo.ErrAccountNotFound) {
			return fmt.Errorf("%w: account %d is not active", apperr.ErrUnauthorized, acc.ID)
		}
		l.Error("change_password_error", "status", 500, "reason", "cannot update password", "error", err)
		return internal(err)
	}

	l.Info("password_changed")
	audit.Emit(ctx, s.Audit, audit.Event{Type: audit.PasswordChanged, AccountID: acc.ID, Username: acc.Username})
	return nil
}
