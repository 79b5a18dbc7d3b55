package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_guard/internal/models"
)

func (r *GormRepo) first(ctx context.Context, query any, args ...any) (*models.Account, error) {
	var rec accountRecord
	if err := r.DB.WithContext(ctx).Where(query, args...).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return rec.toModel()
}

// FindActiveByLogin resolves an active account whose username or email equals identifier.
func (r *GormRepo) FindActiveByLogin(ctx context.Context, identifier string) (*models.Account, error) {
	return r.first(ctx, "(username = ? OR email = ?) AND is_active = ?", identifier, identifier, true)
}

func (r *GormRepo) FindActiveByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.first(ctx, "id = ? AND is_active = ?", id, true)
}

// UsernameOrEmailTaken checks active and inactive accounts alike.
func (r *GormRepo) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&accountRecord{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts acc and fills in its generated id and timestamps. The unique
// indexes are the real guard against duplicates; a violation is reported as
// ErrAccountExists.
func (r *GormRepo) Create(ctx context.Context, acc *models.Account) error {
	rec := toRecord(acc)
	if err := r.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", ErrAccountExists, err)
		}
		return err
	}
	acc.ID = rec.ID
	acc.CreatedAt = rec.CreatedAt
	acc.UpdatedAt = rec.UpdatedAt
	return nil
}

func (r *GormRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res := r.DB.WithContext(ctx).Model(&accountRecord{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetActive flips the active flag. Role and activation changes are
// administrative actions outside the auth flow.
func (r *GormRepo) SetActive(ctx context.Context, id int64, active bool) error {
	res := r.DB.WithContext(ctx).Model(&accountRecord{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
