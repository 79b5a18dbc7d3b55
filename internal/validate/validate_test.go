package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/models"
)

func validRegister() models.RegisterInput {
	return models.RegisterInput{
		Username:    "alice",
		Email:       "alice@example.com",
		Password:    "correct horse",
		DisplayName: "Alice",
	}
}

func TestValidate_Register(t *testing.T) {
	t.Parallel()
	v := New()

	tests := []struct {
		name    string
		mutate  func(*models.RegisterInput)
		wantErr string
	}{
		{"valid", func(*models.RegisterInput) {}, ""},
		{"short username", func(in *models.RegisterInput) { in.Username = "al" }, "username must be at least 3"},
		{"username punctuation", func(in *models.RegisterInput) { in.Username = "al ice!" }, "username must contain only letters and digits"},
		{"unicode username", func(in *models.RegisterInput) { in.Username = "алиса" }, ""},
		{"bad email", func(in *models.RegisterInput) { in.Email = "nope" }, "email must be a valid email"},
		{"short password", func(in *models.RegisterInput) { in.Password = "short" }, "password must be at least 8"},
		{"weak but long password", func(in *models.RegisterInput) { in.Password = "aaaaaaaa" }, ""},
		{"password over 72 bytes", func(in *models.RegisterInput) { in.Password = strings.Repeat("é", 40) }, "password must be at most 72 bytes"},
		{"missing display name", func(in *models.RegisterInput) { in.DisplayName = "" }, "display_name is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := validRegister()
			tc.mutate(&in)
			err := v.Validate(&in)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_ChangePassword(t *testing.T) {
	t.Parallel()
	v := New()

	err := v.Validate(&models.ChangePasswordInput{CurrentPassword: "old-password", NewPassword: "old-password"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "new_password must differ")

	require.NoError(t, v.Validate(&models.ChangePasswordInput{CurrentPassword: "old-password", NewPassword: "new-password"}))
}

func TestValidate_Login(t *testing.T) {
	t.Parallel()
	v := New()
	err := v.Validate(&models.LoginInput{})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "email_or_username is required")
	assert.Contains(t, err.Error(), "password is required")
}

func TestValidate_NotAStruct(t *testing.T) {
	t.Parallel()
	err := New().Validate("string")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
