package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/hash"
	"github.com/Skotchmaster/blog_guard/internal/models"
	"github.com/Skotchmaster/blog_guard/internal/repo"
	"github.com/Skotchmaster/blog_guard/internal/repo/repotest"
	"github.com/Skotchmaster/blog_guard/internal/tokens"
	"github.com/Skotchmaster/blog_guard/internal/validate"
)

var testSecret = []byte("test-secret")

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindActiveByLogin(ctx context.Context, identifier string) (*models.Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockDirectory) FindActiveByID(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockDirectory) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) Create(ctx context.Context, acc *models.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *MockDirectory) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Publish(ctx context.Context, ev audit.Event) error {
	return m.Called(ev.Type).Error(0)
}

func (m *MockSink) Close() error { return nil }

func newService(dir Directory, sink audit.Sink) *AuthService {
	return NewAuthService(dir, hash.New(bcrypt.MinCost), tokens.New(testSecret, time.Hour), validate.New(), sink)
}

type fixture struct {
	svc  *AuthService
	db   *gorm.DB
	repo *repo.GormRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := repotest.NewDB(t)
	r := &repo.GormRepo{DB: db}
	return fixture{svc: newService(r, nil), db: db, repo: r}
}

func (f fixture) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("users").Count(&n).Error)
	return n
}

func aliceInput() models.RegisterInput {
	return models.RegisterInput{
		Username:    "alice",
		Email:       "alice@example.com",
		Password:    "correct horse battery",
		DisplayName: "Alice",
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	assert.NotZero(t, resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, models.RoleUser, resp.User.Role)
	assert.False(t, resp.User.EmailVerified)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := f.svc.Tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)

	stored, err := f.repo.FindActiveByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", stored.PasswordHash)
	ok, err := f.svc.Hasher.Verify("correct horse battery", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_DuplicateIsConflictWithoutMutation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	before := f.countUsers(t)

	sameName := aliceInput()
	sameName.Email = "other@example.com"
	_, err = f.svc.Register(ctx, sameName)
	require.ErrorIs(t, err, apperr.ErrConflict)

	sameEmail := aliceInput()
	sameEmail.Username = "alicia"
	_, err = f.svc.Register(ctx, sameEmail)
	require.ErrorIs(t, err, apperr.ErrConflict)

	assert.Equal(t, before, f.countUsers(t))
}

func TestRegister_ValidationFailsBeforeDirectory(t *testing.T) {
	t.Parallel()
	dir := &MockDirectory{}
	svc := newService(dir, nil)

	in := aliceInput()
	in.Email = "not-an-email"
	_, err := svc.Register(context.Background(), in)
	require.ErrorIs(t, err, apperr.ErrValidation)
	dir.AssertNotCalled(t, "UsernameOrEmailTaken", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_LostRaceIsConflict(t *testing.T) {
	t.Parallel()
	dir := &MockDirectory{}
	dir.On("UsernameOrEmailTaken", mock.Anything, "alice", "alice@example.com").Return(false, nil)
	dir.On("Create", mock.Anything, mock.AnythingOfType("*models.Account")).
		Return(errors.Join(repo.ErrAccountExists, errors.New("UNIQUE constraint failed")))

	_, err := newService(dir, nil).Register(context.Background(), aliceInput())
	require.ErrorIs(t, err, apperr.ErrConflict)
	dir.AssertExpectations(t)
}

func TestRegister_DirectoryFailureIsInternal(t *testing.T) {
	t.Parallel()
	dir := &MockDirectory{}
	dir.On("UsernameOrEmailTaken", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection reset"))

	_, err := newService(dir, nil).Register(context.Background(), aliceInput())
	require.ErrorIs(t, err, apperr.ErrInternal)
	dir.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	for _, login := range []string{"alice", "alice@example.com"} {
		resp, err := f.svc.Login(ctx, models.LoginInput{EmailOrUsername: login, Password: "correct horse battery"})
		require.NoError(t, err, login)
		assert.Equal(t, reg.User.ID, resp.User.ID)
		assert.NotEqual(t, reg.Token, resp.Token)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, models.RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "bobs password", DisplayName: "Bob",
	})
	require.NoError(t, err)
	require.NoError(t, f.repo.SetActive(ctx, reg.User.ID, false))

	_, wrongPassword := f.svc.Login(ctx, models.LoginInput{EmailOrUsername: "bob", Password: "not bobs password"})
	_, unknown := f.svc.Login(ctx, models.LoginInput{EmailOrUsername: "mallory", Password: "whatever1"})
	_, inactive := f.svc.Login(ctx, models.LoginInput{EmailOrUsername: "alice", Password: "correct horse battery"})

	for _, err := range []error{wrongPassword, unknown, inactive} {
		require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), err.Error())
		assert.Equal(t, apperr.ToHTTP(wrongPassword).Message, apperr.ToHTTP(err).Message)
	}
}

func TestLogin_DirectoryFailureIsInternal(t *testing.T) {
	t.Parallel()
	dir := &MockDirectory{}
	dir.On("FindActiveByLogin", mock.Anything, "alice").Return(nil, errors.New("timeout"))

	_, err := newService(dir, nil).Login(context.Background(), models.LoginInput{EmailOrUsername: "alice", Password: "x"})
	require.ErrorIs(t, err, apperr.ErrInternal)
	assert.NotErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestLogin_AuditEvents(t *testing.T) {
	t.Parallel()
	h := hash.New(bcrypt.MinCost)
	digest, err := h.Hash("right password")
	require.NoError(t, err)
	acc := &models.Account{ID: 3, Username: "carol", PasswordHash: digest, Role: models.RoleAuthor, IsActive: true}

	dir := &MockDirectory{}
	dir.On("FindActiveByLogin", mock.Anything, "carol").Return(acc, nil)
	dir.On("FindActiveByLogin", mock.Anything, "nobody").Return(nil, repo.ErrAccountNotFound)

	sink := &MockSink{}
	sink.On("Publish", audit.UserLoggedIn).Return(nil).Once()
	sink.On("Publish", audit.LoginFailed).Return(errors.New("sink down")).Twice()

	svc := NewAuthService(dir, h, tokens.New(testSecret, time.Hour), validate.New(), sink)
	ctx := context.Background()

	_, err = svc.Login(ctx, models.LoginInput{EmailOrUsername: "carol", Password: "right password"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, models.LoginInput{EmailOrUsername: "carol", Password: "wrong password"})
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = svc.Login(ctx, models.LoginInput{EmailOrUsername: "nobody", Password: "wrong password"})
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	sink.AssertExpectations(t)
}

func TestGetAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	acc, err := f.svc.GetAccount(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)

	_, err = f.svc.GetAccount(ctx, reg.User.ID+1)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.repo.SetActive(ctx, reg.User.ID, false))
	_, err = f.svc.GetAccount(ctx, reg.User.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	acc, err := f.svc.CurrentUser(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, acc.ID)

	_, err = f.svc.CurrentUser(ctx, "garbage")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, f.repo.SetActive(ctx, reg.User.ID, false))
	_, err = f.svc.CurrentUser(ctx, reg.Token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	id := reg.User.ID

	err = f.svc.ChangePassword(ctx, id, models.ChangePasswordInput{CurrentPassword: "wrong one", NewPassword: "brand new pass"})
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, id, models.ChangePasswordInput{CurrentPassword: "correct horse battery", NewPassword: "short"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.svc.ChangePassword(ctx, id, models.ChangePasswordInput{
		CurrentPassword: "correct horse battery",
		NewPassword:     "brand new pass",
	}))

	_, err = f.svc.Login(ctx, models.LoginInput{EmailOrUsername: "alice", Password: "correct horse battery"})
	require.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, models.LoginInput{EmailOrUsername: "alice", Password: "brand new pass"})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, id+99, models.ChangePasswordInput{CurrentPassword: "brand new pass", NewPassword: "another pass"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCheckPermission(t *testing.T) {
	t.Parallel()
	svc := &AuthService{}
	assert.True(t, svc.CheckPermission(models.RoleAdmin, models.RoleAuthor))
	assert.True(t, svc.CheckPermission(models.RoleUser, models.RoleUser))
	assert.False(t, svc.CheckPermission(models.RoleAuthor, models.RoleAdmin))
	assert.False(t, svc.CheckPermission(models.RoleUser, models.RoleAuthor))
}
