package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/models"
)

// Claims is the payload of an issued bearer token.
type Claims struct {
	Subject   int64            `json:"sub"`
	Username  string           `json:"username"`
	Role      models.Role      `json:"role"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	ID        string           `json:"jti"`
}

var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *Claims) GetIssuer() (string, error)                   { return "", nil }
func (c *Claims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

func (c *Claims) GetSubject() (string, error) {
	return strconv.FormatInt(c.Subject, 10), nil
}

// Service signs and validates HS256 tokens. Its secret and expiry never change
// after New, so a single Service is shared by every request.
type Service struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(secret []byte, expiry time.Duration, opts ...Option) *Service {
	s := &Service{
		secret: append([]byte(nil), secret...),
		expiry: expiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Expiry is checked in Validate: the library rejects at now == exp.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return s
}

func (s *Service) Expiry() time.Duration { return s.expiry }

// Issue signs fresh claims for acc and returns the token with its expiry.
func (s *Service) Issue(acc *models.Account) (string, time.Time, error) {
	now := s.now()
	claims := &Claims{
		Subject:   acc.ID,
		Username:  acc.Username,
		Role:      acc.Role,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		ID:        uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign token: %w", apperr.ErrInternal, err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Validate checks the signature and expiry. It does not know about revocation
// or whether the account is still active.
func (s *Service) Validate(raw string) (*Claims, error) {
	var claims Claims
	tkn, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
	}
	if !tkn.Valid {
		return nil, fmt.Errorf("%w: token not valid", apperr.ErrUnauthorized)
	}
	if claims.Subject <= 0 || claims.ID == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, errMissingClaims)
	}
	// valid through the exp instant itself, no leeway
	if s.now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, jwt.ErrTokenExpired)
	}
	return &claims, nil
}

var errMissingClaims = errors.New("token is missing required claims")
