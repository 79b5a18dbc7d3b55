package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
)

// DefaultCost is bcrypt's default work factor.
const DefaultCost = bcrypt.DefaultCost

// Hasher wraps bcrypt at a fixed cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// New returns a Hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Equalize compares against this so unknown users cost a full bcrypt round.
	dummy, err := bcrypt.GenerateFromPassword([]byte("blog_guard-timing-equalizer"), cost)
	if err != nil {
		panic(fmt.Sprintf("hash: cannot build dummy digest: %v", err))
	}
	return &Hasher{cost: cost, dummy: dummy}
}

func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %w", apperr.ErrInternal, err)
	}
	return string(b), nil
}

// Verify reports whether password matches digest. A mismatch is not an error;
// only a malformed digest is.
func (h *Hasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: verify password: %w", apperr.ErrInternal, err)
	}
}

// Equalize burns the same CPU as a real Verify and always reports no match.
func (h *Hasher) Equalize(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
