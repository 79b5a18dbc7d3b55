// Package ratelimit is a fixed-window, per-client request counter.
//
// A client can be admitted up to 2×max requests across a window boundary
// (max at the end of one window, max at the start of the next).
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// UnknownClient is the shared bucket for requests without X-Forwarded-For.
const UnknownClient = "unknown"

// Decision is the outcome of one Admit call.
type Decision int

const (
	Allowed Decision = iota
	Denied
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

type window struct {
	count int
	start time.Time
}

// Limiter counts requests per client in fixed windows. It is safe for
// concurrent use.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*window
	lastSweep time.Time
}

// Option configures a Limiter in New.
type Option func(*Limiter)

// WithClock replaces time.Now as the limiter's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter admitting limit requests per client in each window of length per.
// Non-positive values are clamped to 1 request and 1 second.
func New(limit int, per time.Duration, opts ...Option) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if per <= 0 {
		per = time.Second
	}
	l := &Limiter{
		max:     limit,
		window:  per,
		now:     time.Now,
		clients: make(map[string]*window),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Admit records one request from clientID at now.
func (l *Limiter) Admit(clientID string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	w, ok := l.clients[clientID]
	switch {
	case !ok:
		l.clients[clientID] = &window{count: 1, start: now}
		return Allowed
	case now.Sub(w.start) >= l.window:
		w.count = 1
		w.start = now
		return Allowed
	default:
		w.count++
		if w.count > l.max {
			return Denied
		}
		return Allowed
	}
}

// sweep drops windows that have fully elapsed. Caller holds mu.
func (l *Limiter) sweep(now time.Time) {
	for id, w := range l.clients {
		if now.Sub(w.start) >= l.window {
			delete(l.clients, id)
		}
	}
	l.lastSweep = now
}

// Allow satisfies echo's middleware.RateLimiterStore.
func (l *Limiter) Allow(identifier string) (bool, error) {
	return l.Admit(identifier, l.now()) == Allowed, nil
}

// Len reports how many client windows are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// ClientID is the first X-Forwarded-For entry, or UnknownClient.
func ClientID(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	first, _, _ := strings.Cut(xff, ",")
	if id := strings.TrimSpace(first); id != "" {
		return id
	}
	return UnknownClient
}
