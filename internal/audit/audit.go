// Package audit publishes security events (logins, registrations, rejected
// requests) to external sinks.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/blog_guard/internal/logging"
)

type EventType string

const (
	UserRegistered  EventType = "user_registered"
	UserLoggedIn    EventType = "user_logged_in"
	LoginFailed     EventType = "login_failed"
	PasswordChanged EventType = "password_changed"
	RateLimited     EventType = "rate_limited"
	CSRFRejected    EventType = "csrf_rejected"
)

type Event struct {
	Type      EventType `json:"type"`
	AccountID int64     `json:"account_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Time      time.Time `json:"time"`
}

// Key partitions events by account when known, else by client.
func (e Event) Key() string {
	if e.Username != "" {
		return e.Username
	}
	return e.ClientID
}

type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type metaKey struct{}

type requestMeta struct {
	clientID  string
	requestID string
}

// WithRequest records who is calling so events emitted deeper in the call
// chain can be attributed without threading the request through.
func WithRequest(ctx context.Context, clientID, requestID string) context.Context {
	return context.WithValue(ctx, metaKey{}, requestMeta{clientID: clientID, requestID: requestID})
}

// Emit stamps and publishes ev. Sink failures are logged and never returned:
// auditing must not change the outcome of the request that produced it.
func Emit(ctx context.Context, s Sink, ev Event) {
	if s == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if m, ok := ctx.Value(metaKey{}).(requestMeta); ok {
		if ev.ClientID == "" {
			ev.ClientID = m.clientID
		}
		if ev.RequestID == "" {
			ev.RequestID = m.requestID
		}
	}
	if err := s.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("audit publish failed", "event", string(ev.Type), "error", err)
	}
}
