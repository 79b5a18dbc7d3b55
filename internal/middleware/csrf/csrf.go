// Package csrf rejects state-changing requests whose Origin (or, failing
// that, Referer) is not on the trusted host list.
package csrf

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/logging"
	"github.com/Skotchmaster/blog_guard/internal/ratelimit"
)

type Config struct {
	// TrustedHosts entries starting with "." match any subdomain; others
	// match the hostname exactly, ignoring case and port.
	TrustedHosts []string

	SkipPaths []string

	Audit audit.Sink
}

func DefaultConfig() Config {
	return Config{
		TrustedHosts: []string{"localhost", ".your-domain.com"},
	}
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.TrustedHosts == nil {
		cfg.TrustedHosts = DefaultConfig().TrustedHosts
	}
	trusted := make([]string, 0, len(cfg.TrustedHosts))
	for _, h := range cfg.TrustedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			trusted = append(trusted, h)
		}
	}

	skip := map[string]struct{}{}
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if _, ok := skip[req.URL.Path]; ok || isSafe(req.Method) {
				return next(c)
			}

			if reason := checkOrigin(req, trusted); reason != "" {
				ctx := req.Context()
				logging.FromContext(ctx).Warn("csrf_rejected", "status", http.StatusForbidden, "reason", reason)
				audit.Emit(ctx, cfg.Audit, audit.Event{
					Type:      audit.CSRFRejected,
					ClientID:  ratelimit.ClientID(req),
					RequestID: req.Header.Get(echo.HeaderXRequestID),
					Reason:    reason,
				})
				return fmt.Errorf("%w: %s", apperr.ErrForbidden, reason)
			}
			return next(c)
		}
	}
}

func isSafe(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// checkOrigin returns an empty string when the request comes from a trusted
// host, otherwise why it was rejected. Referer is consulted only when Origin
// is absent.
func checkOrigin(r *http.Request, trusted []string) string {
	header, source := "Origin", r.Header.Get("Origin")
	if source == "" {
		header, source = "Referer", r.Header.Get("Referer")
	}
	if source == "" {
		return "missing origin"
	}

	u, err := url.Parse(source)
	if err != nil || u.Hostname() == "" {
		return "malformed " + strings.ToLower(header)
	}
	if !Trusted(u.Hostname(), trusted) {
		return "untrusted " + strings.ToLower(header)
	}
	return ""
}

// Trusted reports whether host matches an entry of trusted. Entries are
// expected in lower case.
func Trusted(host string, trusted []string) bool {
	host = strings.ToLower(host)
	for _, t := range trusted {
		if strings.HasPrefix(t, ".") {
			if strings.HasSuffix(host, t) {
				return true
			}
			continue
		}
		if host == t {
			return true
		}
	}
	return false
}
