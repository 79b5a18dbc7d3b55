package httpserver

import (
	"fmt"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/authz"
	"github.com/Skotchmaster/blog_guard/internal/logging"
	"github.com/Skotchmaster/blog_guard/internal/models"
	"github.com/Skotchmaster/blog_guard/internal/ratelimit"
	"github.com/Skotchmaster/blog_guard/internal/tokens"
)

const (
	ctxClaims   = "claims"
	ctxRawToken = "raw_token"
)

// Bearer authenticates requests from the Authorization header or, failing
// that, the accessToken cookie.
func Bearer(tok *tokens.Service) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ctxClaims,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + accessCookie,
		ParseTokenFunc: func(c echo.Context, auth string) (any, error) {
			claims, err := tok.Validate(auth)
			if err != nil {
				return nil, err
			}
			c.Set(ctxRawToken, auth)
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Warn("auth_failed", "status", 401, "error", err)
			return fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
		},
	})
}

func ClaimsFrom(c echo.Context) (*tokens.Claims, bool) {
	claims, ok := c.Get(ctxClaims).(*tokens.Claims)
	return claims, ok && claims != nil
}

// RequireRole lets through callers whose token role permits required.
func RequireRole(required models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return apperr.ErrUnauthorized
			}
			if !authz.Permits(claims.Role, required) {
				logging.FromContext(c.Request().Context()).Warn("access_denied",
					"status", 403, "account_id", claims.Subject, "role", claims.Role.String(), "required", required.String())
				return fmt.Errorf("%w: requires %s role", apperr.ErrForbidden, required)
			}
			return next(c)
		}
	}
}

// RateLimit admits requests through lim keyed by ratelimit.ClientID.
func RateLimit(lim *ratelimit.Limiter, sink audit.Sink) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: lim,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return ratelimit.ClientID(c.Request()), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			ctx := c.Request().Context()
			logging.FromContext(ctx).Warn("rate_limited", "status", 429, "client_id", identifier)
			audit.Emit(ctx, sink, audit.Event{Type: audit.RateLimited, ClientID: identifier})
			return apperr.ErrRateLimited
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fmt.Errorf("%w: %w", apperr.ErrInternal, err)
		},
	})
}

// AuditContext tags the request context so audit events carry the caller.
func AuditContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := audit.WithRequest(req.Context(), ratelimit.ClientID(req), req.Header.Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
