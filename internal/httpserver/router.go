package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/blog_guard/internal/middleware/logging"
	"github.com/Skotchmaster/blog_guard/internal/middleware/secure"
	"github.com/Skotchmaster/blog_guard/internal/models"
	"github.com/Skotchmaster/blog_guard/internal/ratelimit"
	"github.com/Skotchmaster/blog_guard/internal/tokens"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Tokens      *tokens.Service
	Limiter     *ratelimit.Limiter
	Audit       audit.Sink
	Logger      *slog.Logger

	// Ready reports whether dependencies (the database) answer.
	Ready func(ctx context.Context) error

	TrustedHosts           []string
	CSRFEnabled            bool
	SecurityHeadersEnabled bool
}

func Register(e *echo.Echo, d *Deps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(secure.RequestID())
	if d.SecurityHeadersEnabled {
		e.Use(secure.Headers())
	}
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(AuditContext())
	e.Use(RateLimit(d.Limiter, d.Audit))
	if d.CSRFEnabled {
		e.Use(csrf.Middleware(csrf.Config{TrustedHosts: d.TrustedHosts, Audit: d.Audit}))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			d.Logger.Error("readiness_failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, apperr.ErrorResponse{Error: "database unavailable", Code: "NOT_READY"})
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.LogOut)

	bearer := Bearer(d.Tokens)
	auth.GET("/me", d.AuthHandler.Me, bearer)
	auth.PUT("/password", d.AuthHandler.ChangePassword, bearer)

	admin := api.Group("/admin", bearer, RequireRole(models.RoleAdmin))
	admin.GET("/accounts/:id", d.AuthHandler.GetAccount)

	authors := api.Group("/authors", bearer, RequireRole(models.RoleAuthor))
	authors.GET("/permissions", d.AuthHandler.Permissions)
}
