package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_guard/internal/audit"
	"github.com/Skotchmaster/blog_guard/internal/config"
	"github.com/Skotchmaster/blog_guard/internal/db"
	"github.com/Skotchmaster/blog_guard/internal/hash"
	"github.com/Skotchmaster/blog_guard/internal/httpserver"
	"github.com/Skotchmaster/blog_guard/internal/logging"
	"github.com/Skotchmaster/blog_guard/internal/ratelimit"
	"github.com/Skotchmaster/blog_guard/internal/repo"
	"github.com/Skotchmaster/blog_guard/internal/service"
	"github.com/Skotchmaster/blog_guard/internal/tokens"
	"github.com/Skotchmaster/blog_guard/internal/validate"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "blog_guard")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.UsesDefaultSecret() {
		logger.Warn("JWT_SECRET is the built-in default; set it before deploying")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	gdb, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		logger.Error("db open", "error", err)
		os.Exit(1)
	}
	if err := repo.Migrate(ctx, gdb); err != nil {
		cancel()
		logger.Error("db migrate", "error", err)
		os.Exit(1)
	}
	cancel()

	sink := buildAuditSink(cfg, logger)

	accounts := &repo.GormRepo{DB: gdb}
	svc := service.NewAuthService(
		accounts,
		hash.New(hash.DefaultCost),
		tokens.New(cfg.JWTSecret, cfg.JWTExpiry),
		validate.New(),
		sink,
	)

	e := echo.New()
	e.HideBanner = true
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:            &httpserver.AuthHTTP{Svc: svc},
		Tokens:                 svc.Tokens,
		Limiter:                ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow),
		Audit:                  sink,
		Logger:                 logger,
		Ready:                  accounts.Ping,
		TrustedHosts:           cfg.TrustedHosts,
		CSRFEnabled:            cfg.CSRFEnabled,
		SecurityHeadersEnabled: cfg.SecurityHeadersEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if err := sink.Close(); err != nil {
		logger.Error("close audit sinks", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("close db", "error", err)
	}

	logger.Info("stopped")
}

// buildAuditSink wires whichever event sinks are configured. An unreachable
// Elasticsearch is logged and skipped rather than blocking startup.
func buildAuditSink(cfg config.Config, logger *slog.Logger) audit.Sink {
	var sinks audit.Multi

	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
		logger.Info("audit sink enabled", "sink", "kafka", "topic", cfg.KafkaTopic)
	}

	if cfg.ESURL != "" {
		es, err := audit.NewElasticSink(cfg.ESURL, cfg.ESUser, cfg.ESPassword, cfg.ESIndex)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = es.Ping(ctx)
			cancel()
		}
		if err != nil {
			logger.Warn("audit sink disabled", "sink", "elasticsearch", "error", err)
		} else {
			sinks = append(sinks, es)
			logger.Info("audit sink enabled", "sink", "elasticsearch", "index", cfg.ESIndex)
		}
	}

	if len(sinks) == 0 {
		return audit.Nop{}
	}
	return sinks
}
