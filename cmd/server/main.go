// Package main is the entry point for the FirmDesk API server.
// It loads configuration, connects to PostgreSQL, applies migrations, and
// serves the JSON API until interrupted.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avissapr/firmdesk/internal/config"
	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/handlers"
	"github.com/avissapr/firmdesk/internal/metrics"
	"github.com/avissapr/firmdesk/internal/middleware"
	"github.com/avissapr/firmdesk/internal/repository"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("firmdesk: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := security.NewLogger()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = database.Connect(connectCtx, cfg.Database)
	cancel()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.Database.URL); err != nil {
		return err
	}

	securityConfig := &cfg.Security
	rec := metrics.New(prometheus.DefaultRegisterer)

	securityMiddleware := middleware.NewSecurityMiddleware(logger, securityConfig)
	defer securityMiddleware.Stop()

	// Requests per minute per user (or per IP before login)
	apiLimiter := security.PerMinute(securityConfig.RateLimitAPI)
	defer apiLimiter.Stop()
	statusChangeLimiter := security.PerMinute(securityConfig.RateLimitStatusChange)
	defer statusChangeLimiter.Stop()

	scope := services.NewAccessScope(logger, rec)
	txRunner := repository.NewTxRunner()
	workflow := services.NewWorkflowService(txRunner, scope, security.NewValidationService(securityConfig), logger, rec)
	team := services.NewTeamService(txRunner, scope, logger)
	users := repository.Default().Users()
	authService := services.NewAuthService(users, securityConfig)

	app := fiber.New(fiber.Config{
		AppName:      "FirmDesk",
		ErrorHandler: handlers.ErrorHandler(logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 << 20,
	})

	// Panic recovery (should be first)
	app.Use(recover.New())
	app.Use(securityMiddleware.RequestID())
	// Outside RequestLogger, so it sees the status the error handler wrote
	app.Use(rec.Instrument())
	app.Use(securityMiddleware.RequestLogger())
	app.Use(securityMiddleware.SecureHeaders())

	app.Get("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !database.IsConnected(c.UserContext()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "database unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Session expiration MUST be set here (not in middleware)
	store := session.New(session.Config{
		Expiration:     securityConfig.SessionTimeout,
		KeyLookup:      "cookie:" + securityConfig.SessionCookieName,
		CookieSecure:   securityConfig.SessionSecure,
		CookieHTTPOnly: securityConfig.SessionHTTPOnly,
		CookieSameSite: securityConfig.SessionSameSite,
		CookiePath:     "/",
	})

	handlers.Register(app, handlers.Deps{
		Store:               store,
		Users:               users,
		Auth:                authService,
		Workflow:            workflow,
		Team:                team,
		Security:            securityMiddleware,
		Logger:              logger,
		APILimiter:          apiLimiter,
		StatusChangeLimiter: statusChangeLimiter,
	})

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "tls", cfg.TLSCertFile != "")
		if cfg.TLSCertFile != "" {
			listenErr <- app.ListenTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Critical("server stopped", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Error("shutdown", err)
		return err
	}
	return nil
}
