package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authify/internal/auth/http"
	"github.com/aussiebroadwan/authify/internal/auth/notify"
	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/authify/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	serviceName = "authify"
)

// migratingStore is a store driver that owns its schema.
type migratingStore interface {
	store.Store
	ApplyMigrations() error
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db            store.Store
	keyManager    *jwtx.KeyManager
	dispatcher    *notify.Dispatcher
	traceShutdown func(context.Context) error

	// Services
	authService         *service.AuthService
	tfaService          *service.TFAService
	rolesService        *service.RolesService
	housekeepingService *service.HousekeepingService
	keyRotationService  *service.KeyRotationService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	traceShutdown, err := SetupTracing(ctx, cfg, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	app.traceShutdown = traceShutdown

	// Initialize database first (required for persistent keys)
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	// Initialize JWT key manager (after database for persistent mode)
	keyManager, err := InitAuthKeys(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initNotifications(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	if err := app.rolesService.EnsureDefaults(ctx); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"key_storage", app.cfg.KeyStorageMode,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Let queued emails go out before the process exits
	if err := app.dispatcher.Close(ctx); err != nil {
		app.logger.Warn("pending notifications dropped", "error", err)
	}

	if err := app.traceShutdown(ctx); err != nil {
		app.logger.Warn("error flushing traces", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  migratingStore
		err error
	)
	switch app.cfg.StoreDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initNotifications picks the mail sink. Without an SMTP host, messages are
// written to the log so local development still gets the links.
func (app *Application) initNotifications() error {
	var sink notify.Sink = notify.LogSink{}
	if app.cfg.SMTP.Host != "" {
		smtpSink, err := notify.NewSMTPSink(notify.SMTPConfig{
			Host:     app.cfg.SMTP.Host,
			Port:     app.cfg.SMTP.Port,
			Username: app.cfg.SMTP.Username,
			Password: app.cfg.SMTP.Password,
			From:     app.cfg.SMTP.From,
		})
		if err != nil {
			return fmt.Errorf("failed to configure smtp: %w", err)
		}
		sink = smtpSink
		app.logger.Info("smtp delivery enabled", "host", app.cfg.SMTP.Host, "port", app.cfg.SMTP.Port)
	} else {
		app.logger.Warn("AUTH_SMTP_HOST not set, emails will be logged instead of sent")
	}

	app.dispatcher = notify.NewDispatcher(sink, notify.DispatcherOptions{Timeout: app.cfg.MailTimeout})
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	tokens := &service.TokenService{
		Store:               app.db,
		KeyManager:          app.keyManager,
		RotateRefreshTokens: app.cfg.RotateRefreshTokens,
	}
	app.tfaService = &service.TFAService{
		Store:  app.db,
		Issuer: app.cfg.AppName,
	}

	app.authService = &service.AuthService{
		Store:   app.db,
		Tokens:  tokens,
		TFA:     app.tfaService,
		OneTime: &service.OneTimeTokenService{Store: app.db},
		Notifier: &notify.Mailer{
			Outbox:      app.dispatcher,
			AppName:     app.cfg.AppName,
			FrontendURL: app.cfg.FrontendURL,
		},
		AdminEmails: app.cfg.AdminEmails,
	}

	app.rolesService = &service.RolesService{Store: app.db}
	app.keyRotationService = &service.KeyRotationService{KeyManager: app.keyManager}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.keyManager,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.CookieSecure,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.TFAService = app.tfaService
	router.KeyRotationService = app.keyRotationService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
