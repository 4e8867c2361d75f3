package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkestra/identity/internal/identity/events"
	identityhttp "github.com/arkestra/identity/internal/identity/http"
	"github.com/arkestra/identity/internal/identity/service"
	"github.com/arkestra/identity/internal/identity/store"
	"github.com/arkestra/identity/internal/identity/store/drivers/sqlite"
	"github.com/arkestra/identity/internal/identity/uow"
	"github.com/arkestra/identity/pkg/jwtx"
	"github.com/arkestra/identity/pkg/slogx"
)

const BuildVersion = "v0.1.0"

// Application owns every long-lived component and wires them together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db           store.Store
	signer       jwtx.Signer
	verifier     jwtx.Verifier
	dispatcher   *events.Registry
	coordinators *uow.Factory

	registrationService *service.RegistrationService
	userService         *service.UserService
	sessionService      *service.SessionService
	permissionService   *service.PermissionService
	authzService        *service.AuthzService
	housekeepingService *service.HousekeepingService

	router *identityhttp.Router
	server *http.Server
}

// New builds the application from configuration. Nothing starts running
// until Run is called.
func New(cfg Config) (*Application, error) {
	app := &Application{cfg: cfg}

	app.logger = slogx.New(slogx.Config{
		Service: "identity",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := app.initTokens(); err != nil {
		return nil, fmt.Errorf("init tokens: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	app.db = db
	app.logger.Info("database initialized", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initTokens() error {
	key := []byte(app.cfg.SigningKey)

	signer, err := jwtx.NewSignerHS256(key)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	verifier, err := jwtx.NewVerifierHS256(key, app.cfg.Issuer, app.cfg.Audience)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	app.signer = signer
	app.verifier = verifier
	return nil
}

func (app *Application) initServices() {
	app.dispatcher = events.NewRegistry()
	events.RegisterDefaults(app.dispatcher)

	app.coordinators = uow.NewFactory(app.db, app.dispatcher, app.logger)

	app.registrationService = &service.RegistrationService{
		Coordinators: app.coordinators,
		Store:        app.db,
		Provisioner:  &service.RoleProvisioner{},
	}

	app.userService = &service.UserService{
		Coordinators: app.coordinators,
	}

	app.sessionService = &service.SessionService{
		Signer:     app.signer,
		Verifier:   app.verifier,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	app.permissionService = &service.PermissionService{Store: app.db}
	app.authzService = &service.AuthzService{Permissions: app.permissionService}

	app.housekeepingService = service.NewHousekeepingService(
		app.db, app.logger, app.cfg.HousekeepingInterval)
}

func (app *Application) initHTTP() {
	app.router = identityhttp.NewRouter(app.verifier, BuildVersion, app.db, app.logger)
	app.router.RegistrationService = app.registrationService
	app.router.UserService = app.userService
	app.router.SessionService = app.sessionService
	app.router.AuthzService = app.authzService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run starts the HTTP server and blocks until a shutdown signal arrives or
// the server fails.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	serverErrors := make(chan error, 1)

	go func() {
		app.logger.Info("server listening",
			"addr", app.server.Addr,
			"env", app.cfg.Env,
			"version", BuildVersion,
		)
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		app.logger.Info("shutdown started", "signal", sig.String())
		defer app.logger.Info("shutdown complete")

		return app.Shutdown()
	}
}

// Shutdown drains in-flight requests within the grace period, then releases
// resources.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.server.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}
