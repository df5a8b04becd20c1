// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "instrument-service/docs"
	"instrument-service/internal/config"
	"instrument-service/internal/database"
	"instrument-service/internal/driver"
	"instrument-service/internal/events"
	"instrument-service/internal/handler"
	"instrument-service/internal/repository"
	"instrument-service/internal/routes"
	"instrument-service/internal/service"
	"instrument-service/internal/units"
	"instrument-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	bus      *events.Bus

	// Services
	instrumentService *service.InstrumentService
	exchangeService   *service.ExchangeService
	discoveryService  *service.DiscoveryService
	wsHandler         *handler.WebSocketHandler

	exchangeRepo   repository.ExchangeRepository
	converter      *units.Converter
	driverRegistry *driver.Registry

	// Background loops
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// @title Instrument Service API
// @version 1.0.0
// @description Line-oriented access to serial, TCP and USB laboratory instruments

// @contact.name Instrument Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app, err := NewApplication(os.Getenv("INSTRUMENT_SERVICE_CONFIG"))
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "instrument-service")
	serviceLogger.LogServiceStart(cfg.App.Version, len(cfg.Instruments))

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeRepositories(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	app.initializeDriverRegistry()

	if err := app.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()
	return app, nil
}

// initializeRepositories opens postgres when enabled and falls back to the
// in-memory exchange log otherwise
func (app *Application) initializeRepositories() error {
	if !app.config.Database.Enabled {
		app.exchangeRepo = repository.NewMemoryRepository(app.config.Database.MemoryLimit, app.logger)
		app.logger.Info("Exchanges kept in memory",
			zap.Int("limit", app.config.Database.MemoryLimit),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(app.ctx, app.config.Database.ConnectTimeout)
	defer cancel()

	db, err := database.Open(ctx, app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.AutoMigrate {
		if err := database.NewMigrator(db, app.logger).Up(); err != nil {
			db.Close()
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.exchangeRepo = repository.NewExchangeRepository(db, app.logger)
	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeDriverRegistry sets up the instrument kinds
func (app *Application) initializeDriverRegistry() {
	app.converter = units.NewConverter()
	app.driverRegistry = driver.NewRegistry(app.converter, app.logger)
	app.driverRegistry.SetDefaults(app.config.Serial.Settings())

	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	app.bus = events.NewBus(app.logger)

	app.exchangeService = service.NewExchangeService(app.exchangeRepo, app.bus, app.logger)

	instrumentService, err := service.NewInstrumentService(
		app.config,
		app.driverRegistry,
		app.converter,
		app.exchangeService,
		app.bus,
		app.logger,
	)
	if err != nil {
		return err
	}
	app.instrumentService = instrumentService

	app.discoveryService = service.NewDiscoveryService(app.driverRegistry, app.config, app.logger)

	app.wsHandler = handler.NewWebSocketHandler(
		app.instrumentService,
		app.bus,
		app.config.Server.AllowedOrigins,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	var db handler.DatabaseChecker
	if app.database != nil {
		db = app.database
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		db,
		app.instrumentService,
		app.exchangeService,
		app.discoveryService,
		app.converter,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts the event bus and the periodic loops
func (app *Application) startBackgroundServices() {
	app.goLoop(app.bus.Run)
	app.goLoop(app.wsHandler.Run)
	app.goLoop(app.startHealthMonitoring)
	app.goLoop(app.startCleanupService)

	app.logger.Info("Background services started")
}

func (app *Application) goLoop(fn func(ctx context.Context)) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		fn(app.ctx)
	}()
}

// connectInstruments opens every auto_connect instrument
func (app *Application) connectInstruments() {
	ctx, cancel := context.WithTimeout(app.ctx, app.config.Monitor.OperationTimeout)
	defer cancel()

	failures := app.instrumentService.ConnectAll(ctx)
	for name, err := range failures {
		app.logger.Warn("Instrument auto-connect failed",
			zap.String("instrument", name),
			zap.Error(err),
		)
	}
}

// startHealthMonitoring pings connected instruments periodically
func (app *Application) startHealthMonitoring(ctx context.Context) {
	if app.config.Monitor.HealthInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.Monitor.HealthInterval)
	defer ticker.Stop()

	app.logger.Info("Instrument health monitoring started",
		zap.Duration("interval", app.config.Monitor.HealthInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			summary := app.instrumentService.HealthCheck(checkCtx)
			cancel()

			if summary.Errored > 0 {
				app.logger.Warn("Instrument health check found errors",
					zap.Int("errored", summary.Errored),
					zap.Int("connected", summary.Connected),
				)
			}
		}
	}
}

// startCleanupService deletes exchanges past the retention window
func (app *Application) startCleanupService(ctx context.Context) {
	if app.config.Monitor.CleanupInterval <= 0 || app.config.Monitor.ExchangeRetention <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.Monitor.CleanupInterval)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started",
		zap.Duration("retention", app.config.Monitor.ExchangeRetention),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			deleted, err := app.instrumentService.PurgeExchanges(cleanupCtx, app.config.Monitor.ExchangeRetention)
			cancel()

			if err != nil {
				app.logger.Error("Failed to cleanup old exchanges", zap.Error(err))
			} else if deleted > 0 {
				app.logger.Info("Cleaned up old exchanges", zap.Int64("deleted", deleted))
			}
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "instrument-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.instrumentService.Shutdown(ctx); err != nil {
		app.logger.Error("Instrument shutdown error", zap.Error(err))
	}

	app.cancel()
	app.wg.Wait()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start runs the server until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.connectInstruments()

	app.waitForShutdown()
	return nil
}
