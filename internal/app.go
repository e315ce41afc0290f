// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"leadlens/internal/config"
	"leadlens/internal/database"
	"leadlens/internal/jobs"
	"leadlens/internal/pkg/geoip"
	"leadlens/internal/store"
)

// Application wraps cartridge.Application with leadlens-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // Queue database with migration methods
	Store     *store.Store        // Analytics store read by the dashboard
	Jobs      *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, MountAppRoutes)
}

// NewAppWithRoutes creates a new application with custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)
	geoip.InitLogger(logger)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	analyticsStore := store.For(cfg, dbManager.GetConnection(), logger)

	// With an external store the processor writes records there; the queue
	// always stays in the application database.
	var records *store.Store
	if cfg.UsesExternalStore() {
		records = analyticsStore
	}
	scheduler := jobs.NewScheduler(dbManager, records, logger, cfg)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Store:       analyticsStore,
		Jobs:        scheduler,
	}, nil
}
