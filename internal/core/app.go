// Package core wires the shared application resources together: config,
// settings database, download pool, headless driver, registries, cache and
// the task runner. The server and the CLI both start from an App.
package core

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pkathuria/comicden/internal/cache"
	"github.com/pkathuria/comicden/internal/config"
	"github.com/pkathuria/comicden/internal/db"
	"github.com/pkathuria/comicden/internal/fetch"
	"github.com/pkathuria/comicden/internal/jsrender"
	"github.com/pkathuria/comicden/internal/plugins"
	"github.com/pkathuria/comicden/internal/provider"
	"github.com/pkathuria/comicden/internal/provider/sites"
	"github.com/pkathuria/comicden/internal/saver"
	"github.com/pkathuria/comicden/internal/store"
	"github.com/pkathuria/comicden/internal/tasks"
	"github.com/pkathuria/comicden/internal/websocket"
)

// App holds the core components shared between the server and the CLI.
// Heavy singletons (the download pool, the headless browser) are owned here
// and handed to providers through Deps, never reached as globals.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Store  *store.Store

	Pool   *fetch.Pool
	Driver jsrender.Driver

	Hub    *websocket.Hub
	Runner *tasks.Runner

	Providers *provider.Registry
	Savers    *saver.Registry
	Plugins   *plugins.Loader

	Cache *cache.Manager
}

// New loads configuration and builds the full App.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds an App from an already-loaded configuration; tests
// use it to point everything at temp directories.
func NewWithConfig(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	app := &App{
		Config: cfg,
		DB:     database,
		Store:  store.New(database),
		Pool: fetch.NewPool(fetch.Options{
			Concurrency:    cfg.Fetch.Concurrency,
			Retries:        cfg.Fetch.Retries,
			ConnectTimeout: time.Duration(cfg.Fetch.ConnectTimeout) * time.Second,
			ReadTimeout:    time.Duration(cfg.Fetch.ReadTimeout) * time.Second,
		}),
		Driver:    jsrender.NewChromeDriver(),
		Hub:       hub,
		Runner:    tasks.NewRunner(hub),
		Providers: provider.NewRegistry(),
		Savers:    saver.NewRegistry(),
		Plugins:   plugins.NewLoader(cfg.Plugins.Path),
		Cache:     cache.New(cfg.Cache.Path),
	}

	sites.RegisterAll(app.Providers)
	saver.RegisterAll(app.Savers)
	app.Plugins.Load(app.Providers)

	log.Info().
		Int("providers", len(app.Providers.IDs())).
		Int("savers", len(app.Savers.All())).
		Msg("core application setup complete")
	return app, nil
}

// ProviderDeps are the shared resources provider factories receive.
func (a *App) ProviderDeps() provider.Deps {
	return provider.Deps{
		Pool:    a.Pool,
		Driver:  a.Driver,
		LogoDir: a.Config.Logos.Path,
	}
}

// Snapshot reads the current settings snapshot.
func (a *App) Snapshot() (*store.Snapshot, error) {
	return a.Store.GetSnapshot()
}

// Close releases the app's resources. Safe to call once at shutdown.
func (a *App) Close() {
	if a.Driver != nil {
		if err := a.Driver.Close(); err != nil {
			log.Warn().Err(err).Msg("closing headless driver")
		}
	}
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
