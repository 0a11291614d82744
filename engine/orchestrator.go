package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Server is the API front end run by the engine.
type Server interface {
	Serve(ctx context.Context) error
}

type Config struct {
	Storage Storage
	Catalog Catalog
	Server  Server

	// WatchCatalog reloads the catalog when its file changes.
	WatchCatalog bool

	// CatalogReloadInterval reloads the catalog periodically.
	// Setting this to zero disables periodic reloads.
	CatalogReloadInterval time.Duration
}

// Engine orchestrates different components such as the storage, the catalog and the API server.
type Engine struct {
	cfg            Config
	logger         *slog.Logger
	storageManager *storageManager
	catalogManager *catalogManager
}

func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:            cfg,
		logger:         logger,
		storageManager: newStorageManager(logger, cfg.Storage),
		catalogManager: newCatalogManager(logger, cfg.Catalog, cfg.WatchCatalog, cfg.CatalogReloadInterval),
	}, nil
}

func (c Config) validate() error {
	if c.Storage == nil {
		return errors.New("no storage is configured")
	}

	if c.Catalog == nil {
		return errors.New("no catalog is configured")
	}

	if c.Server == nil {
		return errors.New("no api server is configured")
	}

	if c.CatalogReloadInterval < 0 {
		return errors.New("catalog reload interval cannot be negative")
	}

	return nil
}

// Run blocks until ctx is cancelled or the server fails.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.storageManager.open(ctx); err != nil {
		return fmt.Errorf("cannot connect to storage: %w", err)
	}
	defer e.storageManager.close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var serveErr error

	// Catalog manager handles file watching and periodic reloads.
	wg.Go(func() { e.catalogManager.run(ctx) })
	// A server failure stops everything else.
	wg.Go(func() {
		serveErr = e.cfg.Server.Serve(ctx)
		cancel()
	})

	<-ctx.Done()
	wg.Wait()

	return serveErr
}
