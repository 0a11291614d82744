package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Catalog is the reloadable resource catalog.
type Catalog interface {
	Reload() error
	Watch(ctx context.Context) error
}

// catalogManager keeps the catalog fresh, either by watching its file, by
// reloading it periodically, or both.
type catalogManager struct {
	catalog  Catalog
	logger   *slog.Logger
	watch    bool
	interval time.Duration
}

func newCatalogManager(logger *slog.Logger, catalog Catalog, watch bool, interval time.Duration) *catalogManager {
	return &catalogManager{
		catalog:  catalog,
		logger:   logger,
		watch:    watch,
		interval: interval,
	}
}

func (cm *catalogManager) run(ctx context.Context) {
	var wg sync.WaitGroup

	if cm.watch {
		wg.Go(func() {
			if err := cm.catalog.Watch(ctx); err != nil {
				cm.logger.Error("catalog watcher stopped.", "error", err)
			}
		})
	}

	var ticker *time.Ticker

	if cm.interval > 0 {
		ticker = time.NewTicker(cm.interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		// A nil ticker has no channel, so a never ready one stands in for it.
		case <-func() <-chan time.Time {
			if ticker != nil {
				return ticker.C
			}
			return make(chan time.Time) // blocks forever if ticker is disabled
		}():
			if err := cm.catalog.Reload(); err != nil {
				cm.logger.Error("failed to reload catalog, keeping previous one.", "error", err)
			}
		}
	}
}
