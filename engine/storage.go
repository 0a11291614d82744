package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/thisisjab/sieve/querier"
)

// Storage represents a storage interface for the engine.
type Storage interface {
	querier.Querier
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// storageManager owns the storage connection for the lifetime of the engine.
type storageManager struct {
	storage Storage
	logger  *slog.Logger
}

func newStorageManager(logger *slog.Logger, storage Storage) *storageManager {
	return &storageManager{
		logger:  logger,
		storage: storage,
	}
}

func (sm *storageManager) open(ctx context.Context) error {
	if err := sm.storage.Connect(ctx); err != nil {
		return err
	}

	sm.logger.Info("connected to storage.")
	return nil
}

// close runs even after ctx is cancelled, bounded by its own timeout.
func (sm *storageManager) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := sm.storage.Close(ctx); err != nil {
		sm.logger.Error("failed to close storage.", "error", err)
		return
	}

	sm.logger.Info("storage closed.")
}
