package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Registry holds the active catalog. Reloads replace the whole catalog, so a
// Fields value handed out earlier is never mutated underneath a running parse.
type Registry struct {
	path    string
	logger  *slog.Logger
	catalog atomic.Pointer[Catalog]
}

// NewRegistry loads the catalog at path.
func NewRegistry(logger *slog.Logger, path string) (*Registry, error) {
	r := &Registry{path: path, logger: logger}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewStaticRegistry wraps an already parsed catalog. Reload and Watch are no-ops.
func NewStaticRegistry(c *Catalog) *Registry {
	r := &Registry{logger: slog.New(slog.DiscardHandler)}
	r.catalog.Store(c)
	return r
}

// Resource returns the named resource from the active catalog.
func (r *Registry) Resource(name string) (Resource, bool) {
	return r.catalog.Load().Resource(name)
}

// Catalog returns the active catalog.
func (r *Registry) Catalog() *Catalog {
	return r.catalog.Load()
}

// Reload re-reads the catalog file. On failure the active catalog is kept.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	c, err := Load(r.path)
	if err != nil {
		return err
	}

	r.catalog.Store(c)
	r.logger.Info("catalog loaded.", "path", r.path, "resources", len(c.Resources))

	return nil
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
// The parent directory is watched, so editors that replace the file on save
// (new inode) are handled too.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("cannot add catalog directory to watcher: %w", err)
	}

	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				r.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				r.logger.Debug("received unhandled event from fsnotify.", "event", event.String())
				continue
			}

			if err := r.Reload(); err != nil {
				r.logger.Error("failed to reload catalog, keeping previous one.", "path", r.path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
