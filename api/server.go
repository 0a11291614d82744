package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
)

// Catalog resolves a resource by the name used in URLs.
type Catalog interface {
	Resource(name string) (schema.Resource, bool)
}

// Services are the dependencies of the handlers.
type Services struct {
	Catalog Catalog
	Storage querier.Querier

	// Dialect renders the compile endpoint's SQL. Defaults to Postgres.
	Dialect querier.Dialect

	// Hooks run on every compiled filter.
	Hooks []filter.Hook

	// IgnoreMissingFields is the default when a request does not choose.
	IgnoreMissingFields bool

	// MaxFilterLength bounds the filter string. Zero means unbounded.
	MaxFilterLength int
}

type server struct {
	cfg      Config
	logger   *slog.Logger
	services Services
}

func NewServer(cfg Config, logger *slog.Logger, services Services) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if services.Catalog == nil {
		return nil, errors.New("api server requires a catalog")
	}

	if services.Storage == nil {
		return nil, errors.New("api server requires a storage")
	}

	if services.Dialect == nil {
		services.Dialect = querier.Postgres
	}

	return &server{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		services: services,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)
	mux.HandleFunc("GET /api/resources/{resource}", s.listResourceHandler)
	mux.HandleFunc("POST /api/resources/{resource}/compile", s.compileFilterHandler)

	return s.recoverPanicMiddleware(s.requestIDMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux))))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
