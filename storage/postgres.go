package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thisisjab/sieve/entity"
	"github.com/thisisjab/sieve/querier"
)

type PostgresStorageConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConnections  int32         `yaml:"max_connections"`
	MinConnections  int32         `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// PoolOps is the part of a connection pool the storage uses.
type PoolOps interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

type PostgresStorage struct {
	pool PoolOps
	cfg  PostgresStorageConfig
}

func NewPostgresStorage(cfg PostgresStorageConfig) (*PostgresStorage, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	return &PostgresStorage{cfg: cfg}, nil
}

// NewPostgresStorageWithPool creates a storage on an already connected pool.
func NewPostgresStorageWithPool(pool PoolOps) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Connect(ctx context.Context) error {
	if s.pool != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}

	// Array and jsonb containment arguments are text literals ({a,b}) that
	// the server has to coerce to the column type.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	if s.cfg.MaxConnections > 0 {
		poolConfig.MaxConns = s.cfg.MaxConnections
	}
	if s.cfg.MinConnections > 0 {
		poolConfig.MinConns = s.cfg.MinConnections
	}
	if s.cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = s.cfg.MaxConnLifetime
	}
	if s.cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = s.cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return fmt.Errorf("pinging database: %w", err)
	}

	s.pool = pool

	return nil
}

func (s *PostgresStorage) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}

	return nil
}

// Query runs the filtered SELECT for req.Resource.
func (s *PostgresStorage) Query(ctx context.Context, req querier.QueryRequest) (querier.QueryResponse, error) {
	res, err := querier.NewBuilderFor(querier.Postgres, req.Resource).Build(req.Query)
	if err != nil {
		return querier.QueryResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	rows, err := s.pool.Query(ctx, res.Query, res.Args...)
	if err != nil {
		return querier.QueryResponse{}, fmt.Errorf("couldn't run query: %w", err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return querier.QueryResponse{}, fmt.Errorf("couldn't read rows: %w", err)
	}

	records := make([]entity.Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, entity.Record(m))
	}

	return querier.QueryResponse{Records: records}, nil
}
