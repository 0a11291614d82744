package storage

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/thisisjab/sieve/entity"
	"github.com/thisisjab/sieve/querier"
)

type ClickHouseStorageConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

type ClickHouseStorage struct {
	conn clickhouse.Conn
	cfg  ClickHouseStorageConfig
}

func NewClickHouseStorage(cfg ClickHouseStorageConfig) (*ClickHouseStorage, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse address is required")
	}

	return &ClickHouseStorage{cfg: cfg}, nil
}

func (s *ClickHouseStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn

	return nil
}

func (s *ClickHouseStorage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

// Query runs the filtered SELECT for req.Resource. Array containment is
// rendered with hasAny/hasAll; jsonb operators are rejected.
func (s *ClickHouseStorage) Query(ctx context.Context, req querier.QueryRequest) (querier.QueryResponse, error) {
	res, err := querier.NewBuilderFor(querier.ClickHouse, req.Resource).Build(req.Query)
	if err != nil {
		return querier.QueryResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	rows, err := s.conn.Query(ctx, res.Query, res.Args...)
	if err != nil {
		return querier.QueryResponse{}, fmt.Errorf("couldn't run query: %w", err)
	}
	defer rows.Close()

	records, err := scanClickHouseRows(rows)
	if err != nil {
		return querier.QueryResponse{}, err
	}

	return querier.QueryResponse{Records: records}, nil
}

// scanClickHouseRows reads rows into records, allocating scan targets from
// the driver's column types.
func scanClickHouseRows(rows driver.Rows) ([]entity.Record, error) {
	columns := rows.Columns()
	types := rows.ColumnTypes()

	records := make([]entity.Record, 0)

	for rows.Next() {
		targets := make([]any, len(types))
		for i, ct := range types {
			targets[i] = reflect.New(ct.ScanType()).Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("couldn't scan row: %w", err)
		}

		record := make(entity.Record, len(columns))
		for i, name := range columns {
			record[name] = reflect.ValueOf(targets[i]).Elem().Interface()
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couldn't read rows: %w", err)
	}

	return records, nil
}
