package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thisisjab/sieve/api"
	"github.com/thisisjab/sieve/engine"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/observer"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
	"github.com/thisisjab/sieve/storage"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	API     api.Config    `yaml:"api"`
	Filter  FilterConfig  `yaml:"filter"`
	Hooks   []HookConfig  `yaml:"hooks"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type CatalogConfig struct {
	Path           string        `yaml:"path"`
	Watch          bool          `yaml:"watch"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type FilterConfig struct {
	IgnoreMissingFields bool `yaml:"ignore_missing_fields"`
	MaxLength           int  `yaml:"max_length"`
}

type HookConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

// Load reads the YAML config file at path.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config file: %w", err)
	}

	return cfg, nil
}

func (cfg Config) Parse() (*engine.Config, *slog.Logger, error) {
	logger, err := parseLoggerConfig(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create logger: %w", err)
	}

	st, dialect, err := parseStorageConfig(cfg.Storage)
	if err != nil {
		return nil, logger, fmt.Errorf("cannot create storage: %w", err)
	}

	if cfg.Catalog.Path == "" {
		return nil, logger, errors.New("catalog path is required")
	}

	registry, err := schema.NewRegistry(logger, cfg.Catalog.Path)
	if err != nil {
		return nil, logger, fmt.Errorf("cannot load catalog: %w", err)
	}

	if cfg.Filter.MaxLength < 0 {
		return nil, logger, errors.New("filter max length cannot be negative")
	}

	hooks := make([]filter.Hook, len(cfg.Hooks))
	for i, hc := range cfg.Hooks {
		h, err := parseHookConfig(logger, hc)
		if err != nil {
			return nil, logger, fmt.Errorf("cannot create hook `%s`: %w", hc.Name, err)
		}
		hooks[i] = h
	}

	server, err := api.NewServer(cfg.API, logger, api.Services{
		Catalog:             registry,
		Storage:             st,
		Dialect:             dialect,
		Hooks:               hooks,
		IgnoreMissingFields: cfg.Filter.IgnoreMissingFields,
		MaxFilterLength:     cfg.Filter.MaxLength,
	})
	if err != nil {
		return nil, logger, fmt.Errorf("cannot create api server: %w", err)
	}

	return &engine.Config{
		Storage:               st,
		Catalog:               registry,
		Server:                server,
		WatchCatalog:          cfg.Catalog.Watch,
		CatalogReloadInterval: cfg.Catalog.ReloadInterval,
	}, logger, nil
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var logger *slog.Logger
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w *os.File
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	logger = slog.New(handler)

	return logger, nil
}

func parseStorageConfig(cfg StorageConfig) (engine.Storage, querier.Dialect, error) {
	switch cfg.Type {
	case "clickhouse":
		var clickHouseConfig storage.ClickHouseStorageConfig

		if err := remarshal(cfg.Config, &clickHouseConfig); err != nil {
			return nil, nil, fmt.Errorf("cannot parse clickhouse storage config: %w", err)
		}

		s, err := storage.NewClickHouseStorage(clickHouseConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot create clickhouse storage: %w", err)
		}

		return s, querier.ClickHouse, nil

	case "postgres":
		var postgresConfig storage.PostgresStorageConfig

		if err := remarshal(cfg.Config, &postgresConfig); err != nil {
			return nil, nil, fmt.Errorf("cannot parse postgres storage config: %w", err)
		}

		s, err := storage.NewPostgresStorage(postgresConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot create postgres storage: %w", err)
		}

		return s, querier.Postgres, nil

	default:
		return nil, nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

func parseHookConfig(logger *slog.Logger, cfg HookConfig) (filter.Hook, error) {
	switch cfg.Type {
	case "logging":
		return observer.NewLogging(logger.With("hook", cfg.Name)), nil

	case "lua":
		var luaConfig observer.LuaHookConfig
		err := remarshal(cfg.Config, &luaConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create lua hook: %w", err)
		}

		h, err := observer.NewLuaHook(luaConfig, logger.With("hook", cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("cannot create lua hook: %w", err)
		}

		return h, nil

	default:
		return nil, fmt.Errorf("invalid hook type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	// Marshal the input to YAML
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Unmarshal the YAML into the output
	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
