package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/filter/ast"
	"github.com/thisisjab/sieve/observer"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
)

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "path to the catalog file")
	resourceName := flag.String("resource", "", "resource the filter applies to")
	input := flag.String("filter", "", "filter string, e.g. (a:=:1,b:>:2)|c:in:x y")
	dialectName := flag.String("dialect", "postgres", "sql dialect: postgres or clickhouse")
	ignoreMissingFields := flag.Bool("ignore-missing-fields", false, "drop terms on unknown fields")
	verbose := flag.Bool("v", false, "log every applied predicate")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	)

	if err := run(logger, *catalogPath, *resourceName, *input, *dialectName, *ignoreMissingFields); err != nil {
		logger.Error("cannot compile filter.", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, catalogPath, resourceName, input, dialectName string, ignoreMissingFields bool) error {
	catalog, err := schema.Load(catalogPath)
	if err != nil {
		return err
	}

	resource, ok := catalog.Resource(resourceName)
	if !ok {
		return fmt.Errorf("resource `%s` not found in catalog", resourceName)
	}

	dialect, err := querier.DialectByName(dialectName)
	if err != nil {
		return err
	}

	c, err := filter.Compile(input, resource.Fields,
		filter.WithIgnoreMissingFields(ignoreMissingFields),
		filter.WithHooks(observer.NewLogging(logger)),
	)
	if err != nil {
		return err
	}

	res, err := querier.NewBuilderFor(dialect, resource).BuildWhere(c)
	if err != nil {
		return err
	}

	tree, err := ast.Build(c)
	if err != nil {
		return err
	}

	args, err := json.Marshal(res.Args)
	if err != nil {
		return err
	}

	fmt.Printf("sql:  %s\n", res.Query)
	fmt.Printf("args: %s\n", args)
	fmt.Printf("tree: %s\n", tree)

	return nil
}
