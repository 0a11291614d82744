package querier

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/thisisjab/sieve/filter"
)

var ErrUnsupportedOperator = errors.New("unsupported operator")

// UnsupportedOperatorError reports an operator the dialect cannot render.
type UnsupportedOperatorError struct {
	Operator string
	Dialect  string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("operator `%s` is not supported by %s", e.Operator, e.Dialect)
}

func (e *UnsupportedOperatorError) Unwrap() error {
	return ErrUnsupportedOperator
}

// Dialect holds the database specific parts of SQL rendering.
type Dialect interface {
	Name() string
	PlaceholderFormat() sq.PlaceholderFormat

	// Containment renders an array or jsonb containment predicate. value is
	// the array literal produced by the compiler ({a,b}) or a []string.
	Containment(column, operator string, value any) (sq.Sqlizer, error)
}

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "":
		return Postgres, nil
	case "clickhouse":
		return ClickHouse, nil
	default:
		return nil, fmt.Errorf("unknown sql dialect: %s", name)
	}
}

var (
	Postgres   Dialect = postgresDialect{}
	ClickHouse Dialect = clickHouseDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

func (d postgresDialect) Containment(column, operator string, value any) (sq.Sqlizer, error) {
	literal, err := arrayLiteral(value)
	if err != nil {
		return nil, err
	}

	switch operator {
	case filter.OpOverlaps, filter.OpContainsAll:
		return sq.Expr(column+" "+operator+" ?", literal), nil
	case filter.OpAnyKeyExists, filter.OpAllKeysExist:
		// A doubled question mark survives placeholder replacement as one.
		return sq.Expr(column+" ?"+operator+" ?", literal), nil
	}

	return nil, &UnsupportedOperatorError{Operator: operator, Dialect: d.Name()}
}

type clickHouseDialect struct{}

func (clickHouseDialect) Name() string { return "clickhouse" }

func (clickHouseDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (d clickHouseDialect) Containment(column, operator string, value any) (sq.Sqlizer, error) {
	elems, err := arrayElements(value)
	if err != nil {
		return nil, err
	}

	switch operator {
	case filter.OpOverlaps:
		return sq.Expr("hasAny("+column+", ?)", elems), nil
	case filter.OpContainsAll:
		return sq.Expr("hasAll("+column+", ?)", elems), nil
	}

	return nil, &UnsupportedOperatorError{Operator: operator, Dialect: d.Name()}
}

func arrayLiteral(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []string:
		return "{" + strings.Join(v, ",") + "}", nil
	}
	return "", fmt.Errorf("invalid array value of type %T", value)
}

func arrayElements(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		v = strings.TrimSuffix(strings.TrimPrefix(v, "{"), "}")
		if v == "" {
			return []string{}, nil
		}
		return strings.Split(v, ","), nil
	}
	return nil, fmt.Errorf("invalid array value of type %T", value)
}
