package querier

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/thisisjab/sieve/filter"
)

// SQLSink is a filter.Sink that builds a WHERE condition.
//
// Siblings are joined by their own boolean in source order, without
// regrouping, and nested groups are wrapped in parentheses; this is exactly
// how the filter string reads. Empty groups are dropped.
//
// Rendering errors (e.g. an unsupported operator) are reported by ToSql.
type SQLSink struct {
	dialect Dialect
	parts   []clause
}

type clause struct {
	boolean filter.Boolean
	expr    sq.Sqlizer
	nested  bool
}

// NewSQLSink creates an empty sink rendering for dialect.
func NewSQLSink(dialect Dialect) *SQLSink {
	return &SQLSink{dialect: dialect}
}

// Empty reports whether nothing was emitted into the sink.
func (s *SQLSink) Empty() bool {
	return len(s.parts) == 0
}

func (s *SQLSink) AddPredicate(column, operator string, value any, boolean filter.Boolean, negate bool) {
	expr, err := s.predicate(column, operator, value, negate)
	if err != nil {
		expr = errSqlizer{err}
	}

	s.parts = append(s.parts, clause{boolean: boolean, expr: expr})
}

func (s *SQLSink) AddNullPredicate(column string, boolean filter.Boolean, negate bool) {
	var expr sq.Sqlizer = sq.Eq{column: nil}
	if negate {
		expr = sq.NotEq{column: nil}
	}

	s.parts = append(s.parts, clause{boolean: boolean, expr: expr})
}

func (s *SQLSink) WithGroup(boolean filter.Boolean, body func(filter.Sink) error) error {
	inner := NewSQLSink(s.dialect)

	if err := body(inner); err != nil {
		return err
	}

	if !inner.Empty() {
		s.parts = append(s.parts, clause{boolean: boolean, expr: inner, nested: true})
	}

	return nil
}

// ToSql implements squirrel.Sqlizer. Placeholders are always `?`; the
// statement builder rewrites them for the dialect.
func (s *SQLSink) ToSql() (string, []any, error) {
	var sb strings.Builder
	var args []any

	for i, p := range s.parts {
		sql, pArgs, err := p.expr.ToSql()
		if err != nil {
			return "", nil, err
		}

		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(p.boolean.String())
			sb.WriteByte(' ')
		}

		if p.nested {
			sb.WriteByte('(')
			sb.WriteString(sql)
			sb.WriteByte(')')
		} else {
			sb.WriteString(sql)
		}

		args = append(args, pArgs...)
	}

	return sb.String(), args, nil
}

// predicate translates one comparison into squirrel.
func (s *SQLSink) predicate(column, operator string, value any, negate bool) (sq.Sqlizer, error) {
	if filter.IsContainment(operator) {
		expr, err := s.dialect.Containment(column, operator, value)
		if err != nil {
			return nil, err
		}
		return not(expr, negate), nil
	}

	switch strings.ToLower(operator) {
	case "in":
		list := listOf(value)
		if negate {
			return sq.NotEq{column: list}, nil
		}
		return sq.Eq{column: list}, nil
	case "=":
		return not(sq.Eq{column: value}, negate), nil
	case "!=", "<>":
		return not(sq.NotEq{column: value}, negate), nil
	case "<":
		return not(sq.Lt{column: value}, negate), nil
	case ">":
		return not(sq.Gt{column: value}, negate), nil
	case "<=":
		return not(sq.LtOrEq{column: value}, negate), nil
	case ">=":
		return not(sq.GtOrEq{column: value}, negate), nil
	case "like":
		return not(sq.Like{column: value}, negate), nil
	case "not like":
		return not(sq.NotLike{column: value}, negate), nil
	case "ilike":
		return not(sq.ILike{column: value}, negate), nil
	case "not ilike":
		return not(sq.NotILike{column: value}, negate), nil
	}

	return nil, &UnsupportedOperatorError{Operator: operator, Dialect: s.dialect.Name()}
}

func not(expr sq.Sqlizer, negate bool) sq.Sqlizer {
	if !negate {
		return expr
	}
	return sq.Expr("NOT (?)", expr)
}

func listOf(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}
	return []string{}
}

type errSqlizer struct {
	err error
}

func (e errSqlizer) ToSql() (string, []any, error) {
	return "", nil, e.err
}
