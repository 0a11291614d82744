package querier

import (
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/thisisjab/sieve/fault"
	"github.com/thisisjab/sieve/filter"
)

// SQLOptions holds configuration for the SQL query builder.
type SQLOptions struct {
	// Dialect decides placeholders and containment operators.
	// Defaults to Postgres.
	Dialect Dialect

	// AllowedSortFields is a whitelist of field names permitted in ORDER BY clauses.
	// This prevents SQL injection through malicious sort parameters.
	// If empty, sorting is rejected.
	AllowedSortFields []string

	// TableName is the name of the table to query from.
	TableName string

	// SelectColumns is the list of columns to SELECT.
	// If empty, defaults to SELECT *.
	SelectColumns []string
}

// SQLQueryBuilder constructs SELECT queries with WHERE, ORDER BY, LIMIT
// and OFFSET clauses from a compiled filter.
type SQLQueryBuilder struct {
	opts SQLOptions
}

// NewSQLQueryBuilder creates a new SQL query builder with the given options.
func NewSQLQueryBuilder(opts SQLOptions) *SQLQueryBuilder {
	if opts.Dialect == nil {
		opts.Dialect = Postgres
	}
	return &SQLQueryBuilder{opts: opts}
}

// BuildResult holds the generated SQL query and its arguments.
type BuildResult struct {
	Query string `json:"sql"`
	Args  []any  `json:"args"`
}

// Build builds a complete SELECT query from the given Query parameters.
func (b *SQLQueryBuilder) Build(q Query) (BuildResult, error) {
	if err := q.Validate(); err != nil {
		return BuildResult{}, err
	}

	selectCols := b.opts.SelectColumns
	if len(selectCols) == 0 {
		selectCols = []string{"*"}
	}

	builder := sq.StatementBuilder.
		PlaceholderFormat(b.opts.Dialect.PlaceholderFormat()).
		Select(selectCols...).
		From(b.opts.TableName)

	where, err := b.whereClause(q.Filter)
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to build where clause: %w", err)
	}
	if where != nil {
		builder = builder.Where(where)
	}

	orderBy, err := b.orderByClause(q.Sort)
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to build order by clause: %w", err)
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}

	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		builder = builder.Offset(uint64(q.Offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to render query: %w", err)
	}

	return BuildResult{Query: sql, Args: args}, nil
}

// BuildWhere renders only the condition of c, with the dialect's placeholders.
func (b *SQLQueryBuilder) BuildWhere(c *filter.Compiler) (BuildResult, error) {
	where, err := b.whereClause(c)
	if err != nil {
		return BuildResult{}, err
	}
	if where == nil {
		return BuildResult{}, nil
	}

	sql, args, err := where.ToSql()
	if err != nil {
		return BuildResult{}, err
	}

	sql, err = b.opts.Dialect.PlaceholderFormat().ReplacePlaceholders(sql)
	if err != nil {
		return BuildResult{}, err
	}

	return BuildResult{Query: sql, Args: args}, nil
}

// whereClause applies c to a fresh sink. It returns nil when c emits nothing.
func (b *SQLQueryBuilder) whereClause(c *filter.Compiler) (*SQLSink, error) {
	if c == nil {
		return nil, nil
	}

	sink, err := filter.Apply(c, NewSQLSink(b.opts.Dialect))
	if err != nil {
		return nil, err
	}

	if sink.Empty() {
		return nil, nil
	}

	return sink, nil
}

// orderByClause validates the sort fields and renders them.
func (b *SQLQueryBuilder) orderByClause(sortFields []SortField) ([]string, error) {
	var parts []string

	for _, field := range sortFields {
		if !slices.Contains(b.opts.AllowedSortFields, field.Name) {
			return nil, fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
				"order": []string{fmt.Sprintf("Field `%s` is not allowed for sorting.", field.Name)},
			})
		}

		direction := "ASC"
		if field.IsDescending {
			direction = "DESC"
		}

		parts = append(parts, fmt.Sprintf("%s %s", field.Name, direction))
	}

	return parts, nil
}
