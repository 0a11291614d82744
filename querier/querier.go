package querier

import (
	"context"

	"github.com/thisisjab/sieve/entity"
	"github.com/thisisjab/sieve/schema"
)

type QueryRequest struct {
	Resource schema.Resource
	Query    Query
}

type QueryResponse struct {
	Records []entity.Record
}

type Querier interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// NewBuilderFor returns a query builder for resource rendering dialect.
func NewBuilderFor(dialect Dialect, resource schema.Resource) *SQLQueryBuilder {
	return NewSQLQueryBuilder(SQLOptions{
		Dialect:           dialect,
		TableName:         resource.Table,
		SelectColumns:     resource.Columns,
		AllowedSortFields: resource.SortableFields(),
	})
}
