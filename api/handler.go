package api

import (
	"fmt"
	"net/http"

	"github.com/thisisjab/sieve/fault"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/filter/ast"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
)

// listResourceHandler returns the records of a resource matching the
// `filter` query parameter. `order`, `limit`, `offset` and
// `ignore_missing_fields` are optional.
func (s *server) listResourceHandler(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resource(w, r)
	if !ok {
		return
	}

	qs := r.URL.Query()

	defaultLimit := resource.DefaultLimit
	if defaultLimit == 0 {
		defaultLimit = querier.DefaultLimit
	}

	limit, err := readInt(qs, "limit", defaultLimit)
	if s.returnOnError(w, r, err) {
		return
	}

	offset, err := readInt(qs, "offset", 0)
	if s.returnOnError(w, r, err) {
		return
	}

	ignoreMissingFields, err := readBool(qs, "ignore_missing_fields", s.services.IgnoreMissingFields)
	if s.returnOnError(w, r, err) {
		return
	}

	c, err := s.compile(resource, qs.Get("filter"), ignoreMissingFields)
	if s.returnOnError(w, r, err) {
		return
	}

	query := querier.Query{
		Filter: c,
		Sort:   querier.ParseSort(qs.Get("order")),
		Limit:  limit,
		Offset: offset,
	}

	resp, err := s.services.Storage.Query(r.Context(), querier.QueryRequest{Resource: resource, Query: query})
	if s.returnOnError(w, r, err) {
		return
	}

	s.writeJson( // nolint:errcheck
		w,
		http.StatusOK,
		apiResponse{
			Success: true,
			Data:    resp.Records,
			Metadata: map[string]any{"pagination": map[string]any{
				"limit":  limit,
				"offset": offset,
			}},
		},
		nil,
	)
}

type compileRequest struct {
	Filter              string `json:"filter"`
	IgnoreMissingFields *bool  `json:"ignore_missing_fields"`
}

// compileFilterHandler renders a filter without touching the storage.
func (s *server) compileFilterHandler(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resource(w, r)
	if !ok {
		return
	}

	var req compileRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	ignoreMissingFields := s.services.IgnoreMissingFields
	if req.IgnoreMissingFields != nil {
		ignoreMissingFields = *req.IgnoreMissingFields
	}

	c, err := s.compile(resource, req.Filter, ignoreMissingFields)
	if s.returnOnError(w, r, err) {
		return
	}

	tree := &ast.Group{}
	res := querier.BuildResult{}

	if c != nil {
		tree, err = ast.Build(c)
		if s.returnOnError(w, r, err) {
			return
		}

		res, err = querier.NewBuilderFor(s.services.Dialect, resource).BuildWhere(c)
		if s.returnOnError(w, r, err) {
			return
		}
	}

	s.writeJson( // nolint:errcheck
		w,
		http.StatusOK,
		apiResponse{
			Success: true,
			Data: map[string]any{
				"sql":  res.Query,
				"args": res.Args,
				"tree": tree,
			},
		},
		nil,
	)
}

func (s *server) resource(w http.ResponseWriter, r *http.Request) (schema.Resource, bool) {
	name := r.PathValue("resource")

	resource, ok := s.services.Catalog.Resource(name)
	if !ok {
		s.handleError(w, r, fault.New(fault.NotFoundCode, fmt.Sprintf("Resource `%s` not found.", name)))
		return schema.Resource{}, false
	}

	return resource, true
}

// compile returns nil for an empty filter.
func (s *server) compile(resource schema.Resource, input string, ignoreMissingFields bool) (*filter.Compiler, error) {
	if input == "" {
		return nil, nil
	}

	return filter.Compile(input, resource.Fields,
		filter.WithIgnoreMissingFields(ignoreMissingFields),
		filter.WithHooks(s.services.Hooks...),
		filter.WithMaxLength(s.services.MaxFilterLength),
	)
}
