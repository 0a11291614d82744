package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thisisjab/sieve/entity"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
)

// fakeStorage renders the query like a real storage would and records it.
type fakeStorage struct {
	lastQuery querier.Query
	lastSQL   querier.BuildResult
	records   []entity.Record
}

func (f *fakeStorage) Query(_ context.Context, req querier.QueryRequest) (querier.QueryResponse, error) {
	f.lastQuery = req.Query

	res, err := querier.NewBuilderFor(querier.Postgres, req.Resource).Build(req.Query)
	if err != nil {
		return querier.QueryResponse{}, err
	}
	f.lastSQL = res

	return querier.QueryResponse{Records: f.records}, nil
}

var catalog = &schema.Catalog{Resources: map[string]schema.Resource{
	"users": {
		Name:       "users",
		Table:      "users",
		Fields:     schema.Fields{"name": schema.TypeScalar, "tags": schema.TypeArray},
		SortFields: []string{"name"},
	},
}}

func newTestServer(t *testing.T) (http.Handler, *fakeStorage) {
	t.Helper()

	storage := &fakeStorage{records: []entity.Record{{"id": 1, "name": "ada"}}}

	s, err := NewServer(Config{Addr: "localhost:0"}, slog.New(slog.DiscardHandler), Services{
		Catalog: schema.NewStaticRegistry(catalog),
		Storage: storage,
	})
	require.NoError(t, err)

	return s.routes(), storage
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	return rec, res
}

func fieldErrors(t *testing.T, res map[string]any) map[string]any {
	t.Helper()

	md, ok := res["metadata"].(map[string]any)
	require.True(t, ok, "response has no metadata: %v", res)
	fields, ok := md["fields"].(map[string]any)
	require.True(t, ok, "response has no field errors: %v", res)

	return fields
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestServer(t)

	rec, res := do(t, h, http.MethodGet, "/api/healthcheck", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, res["success"])
	require.Equal(t, map[string]any{"dialect": "postgres"}, res["data"])
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestListResource(t *testing.T) {
	h, storage := newTestServer(t)

	qs := url.Values{
		"filter": {"tags:in:a b|name:=:ada"},
		"order":  {"-name"},
		"limit":  {"5"},
		"offset": {"10"},
	}

	rec, res := do(t, h, http.MethodGet, "/api/resources/users?"+qs.Encode(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{map[string]any{"id": float64(1), "name": "ada"}}, res["data"])
	require.Equal(t, []querier.SortField{{Name: "name", IsDescending: true}}, storage.lastQuery.Sort)
	require.Equal(t, "SELECT * FROM users WHERE tags && $1 OR name = $2 ORDER BY name DESC LIMIT 5 OFFSET 10", storage.lastSQL.Query)
	require.Equal(t, []any{"{a,b}", "ada"}, storage.lastSQL.Args)
}

func TestListResourceDefaults(t *testing.T) {
	h, storage := newTestServer(t)

	rec, _ := do(t, h, http.MethodGet, "/api/resources/users", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, storage.lastQuery.Filter)
	require.Equal(t, querier.DefaultLimit, storage.lastQuery.Limit)
}

func TestListResourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		field  string
		msg    string
	}{
		{"unknown resource", "/api/resources/orders", http.StatusNotFound, "", ""},
		{"unknown field", "/api/resources/users?filter=email:=:x", http.StatusUnprocessableEntity, "filter", "Field `email` does not exist."},
		{"unbalanced", "/api/resources/users?filter=(name:=:x", http.StatusUnprocessableEntity, "filter", "Parentheses are not balanced."},
		{"delimiters", "/api/resources/users?filter=name:=:x:y", http.StatusUnprocessableEntity, "filter", "Too many column delimiters at position 8."},
		{"operator", "/api/resources/users?filter=name:~:x", http.StatusUnprocessableEntity, "filter", "Operator `~` is not supported."},
		{"sort field", "/api/resources/users?order=tags", http.StatusUnprocessableEntity, "order", "Field `tags` is not allowed for sorting."},
		{"limit type", "/api/resources/users?limit=ten", http.StatusUnprocessableEntity, "limit", "Must be an integer value."},
		{"limit max", "/api/resources/users?limit=5000", http.StatusUnprocessableEntity, "limit", "Values larger than 1000 are not supported."},
	}

	h, _ := newTestServer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := do(t, h, http.MethodGet, tt.target, "")

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, false, res["success"])

			if tt.field != "" {
				require.Equal(t, []any{tt.msg}, fieldErrors(t, res)[tt.field])
			}
		})
	}
}

func TestListResourceIgnoreMissingFields(t *testing.T) {
	h, storage := newTestServer(t)

	rec, _ := do(t, h, http.MethodGet, "/api/resources/users?filter=email:=:x,name:=:ada&ignore_missing_fields=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "SELECT * FROM users WHERE name = $1 LIMIT 10", storage.lastSQL.Query)
}

func TestCompileFilter(t *testing.T) {
	h, _ := newTestServer(t)

	rec, res := do(t, h, http.MethodPost, "/api/resources/users/compile", `{"filter": "name:in:a \\null"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	data := res["data"].(map[string]any)
	require.Equal(t, "(name IS NULL OR name IN ($1))", data["sql"])
	require.Equal(t, []any{"a"}, data["args"])

	tree := data["tree"].(map[string]any)
	require.Len(t, tree["children"], 1)
}

func TestCompileFilterErrors(t *testing.T) {
	h, _ := newTestServer(t)

	rec, _ := do(t, h, http.MethodPost, "/api/resources/users/compile", `{"filter": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, res := do(t, h, http.MethodPost, "/api/resources/users/compile", `{"filter": "email:=:x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, []any{"Field `email` does not exist."}, fieldErrors(t, res)["filter"])

	rec, _ = do(t, h, http.MethodPost, "/api/resources/users/compile", `{"filter": "email:=:x", "ignore_missing_fields": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, res = do(t, h, http.MethodPost, "/api/resources/users/compile", `{"query": "x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, []any{"Key is unknown."}, fieldErrors(t, res)["query"])
}

func TestRequestIDIsKept(t *testing.T) {
	h, _ := newTestServer(t)

	id := "0d5f7b3c-2f0e-4a59-9d54-0c6f1f1f6a11"

	req := httptest.NewRequest(http.MethodGet, "/api/healthcheck", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestNewServerRequiresServices(t *testing.T) {
	_, err := NewServer(Config{Addr: "localhost:0"}, slog.New(slog.DiscardHandler), Services{Storage: &fakeStorage{}})
	require.Error(t, err)

	_, err = NewServer(Config{}, slog.New(slog.DiscardHandler), Services{})
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]Config{
		"no addr":          {},
		"cert without key": {Addr: "localhost:0", CertFile: "cert.pem"},
		"key without cert": {Addr: "localhost:0", KeyFile: "key.pem"},
		"negative read":    {Addr: "localhost:0", ReadTimeout: -time.Second},
		"negative idle":    {Addr: "localhost:0", IdleTimeout: -time.Second},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cfg.Validate())
		})
	}
}

func TestNewServerAppliesTimeoutDefaults(t *testing.T) {
	s, err := NewServer(Config{Addr: "localhost:0", WriteTimeout: 5 * time.Second}, slog.New(slog.DiscardHandler), Services{
		Catalog: schema.NewStaticRegistry(catalog),
		Storage: &fakeStorage{},
	})
	require.NoError(t, err)

	require.Equal(t, defaultReadTimeout, s.cfg.ReadTimeout)
	require.Equal(t, 5*time.Second, s.cfg.WriteTimeout)
	require.Equal(t, defaultIdleTimeout, s.cfg.IdleTimeout)
}
