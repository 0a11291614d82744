package querier_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thisisjab/sieve/fault"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/querier"
	"github.com/thisisjab/sieve/schema"
)

var fields = schema.Fields{
	"a":          schema.TypeScalar,
	"b":          schema.TypeScalar,
	"c":          schema.TypeScalar,
	"x":          schema.TypeScalar,
	"name":       schema.TypeScalar,
	"created_at": schema.TypeScalar,
	"address2":   schema.TypeScalar,
	"v1_id":      schema.TypeScalar,
	"tags":       schema.TypeArray,
	"meta":       schema.TypeJSONB,
}

func compile(t *testing.T, input string, opts ...filter.Option) *filter.Compiler {
	t.Helper()

	c, err := filter.Compile(input, fields, opts...)
	require.NoError(t, err)

	return c
}

func TestBuildWherePostgres(t *testing.T) {
	tests := []struct {
		input string
		sql   string
		args  []any
	}{
		{"a:=:1", "a = $1", []any{"1"}},
		{"a:=:1,b:>:2", "a = $1 AND b > $2", []any{"1", "2"}},
		{"a:=:1|b:<=:2", "a = $1 OR b <= $2", []any{"1", "2"}},
		{"(a:=:1|b:=:2),c:!=:3", "(a = $1 OR b = $2) AND c <> $3", []any{"1", "2", "3"}},
		{"a:=:1|(b:>=:2,(c:<:3))", "a = $1 OR (b >= $2 AND (c < $3))", []any{"1", "2", "3"}},
		{`a:=:\null`, "a IS NULL", nil},
		{"name:like:%jo%", "name LIKE $1", []any{"%jo%"}},
		{"name:ilike:%jo%", "name ILIKE $1", []any{"%jo%"}},
		{"address2:=:x,v1_id:=:1", "address2 = $1 AND v1_id = $2", []any{"x", "1"}},
		{"x:in:a b", "(x IS NOT NULL AND x IN ($1,$2))", []any{"a", "b"}},
		{`x:in:\null a`, "(x IS NULL OR x IN ($1))", []any{"a"}},
		{"x:!in:a", "(x IS NULL OR x NOT IN ($1))", []any{"a"}},
		{`x:!in:\null a`, "(x IS NOT NULL AND x NOT IN ($1))", []any{"a"}},
		{"tags:in:x y", "tags && $1", []any{"{x,y}"}},
		{"tags:in!:x y", "tags @> $1", []any{"{x,y}"}},
		{"meta:in:k", "meta ?| $1", []any{"{k}"}},
		{"meta:!in:k j", "meta ?& $1", []any{"{k,j}"}},
	}

	b := querier.NewSQLQueryBuilder(querier.SQLOptions{Dialect: querier.Postgres})

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res, err := b.BuildWhere(compile(t, tt.input))
			require.NoError(t, err)
			require.Equal(t, tt.sql, res.Query)
			require.Equal(t, tt.args, res.Args)
		})
	}
}

func TestBuildWhereClickHouse(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{Dialect: querier.ClickHouse})

	res, err := b.BuildWhere(compile(t, "tags:in:x y|tags:in!:z,a:=:1"))
	require.NoError(t, err)
	require.Equal(t, "hasAny(tags, ?) OR hasAll(tags, ?) AND a = ?", res.Query)
	require.Equal(t, []any{[]string{"x", "y"}, []string{"z"}, "1"}, res.Args)

	_, err = b.BuildWhere(compile(t, "meta:in:k"))
	require.ErrorIs(t, err, querier.ErrUnsupportedOperator)
}

func TestBuildWhereUnsupportedOperator(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{})

	_, err := b.BuildWhere(compile(t, "a:;drop:1"))
	require.ErrorIs(t, err, querier.ErrUnsupportedOperator)
}

func TestBuildWhereDropsEmptyGroups(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{})

	res, err := b.BuildWhere(compile(t, "(zzz:=:1)|a:=:1", filter.WithIgnoreMissingFields(true)))
	require.NoError(t, err)
	require.Equal(t, "a = $1", res.Query)

	res, err = b.BuildWhere(compile(t, "zzz:=:1", filter.WithIgnoreMissingFields(true)))
	require.NoError(t, err)
	require.Empty(t, res.Query)
}

func TestBuildWhereFilterErrors(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{})

	_, err := b.BuildWhere(compile(t, "zzz:=:1"))
	require.ErrorIs(t, err, filter.ErrUnknownField)

	_, err = b.BuildWhere(compile(t, "a:=:1:2"))
	require.ErrorIs(t, err, filter.ErrTooManyColumnDelimiters)
}

func TestBuild(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{
		Dialect:           querier.Postgres,
		TableName:         "users",
		SelectColumns:     []string{"id", "name"},
		AllowedSortFields: []string{"name", "created_at"},
	})

	res, err := b.Build(querier.Query{
		Filter: compile(t, "a:=:1|tags:in:x"),
		Sort:   []querier.SortField{{Name: "name"}, {Name: "created_at", IsDescending: true}},
		Limit:  10,
		Offset: 20,
	})
	require.NoError(t, err)
	require.Equal(t, "SELECT id, name FROM users WHERE a = $1 OR tags && $2 ORDER BY name ASC, created_at DESC LIMIT 10 OFFSET 20", res.Query)
	require.Equal(t, []any{"1", "{x}"}, res.Args)
}

func TestBuildSortsByFieldWithDigits(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{TableName: "users", AllowedSortFields: []string{"address2"}})

	res, err := b.Build(querier.Query{Sort: querier.ParseSort("-address2")})
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users ORDER BY address2 DESC", res.Query)
}

func TestBuildWithoutFilter(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{TableName: "users"})

	res, err := b.Build(querier.Query{})
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users", res.Query)
	require.Empty(t, res.Args)
}

func TestBuildRejectsSortField(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{TableName: "users", AllowedSortFields: []string{"name"}})

	_, err := b.Build(querier.Query{Sort: []querier.SortField{{Name: "password"}}})

	var f fault.Fault
	require.ErrorAs(t, err, &f)
	require.Equal(t, fault.BadInputCode, f.Code())
}

func TestBuildValidatesLimit(t *testing.T) {
	b := querier.NewSQLQueryBuilder(querier.SQLOptions{TableName: "users"})

	for _, q := range []querier.Query{{Limit: querier.LimitMax + 1}, {Limit: -1}, {Offset: -1}} {
		_, err := b.Build(q)

		var f fault.Fault
		require.ErrorAs(t, err, &f)
		require.Equal(t, fault.BadInputCode, f.Code())
	}
}

func TestParseSort(t *testing.T) {
	tests := map[string][]querier.SortField{
		"":                   nil,
		"name":               {{Name: "name"}},
		"-createdAt":         {{Name: "created_at", IsDescending: true}},
		"name.en,-createdAt": {{Name: "name"}, {Name: "created_at", IsDescending: true}},
		" name , ,-":         {{Name: "name"}},
		"address2":           {{Name: "address2"}},
		"-utm_source2":       {{Name: "utm_source2", IsDescending: true}},
		"v1_id,ID":           {{Name: "v1_id"}, {Name: "id"}},
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, expected, querier.ParseSort(input))
		})
	}
}

func TestSQLSinkNegate(t *testing.T) {
	sink := querier.NewSQLSink(querier.Postgres)

	sink.AddPredicate("a", "=", "1", filter.And, true)
	sink.AddPredicate("tags", filter.OpOverlaps, "{x}", filter.Or, true)
	require.NoError(t, sink.WithGroup(filter.And, func(inner filter.Sink) error {
		inner.AddNullPredicate("b", filter.And, false)
		return nil
	}))

	sql, args, err := sink.ToSql()
	require.NoError(t, err)
	require.Equal(t, "NOT (a = ?) OR NOT (tags && ?) AND (b IS NULL)", sql)
	require.Equal(t, []any{"1", "{x}"}, args)
}
