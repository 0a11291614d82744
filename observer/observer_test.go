package observer_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thisisjab/sieve/filter"
	"github.com/thisisjab/sieve/filter/ast"
	"github.com/thisisjab/sieve/observer"
	"github.com/thisisjab/sieve/schema"
)

var fields = schema.Fields{
	"name":   schema.TypeScalar,
	"email":  schema.TypeScalar,
	"status": schema.TypeScalar,
	"secret": schema.TypeScalar,
}

func writeScript(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hook.lua")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func build(t *testing.T, input string, hooks ...filter.Hook) *ast.Group {
	t.Helper()

	c, err := filter.Compile(input, fields, filter.WithHooks(hooks...))
	require.NoError(t, err)

	root, err := ast.Build(c)
	require.NoError(t, err)

	return root
}

func newLuaHook(t *testing.T, script string) *observer.LuaHook {
	t.Helper()

	hook, err := observer.NewLuaHook(observer.LuaHookConfig{ScriptPath: writeScript(t, script)}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return hook
}

func TestLuaHookRewritesPredicate(t *testing.T) {
	hook := newLuaHook(t, `
function before_predicate(p)
  if p.column == "name" then
    p.operator = "ilike"
    p.value = "%" .. p.value .. "%"
  end
  return p
end
`)

	root := build(t, "name:=:ada|email:=:a@b.c", hook)

	require.Equal(t, "name ilike %ada% OR email = a@b.c", root.String())
}

func TestLuaHookVetoesPredicate(t *testing.T) {
	hook := newLuaHook(t, `
function before_predicate(p)
  if p.column == "secret" then
    return nil
  end
  return p
end
`)

	root := build(t, "name:=:ada,secret:=:x,(secret:=:y)", hook)

	require.Equal(t, "name = ada AND ()", root.String())
}

func TestLuaHookSeesListsAndNullChecks(t *testing.T) {
	hook := newLuaHook(t, `
local json = require("json")

function before_predicate(p)
  if p.operator == "IN" then
    table.insert(p.value, "extra")
    p.boolean = "and"
  end
  if p.operator == "IS NULL" and p.value ~= nil then
    error("null check carries a value: " .. json.encode(p.value))
  end
  return p
end
`)

	c, err := filter.Compile("status:in:a b", fields, filter.WithHooks(hook))
	require.NoError(t, err)

	root, err := ast.Build(c)
	require.NoError(t, err)

	group := root.Children[0].(*ast.Group)
	require.Equal(t, &ast.Predicate{
		Column:   "status",
		Operator: filter.OpSQLIn,
		Value:    []string{"a", "b", "extra"},
		Boolean:  filter.And,
	}, group.Children[1])
}

func TestLuaHookMissingValueBecomesNull(t *testing.T) {
	hook := newLuaHook(t, `
function before_predicate(p)
  return {column = p.column, operator = p.operator}
end
`)

	root := build(t, "name:=:ada", hook)

	require.Equal(t, &ast.Predicate{Column: "name", Operator: "=", Boolean: filter.And}, root.Children[0])
}

func TestLuaHookScriptErrorAbortsCompile(t *testing.T) {
	hook := newLuaHook(t, `
function before_predicate(p)
  error("rejected")
end
`)

	c, err := filter.Compile("name:=:ada", fields, filter.WithHooks(hook))
	require.NoError(t, err)

	_, err = ast.Build(c)
	require.ErrorContains(t, err, "rejected")
}

func TestLuaHookAfterPredicate(t *testing.T) {
	hook := newLuaHook(t, `
seen = 0

function before_predicate(p)
  return p
end

function after_predicate(p)
  seen = seen + 1
  if p.negate then
    error("unexpected negate")
  end
end
`)

	root := build(t, "name:=:ada,email:=:x", hook)

	require.Len(t, root.Children, 2)
}

func TestNewLuaHookValidatesScript(t *testing.T) {
	_, err := observer.NewLuaHook(observer.LuaHookConfig{ScriptPath: writeScript(t, "function after_predicate(p) end")}, slog.New(slog.DiscardHandler))
	require.ErrorContains(t, err, "before_predicate")

	_, err = observer.NewLuaHook(observer.LuaHookConfig{ScriptPath: writeScript(t, "function (")}, slog.New(slog.DiscardHandler))
	require.Error(t, err)

	_, err = observer.NewLuaHook(observer.LuaHookConfig{ScriptPath: filepath.Join(t.TempDir(), "missing.lua")}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	build(t, "name:=:ada", observer.NewLogging(logger))

	require.Contains(t, buf.String(), `"msg":"predicate applied."`)
	require.Contains(t, buf.String(), `"column":"name"`)
	require.Contains(t, buf.String(), `"operator":"="`)
	require.Contains(t, buf.String(), `"boolean":"AND"`)
}
