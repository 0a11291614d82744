package observer

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/thisisjab/sieve/filter"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	luajson "layeh.com/gopher-json"
)

type LuaHookConfig struct {
	ScriptPath string `yaml:"script-path"`
}

// LuaHook runs a user script around every predicate.
// Provided script MUST contain a function named `before_predicate` which takes
// a table with column, operator, value, boolean and negate fields.
// It must return the (possibly modified) table, or nil to drop the predicate.
// Script may also define `after_predicate` which receives the applied table.
// value is a string, an array of strings or nil; boolean is "AND" or "OR".
// A returned table without value turns the predicate into a NULL comparison,
// so scripts that build a new table must copy value over.
// Note that user can have access to JSON helper using `local json = require("json")`
type LuaHook struct {
	cfg    LuaHookConfig
	logger *slog.Logger
	pool   *sync.Pool
}

func NewLuaHook(cfg LuaHookConfig, logger *slog.Logger) (*LuaHook, error) {
	proto, err := compileScript(cfg.ScriptPath)
	if err != nil {
		return nil, err
	}

	pool := &sync.Pool{
		New: func() any {
			L, err := newState(proto)
			if err != nil {
				panic(err)
			}
			return L
		},
	}

	// The first VM validates the script; later ones run the same byte code.
	L, err := newState(proto)
	if err != nil {
		return nil, err
	}
	if _, ok := L.GetGlobal("before_predicate").(*lua.LFunction); !ok {
		L.Close()
		return nil, errors.New("lua script must define function `before_predicate`")
	}
	pool.Put(L)

	return &LuaHook{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
	}, nil
}

func compileScript(path string) (*lua.FunctionProto, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open lua script: %w", err)
	}
	defer file.Close()

	chunk, err := parse.Parse(bufio.NewReader(file), path)
	if err != nil {
		return nil, fmt.Errorf("cannot parse lua script: %w", err)
	}

	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("cannot compile lua script: %w", err)
	}

	return proto, nil
}

func newState(proto *lua.FunctionProto) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load anything by default
	})

	// Manually open only the safe libraries
	// We skip 'os' and 'io' to prevent system commands/file access
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},  // Allows 'require'
		{lua.BaseLibName, lua.OpenBase},     // Allows 'print', 'pairs', etc.
		{lua.TabLibName, lua.OpenTable},     // Allows 'table.insert', etc.
		{lua.StringLibName, lua.OpenString}, // Allows string manipulation
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// This allows the user to do: local json = require("json")
	luajson.Preload(L)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua script error: %w", err)
	}

	return L, nil
}

func (h *LuaHook) BeforePredicate(p *filter.Predicate, _ filter.Sink) error {
	L := h.pool.Get().(*lua.LState)
	defer h.pool.Put(L)

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("before_predicate"),
		NRet:    1,
		Protect: true,
	}, predicateToTable(L, *p))

	if err != nil {
		return fmt.Errorf("lua script error: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LTable:
		return tableToPredicate(v, p)
	case *lua.LNilType:
		return filter.ErrSkipPredicate
	default:
		return fmt.Errorf("before_predicate must return a table or nil, got %s", ret.Type())
	}
}

func (h *LuaHook) AfterPredicate(p filter.Predicate, _ filter.Sink) {
	L := h.pool.Get().(*lua.LState)
	defer h.pool.Put(L)

	fn, ok := L.GetGlobal("after_predicate").(*lua.LFunction)
	if !ok {
		return
	}

	err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, predicateToTable(L, p))

	if err != nil {
		h.logger.Error("after_predicate failed.", "script", h.cfg.ScriptPath, "error", err)
	}
}

func predicateToTable(L *lua.LState, p filter.Predicate) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("column", lua.LString(p.Column))
	t.RawSetString("operator", lua.LString(p.Operator))
	t.RawSetString("value", toLuaValue(L, p.Value))
	t.RawSetString("boolean", lua.LString(p.Boolean.String()))
	t.RawSetString("negate", lua.LBool(p.Negate))
	return t
}

func toLuaValue(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case string:
		return lua.LString(v)
	case []string:
		t := L.CreateTable(len(v), 0)
		for _, s := range v {
			t.Append(lua.LString(s))
		}
		return t
	default:
		return lua.LNil
	}
}

// tableToPredicate copies the script's answer into p. Missing column and
// operator keep their values; a nil value becomes a null value.
func tableToPredicate(t *lua.LTable, p *filter.Predicate) error {
	if v, ok := t.RawGetString("column").(lua.LString); ok {
		p.Column = string(v)
	}

	if v, ok := t.RawGetString("operator").(lua.LString); ok {
		p.Operator = string(v)
	}

	p.Value = fromLuaValue(t.RawGetString("value"))

	switch v := t.RawGetString("boolean").(type) {
	case lua.LString:
		switch strings.ToUpper(string(v)) {
		case "AND":
			p.Boolean = filter.And
		case "OR":
			p.Boolean = filter.Or
		default:
			return fmt.Errorf("invalid boolean `%s` returned by lua script", v)
		}
	case *lua.LNilType:
	default:
		return fmt.Errorf("boolean must be a string, got %s", v.Type())
	}

	p.Negate = lua.LVAsBool(t.RawGetString("negate"))

	return nil
}

func fromLuaValue(value lua.LValue) any {
	switch v := value.(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	case lua.LBool:
		return v.String()
	case *lua.LTable:
		items := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			items = append(items, v.RawGetInt(i).String())
		}
		return items
	default:
		return nil
	}
}
