package discovery

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sammwyy/ploogz/api"
	lua "github.com/yuin/gopher-lua"
)

// LuaBackend loads plugins written in Lua.
//
// A plugin script returns a table with a string "name" field and optional
// setup, activate and teardown functions, or an array of such tables:
//
//	local plugin = { name = "Greeter" }
//
//	function plugin:setup(opts) self.greeting = opts.greeting end
//	function plugin:activate() print(self.greeting) end
//	function plugin:teardown() end
//
//	return plugin
//
// Hooks receive the plugin table as their first argument. Tables without a
// name are ignored. All plugins from one script share a Lua state, which is
// closed once the last of them is released.
type LuaBackend struct{}

// NewLuaBackend creates a backend that runs .lua files
func NewLuaBackend() *LuaBackend {
	return &LuaBackend{}
}

func (b *LuaBackend) Extensions() []string {
	return []string{".lua"}
}

// Load runs the script and builds one plugin per conforming returned table
func (b *LuaBackend) Load(path string) ([]api.Hooks, error) {
	L := lua.NewState()

	fn, err := L.LoadFile(path)
	if err != nil {
		L.Close()
		return nil, &api.DiscoveryError{Path: path, Err: err}
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, &api.DiscoveryError{Path: path, Err: err}
	}
	ret := L.Get(-1)
	L.Pop(1)

	tables := pluginTables(ret)
	if len(tables) == 0 {
		L.Close()
		return nil, nil
	}

	mod := &luaModule{L: L}
	var (
		plugins []api.Hooks
		errs    []error
	)
	for i, tbl := range tables {
		p, err := newLuaPlugin(mod, tbl)
		if err != nil {
			errs = append(errs, &api.ConstructionError{Path: path, Symbol: fmt.Sprintf("#%d", i+1), Err: err})
			continue
		}
		plugins = append(plugins, p)
	}

	mod.refs = len(plugins)
	if mod.refs == 0 {
		L.Close()
	}
	return plugins, errors.Join(errs...)
}

// pluginTables returns the tables in a script's return value that declare a
// name.
func pluginTables(v lua.LValue) []*lua.LTable {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	if tbl.RawGetString("name") != lua.LNil {
		return []*lua.LTable{tbl}
	}

	var tables []*lua.LTable
	for i := 1; i <= tbl.Len(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok && t.RawGetString("name") != lua.LNil {
			tables = append(tables, t)
		}
	}
	return tables
}

// luaModule is the Lua state shared by every plugin returned from a script
type luaModule struct {
	L      *lua.LState
	refs   int
	closed bool
}

func (m *luaModule) release() {
	m.refs--
	if m.refs == 0 {
		m.L.Close()
		m.closed = true
	}
}

// luaPlugin implements api.Hooks for a Lua plugin table
type luaPlugin struct {
	mod      *luaModule
	table    *lua.LTable
	name     string
	setup    *lua.LFunction
	activate *lua.LFunction
	teardown *lua.LFunction
	released bool
}

func newLuaPlugin(mod *luaModule, tbl *lua.LTable) (*luaPlugin, error) {
	name, ok := tbl.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		return nil, fmt.Errorf("name must be a non-empty string, got %s", tbl.RawGetString("name").Type())
	}

	p := &luaPlugin{mod: mod, table: tbl, name: string(name)}
	hooks := map[string]**lua.LFunction{
		"setup":    &p.setup,
		"activate": &p.activate,
		"teardown": &p.teardown,
	}
	for field, dst := range hooks {
		switch v := tbl.RawGetString(field).(type) {
		case *lua.LNilType:
		case *lua.LFunction:
			*dst = v
		default:
			return nil, fmt.Errorf("%s must be a function, got %s", field, v.Type())
		}
	}
	return p, nil
}

func (p *luaPlugin) Name() string {
	return p.name
}

func (p *luaPlugin) OnSetup(opts api.Options) error {
	return p.call(p.setup, toLuaValue(p.mod.L, map[string]interface{}(opts)))
}

func (p *luaPlugin) OnActivate() error {
	return p.call(p.activate)
}

func (p *luaPlugin) OnTeardown() error {
	return p.call(p.teardown)
}

// Release drops this plugin's reference to the shared Lua state
func (p *luaPlugin) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	p.mod.release()
	return nil
}

func (p *luaPlugin) call(fn *lua.LFunction, args ...lua.LValue) error {
	if fn == nil {
		return nil
	}
	args = append([]lua.LValue{p.table}, args...)
	return p.mod.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

// toLuaValue converts decoded config values to Lua values
func toLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []interface{}:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(toLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		if val == nil {
			return tbl
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tbl.RawSetString(k, toLuaValue(L, val[k]))
		}
		return tbl
	case api.Options:
		return toLuaValue(L, map[string]interface{}(val))
	default:
		return lua.LString(fmt.Sprint(val))
	}
}
