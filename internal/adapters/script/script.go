package script

// script.go — estrategias definidas en Lua.
//
// El script se compila una vez por run y cada replay crea su propio LState
// a partir del proto compilado: las instancias nunca comparten estado.
//
// Contrato del script:
//
//	function on_tick(snap) return { bid("yes", BID_PRICE, SHARES) } end
//	function on_reset() end
//	function on_market_open(snap) end   -- opcional
//
// SHARES, BID_PRICE y MIN_BPS son de solo lectura.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/domain/strategy"
)

const defaultCallTimeout = time.Second

// Options controla el sandbox.
type Options struct {
	CallTimeout time.Duration // límite por callback; 0 usa 1s
}

// Program es un script compilado con sus constantes ya fijadas.
type Program struct {
	name    string
	proto   *lua.FunctionProto
	params  strategy.Params
	timeout time.Duration
}

// Load lee y compila un script desde disco. El nombre de la estrategia es
// el nombre del archivo sin extensión.
func Load(path string, params strategy.Params, opts Options) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script.Load: read %q: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := Compile(name, string(src), params, opts)
	if err != nil {
		return nil, fmt.Errorf("script.Load: %q: %w", path, err)
	}
	return p, nil
}

// Compile parsea y compila src, y verifica con una instancia de prueba que
// define on_tick y on_reset.
func Compile(name, src string, params strategy.Params, opts Options) (*Program, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("script.Compile: parse: %w: %w", domain.ErrInvalidConfig, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("script.Compile: compile: %w: %w", domain.ErrInvalidConfig, err)
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	p := &Program{name: name, proto: proto, params: params, timeout: timeout}

	probe, err := p.newInstance()
	if err != nil {
		return nil, fmt.Errorf("script.Compile: %w: %w", domain.ErrInvalidConfig, err)
	}
	probe.Close()
	return p, nil
}

// Name devuelve el nombre de la estrategia.
func (p *Program) Name() string {
	return p.name
}

// NewStrategy crea una instancia independiente. Sirve como factory del
// Monte Carlo runner.
func (p *Program) NewStrategy() (strategy.Strategy, error) {
	s, err := p.newInstance()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Program) newInstance() (*Strategy, error) {
	L := newSandbox(p.params)

	L.Push(L.NewFunctionFromProto(p.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("init: %w", err)
	}

	s := &Strategy{name: p.name, L: L, timeout: p.timeout}
	for _, required := range []string{"on_tick", "on_reset"} {
		if L.GetGlobal(required).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("script must define %s()", required)
		}
	}
	if fn, ok := L.GetGlobal("on_market_open").(*lua.LFunction); ok {
		s.onOpen = fn
	}
	s.onTick = L.GetGlobal("on_tick").(*lua.LFunction)
	s.onReset = L.GetGlobal("on_reset").(*lua.LFunction)
	return s, nil
}

// newSandbox crea un LState con solo base, table, string y math, sin acceso
// a archivos ni módulos, y con las constantes protegidas.
func newSandbox(params strategy.Params) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "rawset", "setfenv", "getfenv", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("bid", L.NewFunction(luaBid))
	L.SetGlobal("cancel", L.NewFunction(luaCancel))
	L.SetGlobal("yes_depth_at", L.NewFunction(depthAt("yes_depth")))
	L.SetGlobal("no_depth_at", L.NewFunction(depthAt("no_depth")))

	consts := L.NewTable()
	consts.RawSetString("SHARES", lua.LNumber(params.Shares))
	consts.RawSetString("BID_PRICE", lua.LNumber(params.BidPrice))
	consts.RawSetString("MIN_BPS", lua.LNumber(params.MinBps))
	consts.RawSetString("SIGNAL_OFFSET_MS", lua.LNumber(params.SignalOffsetMs))

	mt := L.NewTable()
	mt.RawSetString("__index", consts)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		t := L.CheckTable(1)
		key := L.CheckAny(2)
		if consts.RawGet(key) != lua.LNil {
			L.RaiseError("%s is read-only", key.String())
			return 0
		}
		t.RawSet(key, L.CheckAny(3))
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))
	L.SetMetatable(L.G.Global, mt)

	return L
}
