package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for behavior scripts.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm        *lua.LState
	log       *zap.Logger
	behaviors map[string]*lua.LFunction
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: lib/ first, then behaviors/, then the directory itself.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, behaviors: make(map[string]*lua.LFunction)}
	e.openAPI()

	for _, sub := range []string{"lib", "behaviors", ""} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", p, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk in the engine's VM.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// openAPI installs the Go functions scripts can call.
func (e *Engine) openAPI() {
	e.vm.SetGlobal("behavior", e.vm.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		if _, dup := e.behaviors[name]; dup {
			L.RaiseError("behavior %q defined twice", name)
			return 0
		}
		e.behaviors[name] = fn
		return 0
	}))
	e.vm.SetGlobal("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
}

// Behaviors returns the names scripts registered with behavior(), sorted.
func (e *Engine) Behaviors() []string {
	names := make([]string, 0, len(e.behaviors))
	for n := range e.behaviors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// CalcImpactDamage calls Lua calc_impact_damage(speed). Without the function
// impacts do no damage.
func (e *Engine) CalcImpactDamage(speed float64) int {
	fn := e.vm.GetGlobal("calc_impact_damage")
	if fn == lua.LNil {
		return 0
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(speed)); err != nil {
		e.log.Error("lua calc_impact_damage error", zap.Error(err))
		return 0
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// --- Lua helpers ---

// lNum reads a number field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// lBool reads a boolean field from a Lua table.
func lBool(t *lua.LTable, key string) bool {
	return lua.LVAsBool(t.RawGetString(key))
}

func lBoolValue(b bool) lua.LValue {
	if b {
		return lua.LTrue
	}
	return lua.LFalse
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
