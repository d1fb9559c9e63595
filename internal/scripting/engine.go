// Package scripting wraps a single gopher-lua VM so game logic can live in
// scripts: a script declares whole systems with veldt.system{...} and drives
// the live world through the veldt table. Single-goroutine access only (the
// frame loop).
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/veldt-engine/veldt/internal/core/ecs"
	"github.com/veldt-engine/veldt/internal/core/event"
	"github.com/veldt-engine/veldt/internal/core/world"
)

// ScriptEvent is how scripts publish onto the world bus. Go systems subscribe
// to it like any other typed event.
type ScriptEvent struct {
	Name string
	Data map[string]any
}

// Engine owns the VM and the world binding.
type Engine struct {
	vm    *lua.LState
	world *world.World
	log   *zap.Logger
}

// NewEngine creates a Lua engine bound to w and loads every .lua file in
// scriptsDir (sorted by name; a missing directory is not an error). Systems
// the scripts declare are attached to w as they load.
func NewEngine(scriptsDir string, w *world.World, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, world: w, log: log}
	e.registerModule()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// registerModule installs the veldt table.
func (e *Engine) registerModule() {
	mod := e.vm.NewTable()
	bind := func(name string, fn lua.LGFunction) {
		mod.RawSetString(name, e.vm.NewFunction(fn))
	}
	bind("system", e.luaSystem)
	bind("spawn", e.luaSpawn)
	bind("get", e.luaGet)
	bind("set", e.luaSet)
	bind("remove", e.luaRemove)
	bind("remove_entity", e.luaRemoveEntity)
	bind("despawn", e.luaDespawn)
	bind("set_parent", e.luaSetParent)
	bind("mark_changed", e.luaMarkChanged)
	bind("publish", e.luaPublish)
	e.vm.SetGlobal("veldt", mod)
}

// luaSystem attaches a script-declared system:
//
//	veldt.system{
//	    name = "drift", phase = "update", priority = 10, group = "sim",
//	    queries = { movers = { with = {"position", "velocity"} } },
//	    process = function(dt, results) ... end,
//	}
func (e *Engine) luaSystem(L *lua.LState) int {
	tbl := L.CheckTable(1)
	label := lua.LVAsString(tbl.RawGetString("name"))
	if label == "" {
		L.RaiseError("veldt.system: name is required")
	}
	phase, err := parsePhase(lua.LVAsString(tbl.RawGetString("phase")))
	if err != nil {
		L.RaiseError("veldt.system %q: %v", label, err)
	}

	sys := world.System{
		Label:    label,
		Phase:    phase,
		Priority: int(lua.LVAsNumber(tbl.RawGetString("priority"))),
	}
	if g := lua.LVAsString(tbl.RawGetString("group")); g != "" {
		sys.Groups = []string{g}
	}
	if q, ok := tbl.RawGetString("queries").(*lua.LTable); ok {
		sys.Queries = make(map[string]ecs.Query)
		q.ForEach(func(k, v lua.LValue) {
			def, ok := v.(*lua.LTable)
			if !ok {
				return
			}
			sys.Queries[lua.LVAsString(k)] = ecs.Query{
				With:      kindList(def.RawGetString("with")),
				Without:   kindList(def.RawGetString("without")),
				Optional:  kindList(def.RawGetString("optional")),
				Changed:   kindList(def.RawGetString("changed")),
				ParentHas: kindList(def.RawGetString("parent_has")),
			}
		})
	}
	if fn, ok := tbl.RawGetString("process").(*lua.LFunction); ok {
		sys.Process = func(_ *world.World, dt float64, results world.Results) {
			res := e.vm.NewTable()
			for name, ids := range results {
				arr := e.vm.NewTable()
				for i, id := range ids {
					arr.RawSetInt(i+1, lua.LNumber(id))
				}
				res.RawSetString(name, arr)
			}
			err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
				lua.LNumber(dt), res)
			if err != nil {
				e.log.Error("lua system failed", zap.String("system", label), zap.Error(err))
			}
		}
	}
	if err := e.world.AttachSystem(sys); err != nil {
		L.RaiseError("veldt.system %q: %v", label, err)
	}
	return 0
}

func (e *Engine) luaSpawn(L *lua.LState) int {
	components := make(map[ecs.Kind]any)
	if tbl, ok := L.Get(1).(*lua.LTable); ok {
		tbl.ForEach(func(k, v lua.LValue) {
			components[ecs.Kind(lua.LVAsString(k))] = fromLua(v)
		})
	}
	id := e.world.Spawn(components)
	L.Push(lua.LNumber(id))
	return 1
}

func (e *Engine) luaGet(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	kind := ecs.Kind(L.CheckString(2))
	v, ok := e.world.Entities.Component(id, kind)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, v))
	return 1
}

func (e *Engine) luaSet(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	kind := ecs.Kind(L.CheckString(2))
	value := fromLua(L.CheckAny(3))
	if err := e.world.Entities.AddComponent(id, kind, value); err != nil {
		L.RaiseError("veldt.set: %v", err)
	}
	return 0
}

func (e *Engine) luaRemove(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	kind := ecs.Kind(L.CheckString(2))
	if err := e.world.Entities.RemoveComponent(id, kind); err != nil {
		L.RaiseError("veldt.remove: %v", err)
	}
	return 0
}

func (e *Engine) luaRemoveEntity(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	cascade := true
	if L.GetTop() >= 2 {
		cascade = lua.LVAsBool(L.Get(2))
	}
	if err := e.world.Entities.RemoveEntity(id, cascade); err != nil {
		L.RaiseError("veldt.remove_entity: %v", err)
	}
	return 0
}

// luaDespawn is the deferred counterpart: the removal queues on the command
// buffer and applies at end of frame.
func (e *Engine) luaDespawn(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	cascade := true
	if L.GetTop() >= 2 {
		cascade = lua.LVAsBool(L.Get(2))
	}
	e.world.DeferRemoveEntity(id, cascade)
	return 0
}

func (e *Engine) luaSetParent(L *lua.LState) int {
	child := ecs.EntityID(L.CheckNumber(1))
	parent := ecs.EntityID(L.CheckNumber(2))
	if err := e.world.Entities.SetParent(child, parent); err != nil {
		L.RaiseError("veldt.set_parent: %v", err)
	}
	return 0
}

func (e *Engine) luaMarkChanged(L *lua.LState) int {
	id := ecs.EntityID(L.CheckNumber(1))
	kind := ecs.Kind(L.CheckString(2))
	if err := e.world.Entities.MarkChanged(id, kind); err != nil {
		L.RaiseError("veldt.mark_changed: %v", err)
	}
	return 0
}

func (e *Engine) luaPublish(L *lua.LState) int {
	name := L.CheckString(1)
	data := map[string]any{}
	if tbl, ok := L.Get(2).(*lua.LTable); ok {
		data = tableToMap(tbl)
	}
	event.Publish(e.world.Bus, ScriptEvent{Name: name, Data: data})
	return 0
}

func parsePhase(name string) (world.Phase, error) {
	switch name {
	case "preUpdate":
		return world.PhasePreUpdate, nil
	case "fixedUpdate":
		return world.PhaseFixedUpdate, nil
	case "", "update":
		return world.PhaseUpdate, nil
	case "postUpdate":
		return world.PhasePostUpdate, nil
	case "render":
		return world.PhaseRender, nil
	default:
		return 0, fmt.Errorf("unknown phase %q", name)
	}
}

func kindList(v lua.LValue) []ecs.Kind {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []ecs.Kind
	for i := 1; i <= tbl.MaxN(); i++ {
		out = append(out, ecs.Kind(lua.LVAsString(tbl.RawGetInt(i))))
	}
	return out
}

// fromLua converts a Lua value to the Go shape the store holds: numbers to
// float64, array-like tables to []any, everything else table-shaped to
// map[string]any.
func fromLua(v lua.LValue) any {
	switch lv := v.(type) {
	case lua.LBool:
		return bool(lv)
	case lua.LNumber:
		return float64(lv)
	case lua.LString:
		return string(lv)
	case *lua.LTable:
		if n := lv.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(lv.RawGetInt(i)))
			}
			return out
		}
		return tableToMap(lv)
	default:
		return nil
	}
}

func tableToMap(tbl *lua.LTable) map[string]any {
	out := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		out[lua.LVAsString(k)] = fromLua(v)
	})
	return out
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch gv := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(gv)
	case int:
		return lua.LNumber(gv)
	case int64:
		return lua.LNumber(gv)
	case float64:
		return lua.LNumber(gv)
	case string:
		return lua.LString(gv)
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range gv {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, item := range gv {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", gv))
	}
}
