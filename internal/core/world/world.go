// Package world composes the engine: entity store, event bus, resources,
// reactive queries, command buffer, coroutines, and the per-frame scheduler
// that orders and gates system execution. One World is one logical thread of
// control; nothing here is safe for concurrent use.
package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/veldt-engine/veldt/internal/core/command"
	"github.com/veldt-engine/veldt/internal/core/coroutine"
	"github.com/veldt-engine/veldt/internal/core/ecs"
	"github.com/veldt-engine/veldt/internal/core/event"
	"github.com/veldt-engine/veldt/internal/core/reactive"
	"github.com/veldt-engine/veldt/internal/core/resource"
)

var (
	ErrDuplicateSystem = errors.New("world: system label already attached")
	ErrUnknownSystem   = errors.New("world: no such system")
	ErrEmptyLabel      = errors.New("world: system label must not be empty")
)

// AssetProvider is the loading collaborator the scheduler gates on. It only
// ever reads IsLoaded.
type AssetProvider interface {
	IsLoaded(key string) bool
}

// ScreenProvider reports the current screen name, if any, for allow/deny
// gating.
type ScreenProvider interface {
	Current() (string, bool)
}

// Options configures a World. Zero values get sensible defaults.
type Options struct {
	Logger        *zap.Logger
	Assets        AssetProvider
	Screens       ScreenProvider
	FixedTimestep float64 // seconds per FixedUpdate step, default 1/50
	MaxFixedSteps int     // accumulator clamp, default 5
}

// World owns every engine subsystem and the registered systems.
type World struct {
	Entities   *ecs.Manager
	Bus        *event.Bus
	Resources  *resource.Manager
	Reactive   *reactive.Manager
	Commands   *command.Buffer
	Coroutines *coroutine.Manager

	log     *zap.Logger
	assets  AssetProvider
	screens ScreenProvider

	systems        []*attached
	labels         map[string]*attached
	nextSeq        int
	disabledGroups map[string]struct{}

	fixedStep     float64
	maxFixedSteps int
	accumulator   float64
	prevVersion   uint64
	frame         uint64
}

func New(opts Options) *World {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FixedTimestep <= 0 {
		opts.FixedTimestep = 1.0 / 50.0
	}
	if opts.MaxFixedSteps <= 0 {
		opts.MaxFixedSteps = 5
	}
	entities := ecs.NewManager(log)
	w := &World{
		Entities:       entities,
		Bus:            event.NewBus(),
		Resources:      resource.NewManager(log),
		Reactive:       reactive.NewManager(entities, log),
		Commands:       command.NewBuffer(log),
		Coroutines:     coroutine.NewManager(),
		log:            log,
		assets:         opts.Assets,
		screens:        opts.Screens,
		labels:         make(map[string]*attached, 16),
		disabledGroups: make(map[string]struct{}, 4),
		fixedStep:      opts.FixedTimestep,
		maxFixedSteps:  opts.MaxFixedSteps,
	}
	// A destroyed entity takes its routines with it, through their cleanup
	// path.
	entities.OnAfterEntityRemoved(func(id ecs.EntityID) {
		w.Coroutines.CancelEntity(id)
	})
	return w
}

func (w *World) Logger() *zap.Logger { return w.log }

// Frame returns the number of completed Update calls.
func (w *World) Frame() uint64 { return w.frame }

// ChangedThreshold is the change-counter value as of the end of the previous
// frame; queries evaluated with it see everything stamped since then.
func (w *World) ChangedThreshold() uint64 { return w.prevVersion }

// AttachSystem registers a system, wires its event handlers, and runs its
// Initialize callback. Labels are unique.
func (w *World) AttachSystem(sys System) error {
	if sys.Label == "" {
		return ErrEmptyLabel
	}
	if _, ok := w.labels[sys.Label]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Label)
	}
	a := &attached{sys: sys, seq: w.nextSeq}
	w.nextSeq++
	for _, h := range sys.Events {
		a.unsubs = append(a.unsubs, h.attach(w, w.Bus))
	}
	w.systems = append(w.systems, a)
	w.labels[sys.Label] = a
	if sys.Initialize != nil {
		sys.Initialize(w)
	}
	return nil
}

// DetachSystem tears down the system's event handlers, runs its Detach
// callback, and removes it.
func (w *World) DetachSystem(label string) error {
	a, ok := w.labels[label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, label)
	}
	for _, unsub := range a.unsubs {
		unsub()
	}
	if a.sys.Detach != nil {
		a.sys.Detach(w)
	}
	delete(w.labels, label)
	for i, other := range w.systems {
		if other == a {
			w.systems = append(w.systems[:i], w.systems[i+1:]...)
			break
		}
	}
	return nil
}

// HasSystem reports whether a label is attached.
func (w *World) HasSystem(label string) bool {
	_, ok := w.labels[label]
	return ok
}

// EnableGroup re-enables a system group. Groups are enabled by default.
func (w *World) EnableGroup(name string) {
	delete(w.disabledGroups, name)
}

// DisableGroup skips every system carrying the group until re-enabled.
func (w *World) DisableGroup(name string) {
	w.disabledGroups[name] = struct{}{}
}

func (w *World) GroupEnabled(name string) bool {
	_, disabled := w.disabledGroups[name]
	return !disabled
}

// Spawn creates an entity and attaches the given components under one
// mutation batch. Every initial component is auto-marked changed.
func (w *World) Spawn(components map[ecs.Kind]any) ecs.EntityID {
	id := w.Entities.CreateEntity()
	if len(components) > 0 {
		// The entity was just created; AddComponents cannot fail.
		_ = w.Entities.AddComponents(id, components)
	}
	return id
}

// Defer queues an arbitrary mutation for end-of-frame playback.
func (w *World) Defer(label string, fn func(w *World) error) {
	w.Commands.Push(label, func() error { return fn(w) })
}

// DeferSpawn queues an entity spawn.
func (w *World) DeferSpawn(components map[ecs.Kind]any) {
	w.Commands.Push("spawn", func() error {
		w.Spawn(components)
		return nil
	})
}

// DeferRemoveEntity queues an entity removal.
func (w *World) DeferRemoveEntity(id ecs.EntityID, cascade bool) {
	w.Commands.Push("removeEntity", func() error {
		return w.Entities.RemoveEntity(id, cascade)
	})
}

// DeferAddComponent queues a component attach.
func (w *World) DeferAddComponent(id ecs.EntityID, kind ecs.Kind, value any) {
	w.Commands.Push("addComponent", func() error {
		return w.Entities.AddComponent(id, kind, value)
	})
}

// DeferRemoveComponent queues a component detach.
func (w *World) DeferRemoveComponent(id ecs.EntityID, kind ecs.Kind) {
	w.Commands.Push("removeComponent", func() error {
		return w.Entities.RemoveComponent(id, kind)
	})
}

// DeferSetParent queues a reparent.
func (w *World) DeferSetParent(child, parent ecs.EntityID) {
	w.Commands.Push("setParent", func() error {
		return w.Entities.SetParent(child, parent)
	})
}

// DeferMarkChanged queues a change stamp.
func (w *World) DeferMarkChanged(id ecs.EntityID, kind ecs.Kind) {
	w.Commands.Push("markChanged", func() error {
		return w.Entities.MarkChanged(id, kind)
	})
}
