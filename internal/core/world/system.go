package world

import (
	"reflect"

	"github.com/veldt-engine/veldt/internal/core/ecs"
	"github.com/veldt-engine/veldt/internal/core/event"
)

// Phase is one of the fixed ordered frame stages. Every frame executes the
// phases in declaration order; FixedUpdate alone runs on the accumulator
// clock and may execute zero or several times per outer frame.
type Phase int

const (
	PhasePreUpdate Phase = iota
	PhaseFixedUpdate
	PhaseUpdate
	PhasePostUpdate
	PhaseRender
)

func (p Phase) String() string {
	switch p {
	case PhasePreUpdate:
		return "preUpdate"
	case PhaseFixedUpdate:
		return "fixedUpdate"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "postUpdate"
	case PhaseRender:
		return "render"
	default:
		return "unknown"
	}
}

// Results holds, per named query, the live filtered entity ids computed
// against the current store state when the system ran.
type Results map[string][]ecs.EntityID

// System describes one unit of per-frame logic. Within a phase, higher
// Priority runs earlier; ties break by attach order. A system is skipped for
// the whole frame when any of its Groups is disabled, the current screen
// falls outside AllowScreens or inside DenyScreens, or any RequiredAssets key
// is not yet loaded.
type System struct {
	Label          string
	Priority       int
	Phase          Phase
	Groups         []string
	AllowScreens   []string
	DenyScreens    []string
	RequiredAssets []string
	Queries        map[string]ecs.Query
	Process        func(w *World, dt float64, results Results)
	Initialize     func(w *World)
	Detach         func(w *World)
	Events         []EventHandler
}

// EventHandler binds one typed event to a system. Built with OnEvent; wired
// on attach, torn down on detach.
type EventHandler struct {
	eventType reflect.Type
	attach    func(w *World, b *event.Bus) func()
}

// OnEvent declares a system event handler for events of type T. Dispatch is
// synchronous: publishing during system execution runs fn before control
// returns to the publisher.
func OnEvent[T any](fn func(ev T, w *World)) EventHandler {
	return EventHandler{
		eventType: reflect.TypeFor[T](),
		attach: func(w *World, b *event.Bus) func() {
			return event.Subscribe(b, func(ev T) { fn(ev, w) })
		},
	}
}

type attached struct {
	sys    System
	seq    int
	unsubs []func()
}
