// Package event provides the typed synchronous publish/subscribe bus used by
// the world. Publishing dispatches to all currently-subscribed handlers
// before control returns to the publisher; there is no buffering between
// frames. Handler panics are not caught here; the subscribing layer decides.
package event

import "reflect"

// Bus routes events to handlers keyed by the event's concrete type.
type Bus struct {
	handlers map[reflect.Type][]entry
	nextID   int
}

type entry struct {
	id int
	fn func(any)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]entry)}
}

// Subscribe registers a typed handler and returns its unsubscribe function.
// Handlers run in registration order.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	t := reflect.TypeFor[T]()
	return b.subscribe(t, func(ev any) { fn(ev.(T)) })
}

// Once registers a handler that unsubscribes itself after its first delivery.
func Once[T any](b *Bus, fn func(T)) func() {
	t := reflect.TypeFor[T]()
	var unsub func()
	fired := false
	unsub = b.subscribe(t, func(ev any) {
		if fired {
			return
		}
		fired = true
		unsub()
		fn(ev.(T))
	})
	return unsub
}

// Publish delivers ev synchronously to every handler subscribed for T, over a
// snapshot of the subscriber list: handlers unsubscribing mid-dispatch do not
// skip their siblings.
func Publish[T any](b *Bus, ev T) {
	t := reflect.TypeFor[T]()
	for _, e := range b.handlers[t] {
		e.fn(ev)
	}
}

// SubscribeAny registers an untyped handler for events of dynamic type t.
// The world uses this to wire system descriptors whose handlers are built at
// attach time.
func (b *Bus) SubscribeAny(t reflect.Type, fn func(any)) func() {
	return b.subscribe(t, fn)
}

// PublishAny delivers an event whose type is only known dynamically.
func (b *Bus) PublishAny(ev any) {
	t := reflect.TypeOf(ev)
	for _, e := range b.handlers[t] {
		e.fn(ev)
	}
}

func (b *Bus) subscribe(t reflect.Type, fn func(any)) func() {
	id := b.nextID
	b.nextID++
	b.handlers[t] = append(b.handlers[t], entry{id: id, fn: fn})
	return func() { b.remove(t, id) }
}

// remove swaps in a filtered copy so an in-flight dispatch keeps iterating
// the snapshot it captured.
func (b *Bus) remove(t reflect.Type, id int) {
	old := b.handlers[t]
	filtered := make([]entry, 0, len(old))
	for _, e := range old {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		delete(b.handlers, t)
	} else {
		b.handlers[t] = filtered
	}
}
