package ecs

// hookList holds subscribers for one lifecycle hook. Dispatch iterates the
// slice header captured at call time; unsubscribe swaps in a filtered copy,
// so removing a hook mid-dispatch never skips the remaining subscribers of
// the in-flight pass.
type hookList[F any] struct {
	entries []hookEntry[F]
	nextID  int
}

type hookEntry[F any] struct {
	id int
	fn F
}

func (h *hookList[F]) add(fn F) func() {
	id := h.nextID
	h.nextID++
	h.entries = append(h.entries, hookEntry[F]{id: id, fn: fn})
	return func() { h.remove(id) }
}

func (h *hookList[F]) remove(id int) {
	filtered := make([]hookEntry[F], 0, len(h.entries))
	for _, e := range h.entries {
		if e.id != id {
			filtered = append(filtered, e)
		}
	}
	h.entries = filtered
}

func (h *hookList[F]) snapshot() []hookEntry[F] {
	return h.entries
}

// ComponentHook observes a single component on a single entity.
type ComponentHook func(id EntityID, kind Kind, value any)

// EntityHook observes an entity-level event.
type EntityHook func(id EntityID)

// ParentHook observes a parent reassignment. hasParent is false when the
// child was detached rather than re-attached.
type ParentHook func(child, parent EntityID, hasParent bool)

// OnComponentAdded fires after a component value is stored and indexed.
func (m *Manager) OnComponentAdded(fn ComponentHook) func() {
	return m.componentAdded.add(fn)
}

// OnAfterComponentAdded fires after the added subscribers have run. Hooks
// registered here may add further components; the mutation batch absorbs the
// recursion.
func (m *Manager) OnAfterComponentAdded(fn ComponentHook) func() {
	return m.afterComponentAdded.add(fn)
}

// OnComponentRemoved fires after dispose but before the value leaves the
// index, so subscribers may still read sibling components.
func (m *Manager) OnComponentRemoved(fn ComponentHook) func() {
	return m.componentRemoved.add(fn)
}

// OnAfterComponentRemoved fires once the value has left the index.
func (m *Manager) OnAfterComponentRemoved(fn ComponentHook) func() {
	return m.afterComponentRemoved.add(fn)
}

// OnAfterEntityMutated fires exactly once per externally-initiated mutation
// batch for every entity the batch touched.
func (m *Manager) OnAfterEntityMutated(fn EntityHook) func() {
	return m.afterEntityMutated.add(fn)
}

// OnBeforeEntityRemoved fires before any deletion happens, so subscribers may
// still read the doomed entity's components.
func (m *Manager) OnBeforeEntityRemoved(fn EntityHook) func() {
	return m.beforeEntityRemoved.add(fn)
}

// OnAfterEntityRemoved fires once the entity and its components are gone.
// Only the id remains meaningful.
func (m *Manager) OnAfterEntityRemoved(fn EntityHook) func() {
	return m.afterEntityRemoved.add(fn)
}

// OnAfterParentChanged fires after a SetParent or ClearParent takes effect.
func (m *Manager) OnAfterParentChanged(fn ParentHook) func() {
	return m.afterParentChanged.add(fn)
}
