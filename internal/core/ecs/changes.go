package ecs

import (
	"errors"
	"fmt"
)

// ErrMissingComponent reports a Mutate call against a kind the entity does
// not hold.
var ErrMissingComponent = errors.New("ecs: entity does not hold component")

// Version returns the current value of the store's change counter. Capturing
// it at a frame boundary yields the threshold for Changed queries: a stamp
// recorded after the capture exceeds it, a stamp recorded before does not.
func (m *Manager) Version() uint64 {
	return m.version
}

// MarkChanged stamps (id, kind) with a fresh counter value. AddComponent and
// AddComponents stamp automatically; in-place mutation through a held
// reference does not, so callers doing that either call this or use Mutate.
func (m *Manager) MarkChanged(id EntityID, kind Kind) error {
	if !m.Alive(id) {
		return fmt.Errorf("mark changed %q: %w", kind, ErrDeadEntity)
	}
	m.stamp(id, kind)
	return nil
}

// Mutate runs fn against the stored value and re-stamps the component, so the
// change is visible to Changed queries without the caller remembering to mark
// it.
func (m *Manager) Mutate(id EntityID, kind Kind, fn func(value any)) error {
	if !m.Alive(id) {
		return fmt.Errorf("mutate %q: %w", kind, ErrDeadEntity)
	}
	value, ok := m.columns[kind][id]
	if !ok {
		return fmt.Errorf("mutate %q: %w", kind, ErrMissingComponent)
	}
	fn(value)
	m.stamp(id, kind)
	return nil
}

// Stamp returns the last-changed counter value for (id, kind), zero if never
// stamped.
func (m *Manager) Stamp(id EntityID, kind Kind) uint64 {
	return m.stamps[kind][id]
}

func (m *Manager) stamp(id EntityID, kind Kind) {
	m.version++
	st, ok := m.stamps[kind]
	if !ok {
		st = make(map[EntityID]uint64, 64)
		m.stamps[kind] = st
	}
	st[id] = m.version
}

func (m *Manager) clearStamp(id EntityID, kind Kind) {
	delete(m.stamps[kind], id)
}
