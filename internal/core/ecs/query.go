package ecs

import (
	"fmt"
	"slices"
)

// Query is a declarative entity filter. With requires every listed kind
// (AND), Without excludes, Changed matches when at least one listed kind has
// a stamp newer than the caller's threshold (OR), and ParentHas requires
// every listed kind on the entity's direct parent, never transitively.
// Optional kinds are part of the result shape only and never affect matching.
type Query struct {
	With      []Kind
	Without   []Kind
	Optional  []Kind
	Changed   []Kind
	ParentHas []Kind
}

// EntitiesMatching evaluates q against the live store. With a non-empty With
// list the smallest matching column is iterated as the candidate set, so work
// is bounded by the smallest relevant index rather than a full table scan.
// Results are sorted ascending by id for deterministic frame behavior.
func (m *Manager) EntitiesMatching(q Query, changedSince uint64) []EntityID {
	var out []EntityID
	if len(q.With) > 0 {
		best := q.With[0]
		for _, kind := range q.With[1:] {
			if len(m.columns[kind]) < len(m.columns[best]) {
				best = kind
			}
		}
		for id := range m.columns[best] {
			if m.matches(id, q, changedSince) {
				out = append(out, id)
			}
		}
	} else {
		for id := range m.alive {
			if m.matches(id, q, changedSince) {
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (m *Manager) matches(id EntityID, q Query, changedSince uint64) bool {
	for _, kind := range q.With {
		if _, ok := m.columns[kind][id]; !ok {
			return false
		}
	}
	for _, kind := range q.Without {
		if _, ok := m.columns[kind][id]; ok {
			return false
		}
	}
	if len(q.Changed) > 0 {
		newer := false
		for _, kind := range q.Changed {
			if m.stamps[kind][id] > changedSince {
				newer = true
				break
			}
		}
		if !newer {
			return false
		}
	}
	if len(q.ParentHas) > 0 {
		parent, ok := m.hier.Parent(id)
		if !ok {
			return false
		}
		for _, kind := range q.ParentHas {
			if _, ok := m.columns[kind][parent]; !ok {
				return false
			}
		}
	}
	return true
}

// Matches reports whether a single live entity satisfies q. Dead entities
// never match.
func (m *Manager) Matches(id EntityID, q Query, changedSince uint64) bool {
	if !m.Alive(id) {
		return false
	}
	return m.matches(id, q, changedSince)
}

// Singleton returns the one entity holding every listed kind. Zero matches
// and multiple matches are both hard errors: callers asserting singleton
// semantics want to fail loudly.
func (m *Manager) Singleton(with ...Kind) (EntityID, error) {
	ids := m.EntitiesMatching(Query{With: with}, 0)
	switch len(ids) {
	case 0:
		return 0, fmt.Errorf("singleton %v: %w", with, ErrNoMatch)
	case 1:
		return ids[0], nil
	default:
		return 0, fmt.Errorf("singleton %v: %d entities: %w", with, len(ids), ErrMultipleMatch)
	}
}
