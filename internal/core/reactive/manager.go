// Package reactive tracks named queries whose matching sets fire enter/exit
// callbacks as entities move in and out of them. Re-evaluation rides the
// store's structural hooks, so live mutations and command-buffer playback
// both trigger it.
package reactive

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/veldt-engine/veldt/internal/core/ecs"
)

var (
	ErrDuplicateQuery     = errors.New("reactive: query name already registered")
	ErrChangedUnsupported = errors.New("reactive: Changed clauses are not supported in reactive queries")
)

// Callback receives only the entity id; on exit the entity may already be
// gone.
type Callback func(id ecs.EntityID)

type reactiveQuery struct {
	query    ecs.Query
	onEnter  Callback
	onExit   Callback
	matching map[ecs.EntityID]struct{}
}

// Manager owns the registered reactive queries.
type Manager struct {
	store          *ecs.Manager
	log            *zap.Logger
	queries        map[string]*reactiveQuery
	order          []string
	parentHasCount int
	unsubs         []func()
}

func NewManager(store *ecs.Manager, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		store:   store,
		log:     log,
		queries: make(map[string]*reactiveQuery, 8),
	}
	m.unsubs = append(m.unsubs,
		store.OnAfterComponentAdded(func(id ecs.EntityID, _ ecs.Kind, _ any) { m.structural(id) }),
		store.OnAfterComponentRemoved(func(id ecs.EntityID, _ ecs.Kind, _ any) { m.structural(id) }),
		store.OnAfterEntityRemoved(m.entityRemoved),
		store.OnAfterParentChanged(func(child, _ ecs.EntityID, _ bool) { m.recheck(child) }),
	)
	return m
}

// Close detaches the manager from the store's hooks.
func (m *Manager) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

// Register adds a named reactive query and seeds it against the current
// store, firing onEnter for every pre-existing match. Duplicate names and
// Changed clauses are usage errors. Either callback may be nil.
func (m *Manager) Register(name string, q ecs.Query, onEnter, onExit Callback) error {
	if _, ok := m.queries[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateQuery, name)
	}
	if len(q.Changed) > 0 {
		return fmt.Errorf("%w: %q", ErrChangedUnsupported, name)
	}
	rq := &reactiveQuery{
		query:    q,
		onEnter:  onEnter,
		onExit:   onExit,
		matching: make(map[ecs.EntityID]struct{}, 16),
	}
	m.queries[name] = rq
	m.order = append(m.order, name)
	if len(q.ParentHas) > 0 {
		m.parentHasCount++
	}
	for _, id := range m.store.EntitiesMatching(q, 0) {
		rq.matching[id] = struct{}{}
		m.fire(name, rq.onEnter, id)
	}
	return nil
}

// Unregister drops a named query without firing exits.
func (m *Manager) Unregister(name string) {
	rq, ok := m.queries[name]
	if !ok {
		return
	}
	if len(rq.query.ParentHas) > 0 {
		m.parentHasCount--
	}
	delete(m.queries, name)
	if i := slices.Index(m.order, name); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

// Matching returns the current matching set of a named query, sorted.
func (m *Manager) Matching(name string) []ecs.EntityID {
	rq, ok := m.queries[name]
	if !ok {
		return nil
	}
	out := make([]ecs.EntityID, 0, len(rq.matching))
	for id := range rq.matching {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// structural handles a component add/remove on id. When any registered query
// filters on ParentHas, the mutated entity's direct children must be
// re-checked too: their parent's component set just changed.
func (m *Manager) structural(id ecs.EntityID) {
	m.recheck(id)
	if m.parentHasCount == 0 {
		return
	}
	for _, child := range m.store.Children(id) {
		m.recheck(child)
	}
}

// recheck and entityRemoved iterate a copy of the registration order: a
// callback may Unregister a query mid-pass, which splices m.order in place.
// Names no longer in m.queries are skipped.
func (m *Manager) recheck(id ecs.EntityID) {
	for _, name := range slices.Clone(m.order) {
		rq, ok := m.queries[name]
		if !ok {
			continue
		}
		_, was := rq.matching[id]
		now := m.store.Matches(id, rq.query, 0)
		switch {
		case now && !was:
			rq.matching[id] = struct{}{}
			m.fire(name, rq.onEnter, id)
		case !now && was:
			delete(rq.matching, id)
			m.fire(name, rq.onExit, id)
		}
	}
}

func (m *Manager) entityRemoved(id ecs.EntityID) {
	for _, name := range slices.Clone(m.order) {
		rq, ok := m.queries[name]
		if !ok {
			continue
		}
		if _, was := rq.matching[id]; was {
			delete(rq.matching, id)
			m.fire(name, rq.onExit, id)
		}
	}
}

// fire isolates one bad callback from the rest of the pass.
func (m *Manager) fire(name string, cb Callback, id ecs.EntityID) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("reactive callback panicked",
				zap.String("query", name),
				zap.Uint64("entity", uint64(id)),
				zap.Any("panic", r))
		}
	}()
	cb(id)
}
