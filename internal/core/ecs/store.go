package ecs

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
)

// Kind identifies a component type. Component values are opaque to the store;
// they are owned by it from AddComponent until replacement or removal.
type Kind string

// Disposer releases a component value when the store lets go of it. Panics
// are recovered and logged, never propagated.
type Disposer func(value any, id EntityID)

// Manager is the entity/component store. One column map per Kind doubles as
// the component index, so membership in the index and presence of a value are
// the same fact. All counters are instance state: constructing a new Manager
// is the only reset boundary.
type Manager struct {
	pool      *entityPool
	alive     map[EntityID]struct{}
	columns   map[Kind]map[EntityID]any
	stamps    map[Kind]map[EntityID]uint64
	disposers map[Kind]Disposer
	version   uint64
	hier      *Hierarchy
	log       *zap.Logger

	batchDepth   int
	batchTouched []EntityID
	batchSeen    map[EntityID]struct{}

	componentAdded        hookList[ComponentHook]
	afterComponentAdded   hookList[ComponentHook]
	componentRemoved      hookList[ComponentHook]
	afterComponentRemoved hookList[ComponentHook]
	afterEntityMutated    hookList[EntityHook]
	beforeEntityRemoved   hookList[EntityHook]
	afterEntityRemoved    hookList[EntityHook]
	afterParentChanged    hookList[ParentHook]
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		pool:      newEntityPool(),
		alive:     make(map[EntityID]struct{}, 256),
		columns:   make(map[Kind]map[EntityID]any, 16),
		stamps:    make(map[Kind]map[EntityID]uint64, 16),
		disposers: make(map[Kind]Disposer, 16),
		hier:      NewHierarchy(),
		batchSeen: make(map[EntityID]struct{}, 8),
		log:       log,
	}
}

// CreateEntity allocates a fresh entity with no components. Never fails.
func (m *Manager) CreateEntity() EntityID {
	id := m.pool.create()
	m.alive[id] = struct{}{}
	return id
}

func (m *Manager) Alive(id EntityID) bool {
	_, ok := m.alive[id]
	return ok
}

// Len returns the number of live entities.
func (m *Manager) Len() int {
	return m.pool.liveCount
}

// Entities returns all live entity ids in ascending order.
func (m *Manager) Entities() []EntityID {
	return slices.Sorted(maps.Keys(m.alive))
}

// Component returns the stored value for (id, kind).
func (m *Manager) Component(id EntityID, kind Kind) (any, bool) {
	v, ok := m.columns[kind][id]
	return v, ok
}

func (m *Manager) HasComponent(id EntityID, kind Kind) bool {
	_, ok := m.columns[kind][id]
	return ok
}

// Get retrieves a component as a concrete type.
func Get[T any](m *Manager, id EntityID, kind Kind) (T, bool) {
	v, ok := m.Component(id, kind)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// RegisterDisposer installs the dispose callback invoked whenever a value of
// this kind is replaced or removed, or its entity destroyed. Replaces any
// previous disposer for the kind.
func (m *Manager) RegisterDisposer(kind Kind, fn Disposer) {
	m.disposers[kind] = fn
}

// AddComponent attaches value under kind. Replacing an existing value runs
// its disposer first; the operation is a replacement, not remove-then-add, so
// the index never flickers and removed hooks stay silent. The component is
// auto-marked changed.
func (m *Manager) AddComponent(id EntityID, kind Kind, value any) error {
	if !m.Alive(id) {
		return fmt.Errorf("add component %q: %w", kind, ErrDeadEntity)
	}
	m.beginBatch()
	defer m.endBatch()
	m.addComponent(id, kind, value)
	return nil
}

// AddComponents attaches every entry under one mutation batch, so the
// entity-mutated hook fires once no matter how many kinds were set. Entries
// are applied in sorted kind order for determinism.
func (m *Manager) AddComponents(id EntityID, components map[Kind]any) error {
	if !m.Alive(id) {
		return fmt.Errorf("add components: %w", ErrDeadEntity)
	}
	m.beginBatch()
	defer m.endBatch()
	for _, kind := range slices.Sorted(maps.Keys(components)) {
		m.addComponent(id, kind, components[kind])
	}
	return nil
}

func (m *Manager) addComponent(id EntityID, kind Kind, value any) {
	m.touch(id)
	col := m.column(kind)
	if old, ok := col[id]; ok {
		m.dispose(kind, id, old)
	}
	col[id] = value
	m.stamp(id, kind)
	dispatchComponent(m.componentAdded.snapshot(), id, kind, value)
	dispatchComponent(m.afterComponentAdded.snapshot(), id, kind, value)
}

// RemoveComponent detaches kind from the entity. Absent kinds are a no-op:
// no dispose, no hooks. Otherwise dispose runs first, then the removed
// subscribers see the value while it is still indexed, then it is deleted.
func (m *Manager) RemoveComponent(id EntityID, kind Kind) error {
	if !m.Alive(id) {
		return fmt.Errorf("remove component %q: %w", kind, ErrDeadEntity)
	}
	col := m.columns[kind]
	value, ok := col[id]
	if !ok {
		return nil
	}
	m.beginBatch()
	defer m.endBatch()
	m.touch(id)
	m.dispose(kind, id, value)
	dispatchComponent(m.componentRemoved.snapshot(), id, kind, value)
	delete(col, id)
	m.clearStamp(id, kind)
	dispatchComponent(m.afterComponentRemoved.snapshot(), id, kind, value)
	return nil
}

// RemoveEntity destroys the entity. With cascade, the whole subtree goes:
// before-removal hooks fire for every descendant (deepest first) and then for
// the entity itself, all before any deletion, so hooks may still read
// component data. Without cascade, direct children are orphaned instead.
func (m *Manager) RemoveEntity(id EntityID, cascade bool) error {
	if !m.Alive(id) {
		return fmt.Errorf("remove entity: %w", ErrDeadEntity)
	}
	if !cascade {
		dispatchEntity(m.beforeEntityRemoved.snapshot(), id)
		m.destroy(id)
		return nil
	}
	descendants := m.hier.Descendants(id)
	for i := len(descendants) - 1; i >= 0; i-- {
		dispatchEntity(m.beforeEntityRemoved.snapshot(), descendants[i])
	}
	dispatchEntity(m.beforeEntityRemoved.snapshot(), id)
	for i := len(descendants) - 1; i >= 0; i-- {
		m.destroy(descendants[i])
	}
	m.destroy(id)
	return nil
}

// destroy disposes the entity's components, clears its stamps and hierarchy
// links, and releases the id slot. A before-removal hook may itself remove a
// collected descendant, so an already-dead id is a no-op.
func (m *Manager) destroy(id EntityID) {
	if !m.Alive(id) {
		return
	}
	for _, kind := range slices.Sorted(maps.Keys(m.columns)) {
		col := m.columns[kind]
		if value, ok := col[id]; ok {
			m.dispose(kind, id, value)
			delete(col, id)
		}
	}
	for _, st := range m.stamps {
		delete(st, id)
	}
	_, _, orphans := m.hier.Remove(id)
	m.pool.destroy(id)
	delete(m.alive, id)
	dispatchEntity(m.afterEntityRemoved.snapshot(), id)
	for _, orphan := range orphans {
		if m.Alive(orphan) {
			dispatchParent(m.afterParentChanged.snapshot(), orphan, 0, false)
		}
	}
}

// SetParent attaches child under parent in the hierarchy. Both must be alive;
// self-parenting and cycles are rejected by the hierarchy.
func (m *Manager) SetParent(child, parent EntityID) error {
	if !m.Alive(child) || !m.Alive(parent) {
		return fmt.Errorf("set parent: %w", ErrDeadEntity)
	}
	if err := m.hier.SetParent(child, parent); err != nil {
		return err
	}
	dispatchParent(m.afterParentChanged.snapshot(), child, parent, true)
	return nil
}

// ClearParent detaches child from its parent, if any.
func (m *Manager) ClearParent(child EntityID) error {
	if !m.Alive(child) {
		return fmt.Errorf("clear parent: %w", ErrDeadEntity)
	}
	if _, ok := m.hier.Parent(child); !ok {
		return nil
	}
	m.hier.ClearParent(child)
	dispatchParent(m.afterParentChanged.snapshot(), child, 0, false)
	return nil
}

func (m *Manager) Parent(id EntityID) (EntityID, bool)  { return m.hier.Parent(id) }
func (m *Manager) Children(id EntityID) []EntityID      { return m.hier.Children(id) }
func (m *Manager) Descendants(id EntityID) []EntityID   { return m.hier.Descendants(id) }
func (m *Manager) RootEntities() []EntityID             { return m.hier.Roots() }
func (m *Manager) HierarchyView() *Hierarchy            { return m.hier }

func (m *Manager) column(kind Kind) map[EntityID]any {
	col, ok := m.columns[kind]
	if !ok {
		col = make(map[EntityID]any, 64)
		m.columns[kind] = col
	}
	return col
}

func (m *Manager) dispose(kind Kind, id EntityID, value any) {
	fn, ok := m.disposers[kind]
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("component disposer panicked",
				zap.String("kind", string(kind)),
				zap.Uint64("entity", uint64(id)),
				zap.Any("panic", r))
		}
	}()
	fn(value, id)
}

// beginBatch/endBatch implement the mutation batching counter: recursive
// additions from lifecycle hooks nest, and the entity-mutated hook fires once
// per touched entity when the outermost call unwinds.
func (m *Manager) beginBatch() {
	m.batchDepth++
}

func (m *Manager) endBatch() {
	m.batchDepth--
	if m.batchDepth > 0 {
		return
	}
	touched := m.batchTouched
	m.batchTouched = nil
	clear(m.batchSeen)
	for _, id := range touched {
		dispatchEntity(m.afterEntityMutated.snapshot(), id)
	}
}

func (m *Manager) touch(id EntityID) {
	if _, ok := m.batchSeen[id]; ok {
		return
	}
	m.batchSeen[id] = struct{}{}
	m.batchTouched = append(m.batchTouched, id)
}

func dispatchComponent(snapshot []hookEntry[ComponentHook], id EntityID, kind Kind, value any) {
	for _, e := range snapshot {
		e.fn(id, kind, value)
	}
}

func dispatchEntity(snapshot []hookEntry[EntityHook], id EntityID) {
	for _, e := range snapshot {
		e.fn(id)
	}
}

func dispatchParent(snapshot []hookEntry[ParentHook], child, parent EntityID, hasParent bool) {
	for _, e := range snapshot {
		e.fn(child, parent, hasParent)
	}
}
