package coroutine

import (
	"slices"

	"github.com/veldt-engine/veldt/internal/core/ecs"
)

// Handle identifies one started routine.
type Handle uint64

type running struct {
	handle Handle
	entity ecs.EntityID
	r      Routine
}

// Manager associates routines with entities and resumes each live routine
// once per Tick, in start order.
type Manager struct {
	nextHandle Handle
	order      []Handle
	byHandle   map[Handle]*running
	byEntity   map[ecs.EntityID][]Handle
}

func NewManager() *Manager {
	return &Manager{
		byHandle: make(map[Handle]*running, 32),
		byEntity: make(map[ecs.EntityID][]Handle, 32),
	}
}

// Start attaches r to the entity and returns its handle.
func (m *Manager) Start(entity ecs.EntityID, r Routine) Handle {
	m.nextHandle++
	h := m.nextHandle
	m.byHandle[h] = &running{handle: h, entity: entity, r: r}
	m.byEntity[entity] = append(m.byEntity[entity], h)
	m.order = append(m.order, h)
	return h
}

// Cancel forces the routine's cleanup path and detaches it. Returns false if
// the handle is not live.
func (m *Manager) Cancel(h Handle) bool {
	run, ok := m.byHandle[h]
	if !ok {
		return false
	}
	m.detach(run)
	run.r.Cleanup()
	return true
}

// CancelEntity cancels every routine attached to the entity.
func (m *Manager) CancelEntity(entity ecs.EntityID) {
	handles := m.byEntity[entity]
	for i := len(handles) - 1; i >= 0; i-- {
		m.Cancel(handles[i])
	}
}

// Len returns the number of live routines.
func (m *Manager) Len() int {
	return len(m.byHandle)
}

// Tick resumes every live routine once, in start order. Routines started
// during the pass first run next frame; routines finishing naturally are
// detached without cleanup.
func (m *Manager) Tick(dt float64) {
	// detach splices m.order in place, so the pass needs its own copy.
	snapshot := slices.Clone(m.order)
	for _, h := range snapshot {
		run, ok := m.byHandle[h]
		if !ok {
			continue // cancelled mid-pass
		}
		if run.r.Tick(dt) == Done {
			m.detach(run)
		}
	}
}

func (m *Manager) detach(run *running) {
	delete(m.byHandle, run.handle)
	handles := m.byEntity[run.entity]
	for i, h := range handles {
		if h == run.handle {
			handles = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	if len(handles) == 0 {
		delete(m.byEntity, run.entity)
	} else {
		m.byEntity[run.entity] = handles
	}
	for i, h := range m.order {
		if h == run.handle {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
