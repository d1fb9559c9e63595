package ecs

// EntityID encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. The generation increments when a slot is
// recycled, so an id handed out for a live entity is never seen again once
// that entity dies: stale handles fail the Alive check instead of aliasing
// a newer entity.
type EntityID uint64

func newEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// entityPool allocates entity ids from a generational arena with a free list.
// Slot 0 is reserved so the zero EntityID stays an unambiguous sentinel.
type entityPool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
	liveCount   int
}

func newEntityPool() *entityPool {
	return &entityPool{
		generations: make([]uint32, 1, 1024),
		freeList:    make([]uint32, 0, 256),
		nextIndex:   1,
	}
}

func (p *entityPool) create() EntityID {
	p.liveCount++
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return newEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return newEntityID(idx, p.generations[idx])
}

func (p *entityPool) alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *entityPool) destroy(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex || p.generations[idx] != id.Generation() {
		return false // already destroyed (stale reference)
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
	p.liveCount--
	return true
}
