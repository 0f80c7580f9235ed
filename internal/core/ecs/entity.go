package ecs

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Generations start at 1, so the zero EntityID never names a live entity.
type EntityID uint64

// NoEntity is the zero EntityID.
const NoEntity EntityID = 0

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32 { return uint32(id) }

func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

func (id EntityID) IsZero() bool { return id == 0 }

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	live        []bool
	freeList    []uint32
	count       int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		live:        make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	p.count++
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		p.live[idx] = true
		return NewEntityID(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	p.live = append(p.live, true)
	return NewEntityID(idx, 1)
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.live[idx] && p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	if !p.Alive(id) {
		return // already destroyed (stale reference)
	}
	idx := id.Index()
	p.generations[idx]++
	p.live[idx] = false
	p.freeList = append(p.freeList, idx)
	p.count--
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.count }

// Capacity is one past the highest index ever handed out.
func (p *EntityPool) Capacity() int { return len(p.generations) }

// At returns the current id for index i and whether it is live.
func (p *EntityPool) At(i uint32) (EntityID, bool) {
	if int(i) >= len(p.generations) || !p.live[i] {
		return NoEntity, false
	}
	return NewEntityID(i, p.generations[i]), true
}
