package world

import (
	"slices"

	"github.com/sectorgo/engine/internal/core/ecs"
	"github.com/sectorgo/engine/internal/level"
)

// Occupancy indexes entities by the subsector holding their position. Each
// subsector keeps its entities sorted by id so iteration is deterministic.
type Occupancy struct {
	cells [][]ecs.EntityID
	where map[ecs.EntityID]level.SubsectorID
}

func NewOccupancy(m *level.Map) *Occupancy {
	return &Occupancy{
		cells: make([][]ecs.EntityID, len(m.Subsectors)),
		where: make(map[ecs.EntityID]level.SubsectorID),
	}
}

// Add places an entity into a subsector, moving it if already indexed.
func (o *Occupancy) Add(id ecs.EntityID, ss level.SubsectorID) {
	if cur, ok := o.where[id]; ok {
		if cur == ss {
			return
		}
		o.remove(id, cur)
	}
	cell := o.cells[ss]
	i, _ := slices.BinarySearch(cell, id)
	o.cells[ss] = slices.Insert(cell, i, id)
	o.where[id] = ss
}

// Remove takes an entity out of the index.
func (o *Occupancy) Remove(id ecs.EntityID) {
	if cur, ok := o.where[id]; ok {
		o.remove(id, cur)
		delete(o.where, id)
	}
}

func (o *Occupancy) remove(id ecs.EntityID, ss level.SubsectorID) {
	cell := o.cells[ss]
	if i, ok := slices.BinarySearch(cell, id); ok {
		o.cells[ss] = slices.Delete(cell, i, i+1)
	}
}

// Move updates the subsector of an indexed entity.
func (o *Occupancy) Move(id ecs.EntityID, ss level.SubsectorID) { o.Add(id, ss) }

// In returns the entities of a subsector in ascending id order. The slice
// is shared and changes with the index.
func (o *Occupancy) In(ss level.SubsectorID) []ecs.EntityID { return o.cells[ss] }

func (o *Occupancy) Where(id ecs.EntityID) (level.SubsectorID, bool) {
	ss, ok := o.where[id]
	return ss, ok
}

func (o *Occupancy) Len() int { return len(o.where) }

// InSector appends the entities of every subsector of a sector.
func (o *Occupancy) InSector(m *level.Map, sec level.SectorID, buf []ecs.EntityID) []ecs.EntityID {
	for _, ss := range m.Sectors[sec].Subsectors {
		buf = append(buf, o.cells[ss]...)
	}
	return buf
}
