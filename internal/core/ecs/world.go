package ecs

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue flushed by CleanupSystem each tick.
// Entities marked for destruction are excluded from Alive and from queries
// straight away; their components stay readable by id until the flush.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	dying        []bool // by entity index
	flushed      []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Register creates and registers a store for components of type T.
func Register[T any](w *World, name string) *Store[T] {
	s := NewStore[T](name)
	w.registry.Register(s)
	return s
}

func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	idx := int(id.Index())
	for idx >= len(w.dying) {
		w.dying = append(w.dying, false)
	}
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id) && !w.dying[id.Index()]
}

// Len counts live entities, including ones pending destruction.
func (w *World) Len() int { return w.pool.Len() }

// MarkForDestruction queues an entity for end-of-tick cleanup. Marking a
// dead or already marked entity does nothing.
func (w *World) MarkForDestruction(id EntityID) {
	if !w.Alive(id) {
		return
	}
	w.dying[id.Index()] = true
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending returns the entities queued for destruction this tick.
func (w *World) Pending() []EntityID { return w.destroyQueue }

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick. The returned slice lists
// the destroyed ids and is reused by the next flush.
func (w *World) FlushDestroyQueue() []EntityID {
	w.flushed = append(w.flushed[:0], w.destroyQueue...)
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		w.dying[id.Index()] = false
	}
	w.destroyQueue = w.destroyQueue[:0]
	return w.flushed
}
