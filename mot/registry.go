package mot

// handle points to a slot of the arena. Generation guards against slot reuse:
// once identity is retired its slot generation is bumped and old handles stop resolving.
type handle struct {
	slot       int
	generation uint32
}

type slot struct {
	identity   TrackedIdentity
	generation uint32
	alive      bool
}

// Registry stores tracked identities in a dense arena with generation-tagged index.
// Identifiers are assigned monotonically starting from zero and never reused.
// Registry is not safe for concurrent use: every camera stream should own its own tracker.
type Registry struct {
	slots  []slot
	free   []int
	index  map[int64]handle
	nextID int64
}

func newRegistry() *Registry {
	return &Registry{
		slots: make([]slot, 0, 32),
		free:  make([]int, 0, 32),
		index: make(map[int64]handle),
	}
}

// Len returns number of live identities
func (registry *Registry) Len() int {
	return len(registry.index)
}

// Get returns identity by its identifier.
// Returned pointer is valid until the next tracker update.
func (registry *Registry) Get(id int64) (*TrackedIdentity, bool) {
	h, ok := registry.index[id]
	if !ok {
		return nil, false
	}
	s := &registry.slots[h.slot]
	if !s.alive || s.generation != h.generation {
		return nil, false
	}
	return &s.identity, true
}

// Each calls fn for every live identity in arena order
func (registry *Registry) Each(fn func(identity *TrackedIdentity)) {
	for i := range registry.slots {
		if registry.slots[i].alive {
			fn(&registry.slots[i].identity)
		}
	}
}

// IDs returns identifiers of live identities in arena order
func (registry *Registry) IDs() []int64 {
	ids := make([]int64, 0, registry.Len())
	registry.Each(func(identity *TrackedIdentity) {
		ids = append(ids, identity.id)
	})
	return ids
}

func (registry *Registry) register(centroid Point) *TrackedIdentity {
	var idx int
	if n := len(registry.free); n > 0 {
		idx = registry.free[n-1]
		registry.free = registry.free[:n-1]
	} else {
		registry.slots = append(registry.slots, slot{})
		idx = len(registry.slots) - 1
	}
	s := &registry.slots[idx]
	s.alive = true
	s.identity.reset(registry.nextID, centroid)
	registry.index[registry.nextID] = handle{slot: idx, generation: s.generation}
	registry.nextID++
	return &s.identity
}

// deregister retires identity living in given slot
func (registry *Registry) deregister(idx int) {
	s := &registry.slots[idx]
	if !s.alive {
		return
	}
	delete(registry.index, s.identity.id)
	s.alive = false
	s.generation++
	registry.free = append(registry.free, idx)
}

// appendLive appends arena indices of live slots to dst
func (registry *Registry) appendLive(dst []int) []int {
	for i := range registry.slots {
		if registry.slots[i].alive {
			dst = append(dst, i)
		}
	}
	return dst
}
