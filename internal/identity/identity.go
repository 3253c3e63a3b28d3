// Package identity resolves raw planner pointers to stable node IDs.
//
// A pointer value names an object only within one process and only near one
// point in time: the planner frees alternatives and reuses their addresses
// for unrelated objects. The registry therefore keeps, per (pid, pointer),
// every node ever observed at that address in timestamp order, and resolves
// a reference to whichever occupant is closest in time to the referencing
// event. Resolution never treats an address as a global identity.
package identity

// ForwardWindow is how far after a referencing event an occupant may have
// been registered and still count as its referent, in nanoseconds. Child
// path snapshots can be emitted up to this long after the join event that
// references them.
const ForwardWindow = 5_000_000

type occupant struct {
	ts       int64
	nodeID   string
	pathType string
}

type address struct {
	pid int
	ptr uint64
}

// Registry is a per-build index of pointer occupancy. It is not safe for
// concurrent use; parallel builds each get their own Registry.
type Registry struct {
	occupants map[address][]occupant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{occupants: make(map[address][]occupant)}
}

// Record registers nodeID as an occupant of (pid, ptr) at ts. Callers must
// record in non-decreasing timestamp order per address; Resolve depends on
// each occupant list being time-sorted.
func (r *Registry) Record(pid int, ptr uint64, ts int64, nodeID, pathType string) {
	a := address{pid: pid, ptr: ptr}
	r.occupants[a] = append(r.occupants[a], occupant{ts: ts, nodeID: nodeID, pathType: pathType})
}

// Resolve maps a pointer reference at time at to the best-matching occupant.
//
// When hint is non-empty and at least one occupant's path type matches it,
// only matching occupants are considered; a hint that matches nothing falls
// back to the full list (hints go stale when the referenced path was
// replaced in place).
//
// Among candidates, the nearest-in-time wins with a bias toward
// registrations up to ForwardWindow after the reference. A candidate set
// that only exists in the far future resolves to its most recent entry
// rather than failing: a late occupant is still the best available account
// of that address.
func (r *Registry) Resolve(pid int, ptr uint64, at int64, hint string) (string, bool) {
	candidates := r.occupants[address{pid: pid, ptr: ptr}]
	if len(candidates) == 0 {
		return "", false
	}

	if hint != "" {
		typed := make([]occupant, 0, len(candidates))
		for _, c := range candidates {
			if c.pathType == hint {
				typed = append(typed, c)
			}
		}
		if len(typed) > 0 {
			candidates = typed
		}
	}

	var prev, next *occupant
	for i := range candidates {
		if candidates[i].ts <= at {
			prev = &candidates[i]
			continue
		}
		next = &candidates[i]
		break
	}

	selected := candidates[len(candidates)-1].nodeID
	switch {
	case prev != nil && next != nil:
		prevDelta := at - prev.ts
		nextDelta := next.ts - at
		if nextDelta <= prevDelta && nextDelta <= ForwardWindow {
			selected = next.nodeID
		} else {
			selected = prev.nodeID
		}
	case next != nil:
		if next.ts-at <= ForwardWindow {
			selected = next.nodeID
		}
	case prev != nil:
		selected = prev.nodeID
	}
	return selected, true
}
