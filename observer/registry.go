package observer

import (
	"github.com/outofforest/tessera/types"
)

// Handle identifies observer attached to the registry.
type Handle uint32

// Registry stores observers in an arena. Handles of detached observers are reused.
// Registry is not safe for concurrent use, owner is responsible for locking.
type Registry[O any] struct {
	slots []slot[O]
	free  []Handle
	count int
}

type slot[O any] struct {
	observer O
	used     bool
}

// Attach registers observer and returns its handle.
func (r *Registry[O]) Attach(o O) Handle {
	r.count++
	if n := len(r.free); n > 0 {
		h := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[h] = slot[O]{observer: o, used: true}
		return h
	}
	r.slots = append(r.slots, slot[O]{observer: o, used: true})
	return Handle(len(r.slots) - 1)
}

// Detach removes the observer and returns the number of remaining observers.
func (r *Registry[O]) Detach(h Handle) int {
	types.Insist(int(h) < len(r.slots) && r.slots[h].used, "observer %d is not attached", h)

	r.slots[h] = slot[O]{}
	r.free = append(r.free, h)
	r.count--
	return r.count
}

// Count returns the number of attached observers.
func (r *Registry[O]) Count() int {
	return r.count
}

// Notify calls fn for every attached observer in the order of handles.
func (r *Registry[O]) Notify(fn func(o O)) {
	for i := range r.slots {
		if r.slots[i].used {
			fn(r.slots[i].observer)
		}
	}
}
