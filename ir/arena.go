package ir

import "github.com/wippyai/wasm-ir/errors"

// Arena is a typed slab allocator for module entities. Entities are stored
// contiguously and addressed by a typed uint32 ID in allocation order.
// Entities are never removed; dead entities are simply not emitted when the
// module is encoded.
type Arena[I ~uint32, T any] struct {
	name  string
	items []T
}

// NewArena creates an empty arena. The name appears in lookup errors
// ("function", "global", ...).
func NewArena[I ~uint32, T any](name string) Arena[I, T] {
	return Arena[I, T]{name: name}
}

// Alloc stores item and returns its ID. IDs are dense and allocated in
// increasing order starting at zero.
func (a *Arena[I, T]) Alloc(item T) I {
	id := I(len(a.items))
	a.items = append(a.items, item)
	return id
}

// Get returns a pointer to the entity with the given ID. The pointer stays
// valid until the next Alloc.
func (a *Arena[I, T]) Get(id I) (*T, error) {
	if int(id) >= len(a.items) {
		return nil, errors.InvalidID(a.name, uint32(id), uint32(len(a.items)))
	}
	return &a.items[int(id)], nil
}

// MustGet is Get for IDs the caller knows are valid, typically IDs it
// allocated itself. It panics on an out of range ID.
func (a *Arena[I, T]) MustGet(id I) *T {
	item, err := a.Get(id)
	if err != nil {
		panic(err)
	}
	return item
}

// Len returns the number of entities allocated so far.
func (a *Arena[I, T]) Len() int {
	return len(a.items)
}

// All iterates entities in allocation order. Iteration stops early if
// yield returns false. Allocating during iteration is allowed; entities
// allocated mid-iteration are not visited.
func (a *Arena[I, T]) All(yield func(I, *T) bool) {
	n := len(a.items)
	for i := 0; i < n; i++ {
		if !yield(I(i), &a.items[i]) {
			return
		}
	}
}
