package engine

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/types"
)

// Dynamic stores elements of the 1-dimensional patch whose size changes. It is indexed with global indices,
// the first element of the patch being at First().
type Dynamic[T Element] struct {
	first int
	data  []T
}

// NewDynamic creates dynamic engine storing elements of the unit-stride domain.
func NewDynamic[T Element](d domain.Domain) *Dynamic[T] {
	types.Insist(d.Dim() == 1 && d.Unit(), "dynamic engine requires 1-dimensional unit-stride domain, got %s", d)
	return &Dynamic[T]{
		first: d.First(0),
		data:  make([]T, d.Size()),
	}
}

// Dim returns number of dimensions.
func (e *Dynamic[T]) Dim() int {
	return 1
}

// Domain returns the domain of the patch.
func (e *Dynamic[T]) Domain() domain.Domain {
	return domain.NewInterval(domain.NewAxis(e.first, e.first+len(e.data)-1))
}

// First returns index of the first element.
func (e *Dynamic[T]) First() int {
	return e.first
}

// Size returns the number of elements.
func (e *Dynamic[T]) Size() int {
	return len(e.data)
}

// Data returns elements ordered by index.
func (e *Dynamic[T]) Data() []T {
	return e.data
}

// Read returns the element.
func (e *Dynamic[T]) Read(indices ...int) T {
	return e.data[indices[0]-e.first]
}

// Ref returns pointer to the element. Pointer is invalidated by Create and Copy.
func (e *Dynamic[T]) Ref(indices ...int) *T {
	return &e.data[indices[0]-e.first]
}

// Write stores the element.
func (e *Dynamic[T]) Write(v T, indices ...int) {
	e.data[indices[0]-e.first] = v
}

// Fill stores v in all the elements.
func (e *Dynamic[T]) Fill(v T) {
	for i := range e.data {
		e.data[i] = v
	}
}

// Rebase moves the first element to index first.
func (e *Dynamic[T]) Rebase(first int) {
	e.first = first
}

// Create appends n zero elements.
func (e *Dynamic[T]) Create(n int) {
	types.Insist(n >= 0, "negative number of elements: %d", n)
	e.data = append(e.data, make([]T, n)...)
}

// Destroy removes elements at sorted offsets relative to the first element.
func (e *Dynamic[T]) Destroy(offsets []int, method types.DeleteMethod) {
	if len(offsets) == 0 {
		return
	}
	types.Insist(offsets[0] >= 0 && offsets[len(offsets)-1] < len(e.data), "offsets out of range")

	switch method {
	case types.BackFill:
		e.data = backFill(e.data, offsets)
	case types.ShiftUp:
		e.data = shiftUp(e.data, offsets)
	default:
		types.Insist(false, "unknown delete method %s", method)
	}
}

// CopyFrom appends elements of src at sorted offsets relative to its first element. Src might be e itself.
func (e *Dynamic[T]) CopyFrom(src *Dynamic[T], offsets []int) {
	values := make([]T, 0, len(offsets))
	for _, o := range offsets {
		values = append(values, src.data[o])
	}
	e.data = append(e.data, values...)
}

// backFill moves the last surviving elements into the holes located below the new size. Order is not preserved.
func backFill[T any](data []T, kill []int) []T {
	size := len(data) - len(kill)
	last := len(data) - 1
	ki := len(kill) - 1
	for _, hole := range kill {
		if hole >= size {
			break
		}
		for ki >= 0 && kill[ki] == last {
			ki--
			last--
		}
		data[hole] = data[last]
		last--
	}
	return data[:size]
}

// shiftUp removes elements keeping the order of the remaining ones.
func shiftUp[T any](data []T, kill []int) []T {
	var w, ki int
	for r := range data {
		if ki < len(kill) && kill[ki] == r {
			ki++
			continue
		}
		data[w] = data[r]
		w++
	}
	return data[:w]
}
