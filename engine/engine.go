// Package engine stores elements of patches and of whole arrays spread over patches.
package engine

import (
	"golang.org/x/exp/constraints"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/types"
)

// Element is the type of values stored by engines.
type Element interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// Engine provides access to elements of the domain.
type Engine[T Element] interface {
	// Dim returns number of dimensions.
	Dim() int

	// Domain returns the domain the engine is indexed with.
	Domain() domain.Domain

	// Read returns the element.
	Read(indices ...int) T

	// Ref returns pointer to the element. Pointer stays valid until the storage is compressed or released.
	Ref(indices ...int) *T

	// Write stores the element.
	Write(v T, indices ...int)

	// Fill stores v in all the elements of the domain.
	Fill(v T)
}

// accessor addresses elements of the buffer. Element of point p lives at data[offset + sum(strides[i] * p[i])].
type accessor[T Element] struct {
	data       []T
	strides    [types.MaxDim]int
	offset     int
	compressed bool
}

func (a *accessor[T]) index(indices []int) int {
	i := a.offset
	for axis, x := range indices {
		i += a.strides[axis] * x
	}
	return i
}

func (a *accessor[T]) view(ix layout.Indexer) *accessor[T] {
	strides, offset := ix.Apply(a.strides, a.offset)
	return &accessor[T]{
		data:       a.data,
		strides:    strides,
		offset:     offset,
		compressed: a.compressed,
	}
}

// columnMajor returns strides and offset of the buffer storing unit-stride domain, the first axis changing fastest.
func columnMajor(d domain.Domain) ([types.MaxDim]int, int) {
	types.Insist(d.Unit(), "storage domain must be unit-stride, got %s", d)

	var strides [types.MaxDim]int
	var offset int
	stride := 1
	for axis := range d.Dim() {
		strides[axis] = stride
		offset -= stride * d.First(axis)
		stride *= d.Length(axis)
	}
	return strides, offset
}

// NewView returns zero-copy view of the engine covering d, expressed in coordinates of the engine.
// The view is indexed with zero-based coordinates. Views of compressible engines access elements through
// the engine, so they don't attach to the block and need no closing.
func NewView[T Element](e Engine[T], d domain.Domain) Engine[T] {
	switch e := e.(type) {
	case *Brick[T]:
		return e.View(d)
	case *BrickView[T]:
		return e.View(d)
	case *IndexedView[T]:
		return e.View(d)
	default:
		types.Insist(domain.Contains(e.Domain(), d), "domain %s is outside of the engine %s", d, e.Domain())
		return &IndexedView[T]{engine: e, indexer: layout.NewIndexer(d)}
	}
}

// NewSliceView returns zero-copy view of the engine reduced by slice s, expressed in coordinates of the engine.
func NewSliceView[T Element](e Engine[T], s domain.Slice) Engine[T] {
	switch e := e.(type) {
	case *Brick[T]:
		return e.Slice(s)
	case *BrickView[T]:
		return e.Slice(s)
	case *IndexedView[T]:
		return e.Slice(s)
	default:
		types.Insist(domain.Contains(e.Domain(), s.Total()), "slice %s is outside of the engine %s", s.Total(),
			e.Domain())
		return &IndexedView[T]{engine: e, indexer: layout.NewSliceIndexer(s)}
	}
}

// IndexedView is the view of any engine translating every access through the indexer.
type IndexedView[T Element] struct {
	engine  Engine[T]
	indexer layout.Indexer
}

// Dim returns number of dimensions.
func (v *IndexedView[T]) Dim() int {
	return v.indexer.Dim()
}

// Domain returns zero-based domain of the view.
func (v *IndexedView[T]) Domain() domain.Domain {
	return v.indexer.Domain()
}

// Read returns the element.
func (v *IndexedView[T]) Read(indices ...int) T {
	return v.engine.Read(v.indexer.BasePoint(indices...)...)
}

// Ref returns pointer to the element.
func (v *IndexedView[T]) Ref(indices ...int) *T {
	return v.engine.Ref(v.indexer.BasePoint(indices...)...)
}

// Write stores the element.
func (v *IndexedView[T]) Write(value T, indices ...int) {
	v.engine.Write(value, v.indexer.BasePoint(indices...)...)
}

// Fill stores value in all the elements of the view.
func (v *IndexedView[T]) Fill(value T) {
	if domain.Contains(v.indexer.Image(), v.engine.Domain()) {
		v.engine.Fill(value)
		return
	}
	for p := range v.indexer.Image().Points() {
		v.engine.Write(value, p[:v.indexer.BaseDim()]...)
	}
}

// View returns view covering d, expressed in coordinates of this view.
func (v *IndexedView[T]) View(d domain.Domain) *IndexedView[T] {
	return &IndexedView[T]{engine: v.engine, indexer: v.indexer.Sub(d)}
}

// Slice returns view reduced by slice s, expressed in coordinates of this view.
func (v *IndexedView[T]) Slice(s domain.Slice) *IndexedView[T] {
	return &IndexedView[T]{engine: v.engine, indexer: v.indexer.Slice(s)}
}
