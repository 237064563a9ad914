package engine

import (
	"github.com/pkg/errors"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/types"
)

// Brick stores elements of the unit-stride domain in one contiguous buffer. It is indexed with the coordinates
// of its domain.
type Brick[T Element] struct {
	domain  domain.Domain
	acc     accessor[T]
	release func()
}

// NewBrick allocates brick.
func NewBrick[T Element](d domain.Domain, kind alloc.Kind) (*Brick[T], error) {
	data, release, err := alloc.Make[T](kind, d.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "allocating brick %s failed", d)
	}

	strides, offset := columnMajor(d)
	return &Brick[T]{
		domain: d,
		acc: accessor[T]{
			data:    data,
			strides: strides,
			offset:  offset,
		},
		release: release,
	}, nil
}

// Dim returns number of dimensions.
func (b *Brick[T]) Dim() int {
	return b.domain.Dim()
}

// Domain returns the domain of the brick.
func (b *Brick[T]) Domain() domain.Domain {
	return b.domain
}

// Data returns the buffer.
func (b *Brick[T]) Data() []T {
	return b.acc.data
}

// Read returns the element.
func (b *Brick[T]) Read(indices ...int) T {
	return b.acc.data[b.acc.index(indices)]
}

// Ref returns pointer to the element.
func (b *Brick[T]) Ref(indices ...int) *T {
	return &b.acc.data[b.acc.index(indices)]
}

// Write stores the element.
func (b *Brick[T]) Write(v T, indices ...int) {
	b.acc.data[b.acc.index(indices)] = v
}

// Fill stores v in all the elements.
func (b *Brick[T]) Fill(v T) {
	for i := range b.acc.data {
		b.acc.data[i] = v
	}
}

// View returns view covering d, expressed in coordinates of the brick.
func (b *Brick[T]) View(d domain.Domain) *BrickView[T] {
	types.Insist(domain.Contains(b.domain, d), "domain %s is outside of the brick %s", d, b.domain)
	return newBrickView(b, layout.NewIndexer(d))
}

// Slice returns view reduced by slice s, expressed in coordinates of the brick.
func (b *Brick[T]) Slice(s domain.Slice) *BrickView[T] {
	types.Insist(domain.Contains(b.domain, s.Total()), "slice %s is outside of the brick %s", s.Total(), b.domain)
	return newBrickView(b, layout.NewSliceIndexer(s))
}

// Close releases the buffer. Brick and its views must not be used afterwards.
func (b *Brick[T]) Close() {
	b.release()
	b.acc.data = nil
}

// BrickView is the zero-copy view of the brick, indexed with zero-based coordinates.
type BrickView[T Element] struct {
	brick   *Brick[T]
	indexer layout.Indexer
	acc     *accessor[T]
}

func newBrickView[T Element](b *Brick[T], ix layout.Indexer) *BrickView[T] {
	return &BrickView[T]{
		brick:   b,
		indexer: ix,
		acc:     b.acc.view(ix),
	}
}

// Dim returns number of dimensions.
func (v *BrickView[T]) Dim() int {
	return v.indexer.Dim()
}

// Domain returns zero-based domain of the view.
func (v *BrickView[T]) Domain() domain.Domain {
	return v.indexer.Domain()
}

// Brick returns the brick the view is built on.
func (v *BrickView[T]) Brick() *Brick[T] {
	return v.brick
}

// Read returns the element.
func (v *BrickView[T]) Read(indices ...int) T {
	return v.acc.data[v.acc.index(indices)]
}

// Ref returns pointer to the element.
func (v *BrickView[T]) Ref(indices ...int) *T {
	return &v.acc.data[v.acc.index(indices)]
}

// Write stores the element.
func (v *BrickView[T]) Write(value T, indices ...int) {
	v.acc.data[v.acc.index(indices)] = value
}

// Fill stores value in all the elements of the view.
func (v *BrickView[T]) Fill(value T) {
	dim := v.Dim()
	for p := range v.indexer.Domain().Points() {
		v.acc.data[v.acc.index(p[:dim])] = value
	}
}

// View returns view covering d, expressed in coordinates of this view.
func (v *BrickView[T]) View(d domain.Domain) *BrickView[T] {
	return newBrickView(v.brick, v.indexer.Sub(d))
}

// Slice returns view reduced by slice s, expressed in coordinates of this view.
func (v *BrickView[T]) Slice(s domain.Slice) *BrickView[T] {
	return newBrickView(v.brick, v.indexer.Slice(s))
}
