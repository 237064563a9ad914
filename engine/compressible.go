package engine

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samber/lo"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/observer"
	"github.com/outofforest/tessera/types"
)

// compressible is the engine observing the block. Accessor is replaced on every transition of the block and
// published atomically, so reads don't lock. Lock order is block first, then engine.
type compressible[T Element] struct {
	mu     sync.Mutex
	block  *Block[T]
	handle observer.Handle

	// storage is the domain of the block buffer.
	storage domain.Domain

	// indexer translates view coordinates into storage coordinates, nil if engine is indexed with storage
	// coordinates.
	indexer *layout.Indexer
	domain  domain.Domain

	acc atomic.Pointer[accessor[T]]
}

func (c *compressible[T]) attach(b *Block[T]) {
	h := b.Attach(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.block = b
	c.handle = h
}

// OnCompress is called by the block.
func (c *compressible[T]) OnCompress(value *T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.acc.Store(&accessor[T]{
		data:       unsafe.Slice(value, 1),
		compressed: true,
	})
}

// OnUncompress is called by the block.
func (c *compressible[T]) OnUncompress(data []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	strides, offset := columnMajor(c.storage)
	acc := &accessor[T]{
		data:    data,
		strides: strides,
		offset:  offset,
	}
	if c.indexer != nil {
		acc = acc.view(*c.indexer)
	}
	c.acc.Store(acc)
}

// Block returns the block storing elements.
func (c *compressible[T]) Block() *Block[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.block
}

// Dim returns number of dimensions.
func (c *compressible[T]) Dim() int {
	return c.domain.Dim()
}

// Domain returns the domain the engine is indexed with.
func (c *compressible[T]) Domain() domain.Domain {
	return c.domain
}

// Read returns the element. It never uncompresses the block.
func (c *compressible[T]) Read(indices ...int) T {
	acc := c.acc.Load()
	return acc.data[acc.index(indices)]
}

// Ref returns pointer to the element, uncompressing the block if needed.
func (c *compressible[T]) Ref(indices ...int) *T {
	acc := c.acc.Load()
	if acc.compressed {
		lo.Must0(c.Block().Uncompress())
		acc = c.acc.Load()
	}
	return &acc.data[acc.index(indices)]
}

// Write stores the element. Writing the compressed value keeps the block compressed.
func (c *compressible[T]) Write(v T, indices ...int) {
	acc := c.acc.Load()
	if acc.compressed && acc.data[0] == v {
		return
	}
	*c.Ref(indices...) = v
}

// Fill stores v in all the elements of the domain.
func (c *compressible[T]) Fill(v T) {
	if c.indexer == nil || domain.Contains(c.indexer.Image(), c.storage) {
		c.Block().CompressTo(v)
		return
	}

	dim := c.Dim()
	for p := range c.domain.Points() {
		c.Write(v, p[:dim]...)
	}
}

// Compressed returns true if block is compressed.
func (c *compressible[T]) Compressed() bool {
	return c.acc.Load().compressed
}

// CompressedValue returns value of the compressed block.
func (c *compressible[T]) CompressedValue() (T, bool) {
	acc := c.acc.Load()
	if !acc.compressed {
		var zero T
		return zero, false
	}
	return acc.data[0], true
}

// Elements returns the number of elements.
func (c *compressible[T]) Elements() int {
	return c.domain.Size()
}

// ElementsCompressed returns the number of elements stored compressed.
func (c *compressible[T]) ElementsCompressed() int {
	if c.Compressed() {
		return c.domain.Size()
	}
	return 0
}

// TryCompress compresses the block if all its elements are equal.
func (c *compressible[T]) TryCompress() bool {
	return c.Block().TryCompress()
}

// Uncompress expands the block.
func (c *compressible[T]) Uncompress() error {
	return c.Block().Uncompress()
}

// Shared returns true if block is used by other engines.
func (c *compressible[T]) Shared() bool {
	return c.Block().Refs() > 1
}

// MakeOwnCopy replaces the shared block with its private copy. It must not run concurrently with writers.
func (c *compressible[T]) MakeOwnCopy() error {
	old := c.Block()
	if old.Refs() <= 1 {
		return nil
	}

	clone, err := old.Clone()
	if err != nil {
		return err
	}
	h := clone.Attach(c)

	c.mu.Lock()
	oldHandle := c.handle
	c.block = clone
	c.handle = h
	c.mu.Unlock()

	old.Detach(oldHandle)
	return nil
}

// Close detaches engine from the block. The last engine releases the buffer.
func (c *compressible[T]) Close() {
	c.mu.Lock()
	b, h := c.block, c.handle
	c.mu.Unlock()

	b.Detach(h)
}

// CompressibleBrick is the brick which might be compressed to a single value when all its elements are equal.
// It is indexed with the coordinates of its domain. Copies share the block.
type CompressibleBrick[T Element] struct {
	compressible[T]
}

// NewCompressibleBrick creates compressed brick holding the zero value.
func NewCompressibleBrick[T Element](d domain.Domain, kind alloc.Kind) *CompressibleBrick[T] {
	types.Insist(d.Unit(), "brick domain must be unit-stride, got %s", d)

	c := &CompressibleBrick[T]{
		compressible: compressible[T]{
			storage: d,
			domain:  d,
		},
	}
	c.attach(NewBlock[T](d.Size(), kind))
	return c
}

// Copy returns the brick sharing the block.
func (c *CompressibleBrick[T]) Copy() *CompressibleBrick[T] {
	n := &CompressibleBrick[T]{
		compressible: compressible[T]{
			storage: c.storage,
			domain:  c.domain,
		},
	}
	n.attach(c.Block())
	return n
}

// View returns view covering d, expressed in coordinates of the brick.
func (c *CompressibleBrick[T]) View(d domain.Domain) *CompressibleBrickView[T] {
	types.Insist(domain.Contains(c.domain, d), "domain %s is outside of the brick %s", d, c.domain)
	return newCompressibleBrickView(c.Block(), c.storage, layout.NewIndexer(d))
}

// Slice returns view reduced by slice s, expressed in coordinates of the brick.
func (c *CompressibleBrick[T]) Slice(s domain.Slice) *CompressibleBrickView[T] {
	types.Insist(domain.Contains(c.domain, s.Total()), "slice %s is outside of the brick %s", s.Total(), c.domain)
	return newCompressibleBrickView(c.Block(), c.storage, layout.NewSliceIndexer(s))
}

// CompressibleBrickView is the zero-copy view of the compressible brick, indexed with zero-based coordinates.
// View shares the block with the brick, so it must be closed when not needed anymore.
type CompressibleBrickView[T Element] struct {
	compressible[T]
}

func newCompressibleBrickView[T Element](b *Block[T], storage domain.Domain,
	ix layout.Indexer,
) *CompressibleBrickView[T] {
	v := &CompressibleBrickView[T]{
		compressible: compressible[T]{
			storage: storage,
			indexer: &ix,
			domain:  ix.Domain(),
		},
	}
	v.attach(b)
	return v
}

// Copy returns the view sharing the block.
func (v *CompressibleBrickView[T]) Copy() *CompressibleBrickView[T] {
	return newCompressibleBrickView(v.Block(), v.storage, *v.indexer)
}

// View returns view covering d, expressed in coordinates of this view.
func (v *CompressibleBrickView[T]) View(d domain.Domain) *CompressibleBrickView[T] {
	return newCompressibleBrickView(v.Block(), v.storage, v.indexer.Sub(d))
}

// Slice returns view reduced by slice s, expressed in coordinates of this view.
func (v *CompressibleBrickView[T]) Slice(s domain.Slice) *CompressibleBrickView[T] {
	return newCompressibleBrickView(v.Block(), v.storage, v.indexer.Slice(s))
}
