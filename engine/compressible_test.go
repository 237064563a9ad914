package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/outofforest/parallel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/test"
)

func TestBlock(t *testing.T) {
	requireT := require.New(t)

	b := NewBlock[int32](6, alloc.Heap)
	requireT.Equal(6, b.Size())
	requireT.True(b.Compressed())
	v, ok := b.Value()
	requireT.True(ok)
	requireT.Equal(int32(0), v)

	b.CompressTo(3)
	v, ok = b.Value()
	requireT.True(ok)
	requireT.Equal(int32(3), v)

	requireT.NoError(b.Uncompress())
	requireT.False(b.Compressed())
	_, ok = b.Value()
	requireT.False(ok)
	requireT.True(b.TryCompress())
	v, _ = b.Value()
	requireT.Equal(int32(3), v)

	clone, err := b.Clone()
	requireT.NoError(err)
	v, ok = clone.Value()
	requireT.True(ok)
	requireT.Equal(int32(3), v)
}

func TestCompressionRoundTrip(t *testing.T) {
	requireT := require.New(t)

	c := NewCompressibleBrick[float64](domain.Sized(4, 5), alloc.Heap)
	defer c.Close()

	requireT.True(c.Compressed())
	requireT.True(Compressed(c))
	requireT.Equal(20, ElementsCompressed(c))
	requireT.Equal(0.0, c.Read(3, 4))

	c.Fill(3)
	requireT.True(c.Compressed())
	requireT.Equal(3.0, c.Read(2, 2))

	// Writing the compressed value keeps the brick compressed.
	c.Write(3, 1, 1)
	requireT.True(c.Compressed())

	c.Write(7, 1, 1)
	requireT.False(c.Compressed())
	requireT.Equal(0, ElementsCompressed(c))
	requireT.Equal(0.0, CompressedFraction(c))
	requireT.Equal(7.0, c.Read(1, 1))
	requireT.Equal(3.0, c.Read(0, 0))
	_, ok := c.CompressedValue()
	requireT.False(ok)

	requireT.False(Compress(c))
	requireT.False(c.Compressed())

	c.Write(3, 1, 1)
	requireT.True(Compress(c))
	requireT.True(c.Compressed())
	requireT.Equal(1.0, CompressedFraction(c))
	v, ok := c.CompressedValue()
	requireT.True(ok)
	requireT.Equal(3.0, v)

	requireT.NoError(Uncompress(c))
	requireT.False(c.Compressed())
	for p := range c.Domain().Points() {
		requireT.Equal(3.0, c.Read(p[0], p[1]))
	}
}

func TestCompressibleBrickOffsetDomain(t *testing.T) {
	requireT := require.New(t)

	c := NewCompressibleBrick[int](domain.NewInterval(domain.NewAxis(-2, 2), domain.NewAxis(10, 12)), alloc.Mmap)
	defer c.Close()

	*c.Ref(-2, 10) = 1
	c.Write(2, 2, 12)
	requireT.False(c.Compressed())
	requireT.Equal(1, c.Read(-2, 10))
	requireT.Equal(2, c.Read(2, 12))
	requireT.Equal(0, c.Read(0, 11))
}

func TestCompressibleViewsShareBlock(t *testing.T) {
	requireT := require.New(t)

	c := NewCompressibleBrick[int](domain.Sized(4, 4), alloc.Heap)
	defer c.Close()
	c.Fill(3)

	v := c.View(domain.NewInterval(domain.NewAxis(1, 2), domain.NewAxis(1, 3)))
	requireT.Equal(domain.Sized(2, 3), v.Domain())
	requireT.Equal(2, v.Block().Refs())
	requireT.True(c.Shared())
	requireT.True(v.Compressed())
	requireT.Equal(3, v.Read(1, 2))

	v.Write(5, 0, 0)
	requireT.False(c.Compressed())
	requireT.False(v.Compressed())
	requireT.Equal(5, c.Read(1, 1))
	requireT.Equal(3, v.Read(1, 2))

	// Filling the view covering part of the brick doesn't compress the block.
	v.Fill(6)
	requireT.False(c.Compressed())
	requireT.Equal(6, c.Read(2, 3))
	requireT.Equal(3, c.Read(0, 0))

	c.Fill(3)
	requireT.True(v.Compressed())
	requireT.Equal(3, v.Read(0, 0))

	v.Close()
	requireT.Equal(1, c.Block().Refs())
	requireT.False(c.Shared())
}

func TestCompressibleSliceFollowsTransitions(t *testing.T) {
	requireT := require.New(t)

	c := NewCompressibleBrick[int](domain.Sized(5, 5), alloc.Heap)
	defer c.Close()
	c.Fill(4)

	s := c.Slice(domain.NewSlice(domain.NewInterval(domain.PointAxis(2), domain.NewAxis(0, 4)), 0))
	defer s.Close()
	requireT.Equal(1, s.Dim())
	requireT.Equal(4, s.Read(3))

	c.Write(8, 2, 3)
	requireT.False(s.Compressed())
	requireT.Equal(8, s.Read(3))

	c.Write(4, 2, 3)
	requireT.True(c.TryCompress())
	requireT.True(s.Compressed())
	requireT.Equal(4, s.Read(3))

	d1 := domain.NewRange(domain.NewStridedAxis(4, 0, -2), domain.NewAxis(1, 4))
	d2 := domain.NewRange(domain.NewStridedAxis(2, 0, -1), domain.NewStridedAxis(0, 2, 2))
	for p := range c.Domain().Points() {
		c.Write(10*p[0]+p[1], p[0], p[1])
	}
	composed := c.View(d1).View(d2)
	defer composed.Close()
	direct := c.View(d1.Take(d2))
	defer direct.Close()
	requireSameElements(t, direct, composed)
	requireT.Equal(1, composed.Read(0, 0))
	requireT.Equal(43, composed.Read(2, 1))
}

func TestCompressibleCopies(t *testing.T) {
	requireT := require.New(t)

	c := NewCompressibleBrick[int](domain.Sized(3, 3), alloc.Heap)
	defer c.Close()
	c.Fill(3)

	cp := c.Copy()
	defer cp.Close()
	requireT.True(cp.Shared())
	requireT.Same(c.Block(), cp.Block())

	requireT.NoError(cp.MakeOwnCopy())
	requireT.False(cp.Shared())
	requireT.False(c.Shared())
	requireT.NotSame(c.Block(), cp.Block())

	cp.Write(9, 0, 0)
	requireT.Equal(9, cp.Read(0, 0))
	requireT.Equal(3, c.Read(0, 0))
	requireT.True(c.Compressed())

	// Uncompressed block is cloned with its elements.
	cp2 := cp.Copy()
	defer cp2.Close()
	requireT.NoError(cp2.MakeOwnCopy())
	cp2.Write(1, 1, 1)
	requireT.Equal(9, cp2.Read(0, 0))
	requireT.Equal(1, cp2.Read(1, 1))
	requireT.Equal(3, cp.Read(1, 1))
}

func TestCompressibleConcurrentReads(t *testing.T) {
	ctx := test.Context(t)

	c := NewCompressibleBrick[int64](domain.Sized(32, 32), alloc.Heap)
	defer c.Close()
	c.Fill(1)

	var done atomic.Bool
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("transitions", parallel.Continue, func(ctx context.Context) error {
			defer done.Store(true)
			for range 200 {
				if err := c.Uncompress(); err != nil {
					return err
				}
				if !c.TryCompress() {
					return errors.New("block should be compressed")
				}
			}
			return nil
		})
		for range 4 {
			spawn("reader", parallel.Continue, func(ctx context.Context) error {
				for !done.Load() {
					for p := range c.Domain().Points() {
						if v := c.Read(p[0], p[1]); v != 1 {
							return errors.Errorf("unexpected value %d at %v", v, p[:2])
						}
					}
				}
				return nil
			})
		}
		return nil
	})
	require.NoError(t, err)
}
