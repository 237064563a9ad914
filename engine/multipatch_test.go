package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/test"
	"github.com/outofforest/tessera/types"
)

const badValue = -1000

func newGrid(s *session.Session, size, blocks, internal, external int) *layout.UniformGrid {
	return layout.NewUniformGrid(layout.UniformGridConfig{
		Session:        s,
		Domain:         domain.Sized(size, size),
		Blocks:         []int{blocks, blocks},
		InternalGuards: domain.NewGuardLayers(2, internal),
		ExternalGuards: domain.NewGuardLayers(2, external),
	})
}

func newMultiPatch(t *testing.T, l layout.Layout, kind PatchKind) *MultiPatch[int] {
	m, err := New[int](Config{Layout: l, Kind: kind})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// writeOwned stores i+j in owned elements of local patches.
func writeOwned(l layout.Layout, m *MultiPatch[int]) {
	for _, n := range l.LocalNodes() {
		e := m.Patch(n.GlobalID)
		for p := range n.Owned.Points() {
			e.Write(p[0]+p[1], p[0], p[1])
		}
	}
}

func TestFillGuards(t *testing.T) {
	for _, kind := range []PatchKind{PatchBrick, PatchCompressible} {
		t.Run(kind.String(), func(t *testing.T) {
			requireT := require.New(t)

			l := newGrid(session.Local(), 9, 3, 2, 1)
			m := newMultiPatch(t, l, kind)
			requireT.Equal(kind, m.Kind())
			requireT.Equal(l.Domain(), m.Domain())

			m.Fill(badValue)
			writeOwned(l, m)
			requireT.Equal(badValue, m.Patch(0).Read(3, 0))

			ref, err := NewBrick[int](l.Domain(), alloc.Heap)
			requireT.NoError(err)
			defer ref.Close()
			for p := range ref.Domain().Points() {
				ref.Write(p[0]+p[1], p[0], p[1])
			}

			m.FillGuards()
			for face := range types.Face(4) {
				requireT.False(m.IsDirty(face))
			}

			for _, n := range l.LocalNodes() {
				e := m.Patch(n.GlobalID)
				for p := range n.Allocated.Points() {
					requireT.Equal(p[0]+p[1], e.Read(p[0], p[1]), "patch %d, point %v", n.GlobalID, p[:2])
					requireT.Equal(ref.Read(p[0], p[1]), e.Read(p[0], p[1]))
				}
			}

			for p := range l.Domain().Points() {
				requireT.Equal(p[0]+p[1], m.Read(p[0], p[1]))
			}
		})
	}
}

func TestFillGuardLayers(t *testing.T) {
	requireT := require.New(t)

	l := newGrid(session.Local(), 9, 3, 2, 1)
	m := newMultiPatch(t, l, PatchBrick)

	m.Fill(0)
	writeOwned(l, m)
	m.FillGuards()
	requireT.False(m.IsDirty(types.NewFace(0, false)))

	m.Write(100, 3, 3)
	m.Write(200, 4, 4)
	requireT.True(m.IsDirty(types.NewFace(1, true)))

	m.FillGuardLayers(domain.NewGuardLayers(2, 1))
	requireT.Equal(100, m.Patch(0).Read(3, 3))
	requireT.Equal(100, m.Patch(1).Read(3, 3))
	requireT.Equal(8, m.Patch(0).Read(4, 4))
	requireT.Equal(8, m.Patch(1).Read(4, 4))
	for face := range types.Face(4) {
		requireT.True(m.IsDirty(face))
	}

	m.FillGuardLayers(domain.NewGuardLayers(2, 2))
	requireT.Equal(200, m.Patch(0).Read(4, 4))
	requireT.Equal(200, m.Patch(1).Read(4, 4))
	for face := range types.Face(4) {
		requireT.False(m.IsDirty(face))
	}

	m.SetDirty()
	m.ClearDirty(types.NewFace(1, false))
	requireT.True(m.IsDirty(types.NewFace(0, false)))
	requireT.False(m.IsDirty(types.NewFace(1, false)))
}

func TestMultiPatchCompression(t *testing.T) {
	requireT := require.New(t)

	l := newGrid(session.Local(), 8, 2, 0, 0)
	m := newMultiPatch(t, l, PatchCompressible)

	requireT.Equal(64, m.Elements())
	requireT.Equal(64, m.ElementsCompressed())
	requireT.True(Compressed(m))
	requireT.Equal(1.0, CompressedFraction(m))

	m.Write(5, 0, 0)
	requireT.Equal(48, ElementsCompressed(m))
	requireT.False(Compressed(m))
	requireT.Equal(0.75, CompressedFraction(m))
	requireT.Equal(5, m.Read(0, 0))
	requireT.False(Compress(m))

	m.Write(0, 0, 0)
	requireT.True(Compress(m))
	requireT.Equal(1.0, CompressedFraction(m))

	requireT.NoError(Uncompress(m))
	requireT.Equal(0, m.ElementsCompressed())

	m.Fill(2)
	requireT.True(Compressed(m))
	requireT.Equal(2, m.Read(7, 7))

	b := newMultiPatch(t, l, PatchBrick)
	requireT.False(b.TryCompress())
	requireT.Equal(0, b.ElementsCompressed())
}

func TestMultiPatchMappedAllocation(t *testing.T) {
	requireT := require.New(t)

	s := session.New(session.Config{PatchAllocation: alloc.Mmap})
	l := newGrid(s, 8, 2, 1, 0)
	m := newMultiPatch(t, l, PatchBrick)

	writeOwned(l, m)
	m.FillGuards()
	requireT.Equal(7, m.Patch(0).Read(4, 3))
	requireT.Equal(14, m.Read(7, 7))
}

func TestMultiPatchRepartition(t *testing.T) {
	requireT := require.New(t)
	ctx := test.Context(t)

	l := newGrid(session.Local(), 8, 2, 1, 0)
	m := newMultiPatch(t, l, PatchBrick)
	for p := range l.Domain().Points() {
		m.Write(10*p[0]+p[1], p[0], p[1])
	}
	m.FillGuards()

	l.Repartition(ctx, partition.NewUniformGrid([]int{4, 1}, domain.NewGuardLayers(2, 1),
		domain.NoGuards(2)), nil)
	requireT.Equal(4, l.SizeGlobal())
	requireT.Equal(4, l.Blocks(0))
	requireT.True(m.IsDirty(types.NewFace(0, true)))

	for p := range l.Domain().Points() {
		requireT.Equal(10*p[0]+p[1], m.Read(p[0], p[1]))
	}

	m.FillGuards()
	for _, n := range l.LocalNodes() {
		e := m.Patch(n.GlobalID)
		requireT.Equal(n.Allocated, e.Domain())
		for p := range n.Allocated.Points() {
			requireT.Equal(10*p[0]+p[1], e.Read(p[0], p[1]))
		}
	}
}

func TestMultiPatchView(t *testing.T) {
	requireT := require.New(t)

	l := newGrid(session.Local(), 8, 2, 0, 0)
	m := newMultiPatch(t, l, PatchBrick)
	for p := range l.Domain().Points() {
		m.Write(10*p[0]+p[1], p[0], p[1])
	}

	d := domain.NewRange(domain.NewStridedAxis(1, 7, 2), domain.NewAxis(2, 5))
	mv := m.View(d)
	requireT.Equal(domain.Sized(4, 4), mv.Domain())
	requireT.Equal(2, mv.Dim())
	requireT.Equal(l.ID(), mv.View().ID())

	mv.Write(7, 3, 0)
	requireT.Equal(7, m.Read(7, 2))
	requireT.Equal(35, mv.Read(1, 3))

	nodes := mv.Touches(mv.Domain(), nil)
	requireT.Len(nodes, 4)
	var found bool
	for _, n := range nodes {
		e := mv.GlobalPatch(n)
		requireT.Equal(n.Owned.Zero(), e.Domain())
		for p := range n.Owned.Points() {
			requireT.Equal(mv.Read(p[0], p[1]), e.Read(p[0]-n.Owned.First(0), p[1]-n.Owned.First(1)))
		}
		if n.Owned.Has(3, 0) {
			found = true
			requireT.Equal(l.GlobalID(7, 2), n.GlobalID)
			requireT.Equal(7, e.Read(3-n.Owned.First(0), 0))
		}
	}
	requireT.True(found)

	// Composition of views equals the view of the composed domain.
	d2 := domain.NewRange(domain.NewStridedAxis(3, 0, -3), domain.NewAxis(1, 2))
	composed := mv.Sub(d2)
	direct := m.View(d.Take(d2))
	requireSameElements(t, direct, composed)
	requireT.Equal(73, composed.Read(0, 0))

	s := mv.Slice(domain.NewSlice(domain.NewInterval(domain.NewAxis(0, 3), domain.PointAxis(1)), 1))
	requireT.Equal(1, s.Dim())
	s.Fill(-1)
	for x := 1; x < 8; x += 2 {
		requireT.Equal(-1, m.Read(x, 3))
	}
	requireT.Equal(24, m.Read(2, 4))
}

// pieceIndices returns indices of point p relative to the piece d.
func pieceIndices(d domain.Domain, p domain.Point) []int {
	indices := make([]int, d.Dim())
	for axis := range d.Dim() {
		indices[axis] = d.Axis(axis).Offset(p[axis])
	}
	return indices
}

func TestMultiPatchViewPatches(t *testing.T) {
	views := []struct {
		name string
		view func(m *MultiPatch[int]) *MultiPatchView[int]
	}{
		{
			name: "sub",
			view: func(m *MultiPatch[int]) *MultiPatchView[int] {
				return m.View(domain.NewRange(domain.NewStridedAxis(1, 11, 2), domain.NewAxis(2, 9)))
			},
		},
		{
			name: "slice",
			view: func(m *MultiPatch[int]) *MultiPatchView[int] {
				return m.Slice(domain.NewSlice(domain.NewInterval(domain.PointAxis(2), domain.NewAxis(0, 10)), 0))
			},
		},
		{
			name: "sub of slice",
			view: func(m *MultiPatch[int]) *MultiPatchView[int] {
				return m.Slice(domain.NewSlice(domain.NewInterval(domain.NewAxis(0, 12), domain.PointAxis(4)), 1)).
					Sub(domain.NewRange(domain.NewStridedAxis(11, 1, -2)))
			},
		},
		{
			name: "slice of sub",
			view: func(m *MultiPatch[int]) *MultiPatchView[int] {
				return m.View(domain.NewRange(domain.NewStridedAxis(12, 0, -3), domain.NewAxis(1, 10))).
					Slice(domain.NewSlice(domain.NewInterval(domain.NewAxis(0, 4), domain.PointAxis(6)), 1))
			},
		},
		{
			name: "sub of sub",
			view: func(m *MultiPatch[int]) *MultiPatchView[int] {
				return m.View(domain.NewInterval(domain.NewAxis(1, 12), domain.NewAxis(0, 9))).
					Sub(domain.NewRange(domain.NewStridedAxis(10, 0, -5), domain.NewStridedAxis(1, 9, 4)))
			},
		},
	}

	for _, kind := range []PatchKind{PatchBrick, PatchCompressible} {
		for _, tc := range views {
			t.Run(kind.String()+"/"+tc.name, func(t *testing.T) {
				requireT := require.New(t)

				l := layout.NewGrid(layout.GridConfig{
					Session: session.Local(),
					Domain:  domain.Sized(13, 11),
					Partitioner: partition.NewGridFromCuts([][]int{{3, 7, 8}, {5}}, domain.NewGuardLayers(2, 1),
						domain.NewGuardLayers(2, 1)),
				})
				m := newMultiPatch(t, l, kind)
				for p := range l.Domain().Points() {
					m.Write(100*p[0]+p[1], p[0], p[1])
				}

				v := tc.view(m)
				dim := v.Dim()

				seen := map[domain.Point]int{}
				for _, n := range v.Touches(v.Domain(), nil) {
					e := v.GlobalPatch(n)
					requireT.Equal(dim, e.Dim())
					requireT.Equal(n.Owned.Zero(), e.Domain())
					for p := range n.Owned.Points() {
						requireT.Equal(v.Read(p[:dim]...), e.Read(pieceIndices(n.Owned, p)...))
						seen[p]++
					}
				}
				requireT.Len(seen, v.Domain().Size())
				for p := range v.Domain().Points() {
					requireT.Equal(1, seen[p])
				}

				var size int
				for _, piece := range layout.NewIntersector().Intersect(v.Domain(), v.View()) {
					e := v.GlobalPatchINode(piece)
					requireT.Equal(dim, e.Dim())
					requireT.Equal(piece.Domain.Zero(), e.Domain())
					for p := range piece.Domain.Points() {
						requireT.Equal(v.Read(p[:dim]...), e.Read(pieceIndices(piece.Domain, p)...))
					}
					size += piece.Domain.Size()
				}
				requireT.Equal(v.Domain().Size(), size)

				// Writes through patch views land in the array.
				for _, n := range v.Touches(v.Domain(), nil) {
					e := v.GlobalPatch(n)
					for p := range n.Owned.Points() {
						e.Write(-v.Read(p[:dim]...), pieceIndices(n.Owned, p)...)
					}
				}
				for p := range v.Domain().Points() {
					requireT.Negative(v.Read(p[:dim]...))
				}
			})
		}
	}
}

func TestPatchViewsDontAttachToBlocks(t *testing.T) {
	requireT := require.New(t)

	l := newGrid(session.Local(), 8, 2, 1, 0)
	m := newMultiPatch(t, l, PatchCompressible)
	m.Fill(3)

	mv := m.Slice(domain.NewSlice(domain.NewInterval(domain.PointAxis(2), domain.NewAxis(0, 7)), 0))
	nodes := mv.Touches(mv.Domain(), nil)
	requireT.Len(nodes, 2)

	for range 100 {
		for _, n := range nodes {
			requireT.Equal(3, mv.GlobalPatch(n).Read(0))
		}
	}
	for _, n := range nodes {
		requireT.Equal(1, m.Patch(n.GlobalID).(*CompressibleBrick[int]).Block().Refs())
	}

	// Patch views follow transitions of blocks.
	e := mv.GlobalPatch(nodes[0])
	requireT.Equal(3, e.Read(1))
	m.Write(5, 2, nodes[0].Owned.First(0)+1)
	requireT.Equal(5, e.Read(1))
	requireT.Equal(0.0, CompressedFraction(m.Patch(nodes[0].GlobalID).(*CompressibleBrick[int])))

	m.Fill(4)
	requireT.Equal(4, e.Read(1))
	requireT.True(m.Patch(nodes[0].GlobalID).(*CompressibleBrick[int]).Compressed())

	// Filling the view covering the whole patch keeps it compressed.
	p := m.Patch(nodes[0].GlobalID)
	NewView(p, p.Domain()).Fill(6)
	requireT.True(p.(*CompressibleBrick[int]).Compressed())
	requireT.Equal(6, e.Read(0))
	requireT.Equal(1, p.(*CompressibleBrick[int]).Block().Refs())
}

func TestMultiPatchIntersection(t *testing.T) {
	requireT := require.New(t)

	s := session.Local()
	l1 := newGrid(s, 8, 2, 0, 0)
	l2 := layout.NewGrid(layout.GridConfig{
		Session: s,
		Domain:  domain.Sized(8, 8),
		Partitioner: partition.NewGridFromCuts([][]int{{3}, {5}}, domain.GuardLayers{},
			domain.GuardLayers{}),
	})
	src := newMultiPatch(t, l1, PatchBrick)
	dst := newMultiPatch(t, l2, PatchCompressible)
	for p := range l1.Domain().Points() {
		src.Write(10*p[0]+p[1], p[0], p[1])
	}

	d := domain.NewInterval(domain.NewAxis(1, 6), domain.NewAxis(2, 7))
	pieces := layout.NewIntersector().Intersect(d, l1, l2)
	var size int
	for _, piece := range pieces {
		size += piece.Domain.Size()
		from := src.GlobalPatchINode(piece)
		to := dst.GlobalPatchINode(piece)
		for p := range piece.Domain.Points() {
			to.Write(from.Read(p[0], p[1]), p[0], p[1])
		}
	}
	requireT.Equal(d.Size(), size)

	for p := range l2.Domain().Points() {
		expected := 0
		if d.Has(p[0], p[1]) {
			expected = 10*p[0] + p[1]
		}
		requireT.Equal(expected, dst.Read(p[0], p[1]))
	}
}

func TestForEachPatch(t *testing.T) {
	requireT := require.New(t)
	ctx := test.Context(t)

	l := newGrid(session.New(session.Config{Concurrency: 3}), 9, 3, 0, 0)
	m := newMultiPatch(t, l, PatchBrick)

	var count atomic.Int32
	requireT.NoError(ForEachPatch(ctx, m, func(ctx context.Context, n node.Node, e Engine[int]) error {
		count.Add(1)
		for p := range n.Owned.Points() {
			e.Write(int(n.GlobalID), p[0], p[1])
		}
		return nil
	}))
	requireT.EqualValues(9, count.Load())
	for p := range l.Domain().Points() {
		requireT.Equal(int(l.GlobalID(p[0], p[1])), m.Read(p[0], p[1]))
	}

	err := ForEachPatch(ctx, m, func(ctx context.Context, n node.Node, e Engine[int]) error {
		if n.GlobalID == 4 {
			return errors.New("test")
		}
		return nil
	})
	requireT.Error(err)
}

func TestMultiPatchCopies(t *testing.T) {
	requireT := require.New(t)

	l := newGrid(session.Local(), 4, 2, 0, 0)
	m, err := New[float32](Config{Layout: l, Kind: PatchCompressible})
	requireT.NoError(err)
	requireT.Equal(1, l.Observers())

	cp := m.Copy()
	requireT.True(m.Shared())
	cp.Write(3, 1, 1)
	requireT.Equal(float32(3), m.Read(1, 1))

	cp.Close()
	requireT.False(m.Shared())
	requireT.Equal(1, l.Observers())

	requireT.Equal(float32(3), *m.LocalPatch(0).Ref(1, 1))
	requireT.Panics(func() {
		m.DynamicPatch(0)
	})

	m.Close()
	requireT.Equal(0, l.Observers())
}
