package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

func TestIndexerComposition(t *testing.T) {
	requireT := require.New(t)

	// Interval of interval.
	d1 := domain.NewInterval(domain.NewAxis(2, 9), domain.NewAxis(-3, 3))
	d2 := domain.NewInterval(domain.NewAxis(1, 4), domain.NewAxis(2, 2))
	ix := NewIndexer(d1).Sub(d2)
	requireT.Equal(d1.Take(d2), ix.Image())
	requireT.Equal(domain.Sized(4, 1), ix.Domain())
	requireT.Equal([]int{5, -1}, ix.BasePoint(2, 0))

	// Range of range with negative strides.
	d1 = domain.NewRange(domain.NewStridedAxis(10, 0, -2))
	d2 = domain.NewRange(domain.NewStridedAxis(4, 0, -2))
	ix = NewIndexer(d1).Sub(d2)
	requireT.Equal(d1.Take(d2), ix.Image())
	requireT.Equal(domain.NewRange(domain.NewStridedAxis(2, 10, 4)), ix.Image())
	requireT.Equal([]int{2}, ix.BasePoint(0))
	requireT.Equal([]int{10}, ix.BasePoint(2))

	// Slice of range.
	d1 = domain.NewRange(domain.NewStridedAxis(3, 0, -1), domain.NewStridedAxis(0, 4, 2), domain.NewAxis(1, 5))
	s := domain.NewSlice(domain.NewInterval(domain.NewAxis(0, 3), domain.PointAxis(2), domain.NewAxis(1, 3)), 1)
	ix = NewIndexer(d1).Slice(s)
	requireT.Equal(2, ix.Dim())
	requireT.Equal(3, ix.BaseDim())
	requireT.Equal(domain.Sized(4, 3), ix.Domain())
	requireT.Equal([]int{2, 4, 4}, ix.BasePoint(1, 2))
	requireT.Equal(domain.NewRange(domain.NewStridedAxis(3, 0, -1), domain.PointAxis(4), domain.NewAxis(2, 4)),
		ix.Image())
	requireT.Equal(ix.Domain(), ix.ViewDomain(ix.Image()))

	// Slice of range is the same as the sub-range followed by the slice at the origin.
	direct := NewSliceIndexer(domain.NewSlice(d1.Take(s.Total()), 1))
	requireT.Equal(ix.Image(), direct.Image())
	for p := range ix.Domain().Points() {
		requireT.Equal(direct.BasePoint(p[0], p[1]), ix.BasePoint(p[0], p[1]))
	}

	requireT.Panics(func() {
		NewIndexer(d1).Sub(domain.Sized(5, 1, 1))
	})
}

func TestViewTouches(t *testing.T) {
	requireT := require.New(t)

	l := NewUniformGrid(UniformGridConfig{
		Session: session.Local(),
		Domain:  domain.Sized(8, 8),
		Blocks:  []int{2, 2},
	})
	v := NewView(l, domain.NewRange(domain.NewStridedAxis(1, 7, 2), domain.NewAxis(2, 5)))
	requireT.Equal(l.ID(), v.ID())
	requireT.Equal(2, v.Dim())
	requireT.Equal(domain.Sized(4, 4), v.Domain())

	expected := map[types.GlobalID]domain.Domain{
		0: domain.NewInterval(domain.NewAxis(0, 1), domain.NewAxis(0, 1)),
		1: domain.NewInterval(domain.NewAxis(2, 3), domain.NewAxis(0, 1)),
		2: domain.NewInterval(domain.NewAxis(0, 1), domain.NewAxis(2, 3)),
		3: domain.NewInterval(domain.NewAxis(2, 3), domain.NewAxis(2, 3)),
	}
	nodes := v.Touches(v.Domain(), nil)
	requireT.Len(nodes, 4)
	for _, n := range nodes {
		requireT.Equal(expected[n.GlobalID], n.Owned)
	}
	requireT.Len(v.TouchesLocal(v.Domain(), nil), 4)
	requireT.Empty(v.TouchesRemote(v.Domain(), nil))

	requireT.Equal(types.GlobalID(1), v.GlobalID(3, 0))
	requireT.Equal(types.GlobalID(2), v.GlobalID(0, 3))
	requireT.Equal(types.NoGlobalID, v.GlobalID(4, 0))

	// View of view.
	vv := v.Sub(domain.NewInterval(domain.NewAxis(1, 2), domain.NewAxis(1, 1)))
	nodes = vv.Touches(vv.Domain(), nil)
	requireT.Len(nodes, 2)
	for _, n := range nodes {
		switch n.GlobalID {
		case 0:
			requireT.Equal(domain.NewInterval(domain.NewAxis(0, 0), domain.NewAxis(0, 0)), n.Owned)
		case 1:
			requireT.Equal(domain.NewInterval(domain.NewAxis(1, 1), domain.NewAxis(0, 0)), n.Owned)
		default:
			requireT.Fail("unexpected patch")
		}
	}

	// Slice of view.
	sv := v.Slice(domain.NewSlice(domain.NewInterval(domain.NewAxis(0, 3), domain.PointAxis(3)), 1))
	requireT.Equal(1, sv.Dim())
	requireT.Equal(types.GlobalID(3), sv.GlobalID(2))

	var db node.GlobalIDDataBase
	pieces := sv.TouchesINode(sv.Domain(), &db, 0, nil)
	requireT.Len(pieces, 2)
	for _, p := range pieces {
		switch p.GlobalID(l.ID()) {
		case 2:
			requireT.Equal(domain.NewInterval(domain.NewAxis(0, 1)), p.Domain)
		case 3:
			requireT.Equal(domain.NewInterval(domain.NewAxis(2, 3)), p.Domain)
		default:
			requireT.Fail("unexpected patch")
		}
	}

	requireT.Panics(func() {
		NewView(l, domain.Sized(9, 8))
	})
}
