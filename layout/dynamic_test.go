package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/remote"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/test"
	"github.com/outofforest/tessera/types"
)

func TestDynamicDestroyAndSync(t *testing.T) {
	requireT := require.New(t)
	ctx := test.Context(t)

	l := NewDynamic(DynamicConfig{
		Session: session.Local(),
		Domain:  domain.Sized(20),
		Patches: 1,
	})
	r := &recorder{}
	l.Attach(r)

	requireT.Equal(20, l.PatchSize(0))
	requireT.Equal(types.BackFill, l.DeleteMethod())

	l.Destroy(domain.NewInterval(domain.NewAxis(5, 12)), types.NoGlobalID, types.BackFill)
	requireT.Equal(12, l.PatchSize(0))
	requireT.Equal(domain.Sized(12), l.Domain())
	requireT.Equal(domain.Sized(12), l.Node(0).Owned)
	requireT.Equal([]Event{DestroyEvent{
		Patch:   0,
		Offsets: []int{5, 6, 7, 8, 9, 10, 11, 12},
		Method:  types.BackFill,
	}}, r.events)

	l.SetDeleteMethod(types.ShiftUp)
	l.DeferredDestroy(domain.NewRange(domain.NewStridedAxis(1, 11, 2)), types.NoGlobalID)
	requireT.Equal(12, l.PatchSize(0))

	requireT.Panics(func() {
		l.Destroy(domain.NewLoc(0), 0, types.BackFill)
	})

	requireT.NoError(l.Sync(ctx))
	requireT.Equal(6, l.PatchSize(0))
	requireT.Equal(domain.Sized(6), l.Domain())
	requireT.Equal([]Event{
		DestroyEvent{
			Patch:   0,
			Offsets: []int{1, 3, 5, 7, 9, 11},
			Method:  types.ShiftUp,
		},
		SyncEvent{},
	}, r.events[1:])
}

func TestDynamicCreateAndCopy(t *testing.T) {
	requireT := require.New(t)

	l := NewDynamic(DynamicConfig{
		Session: session.Local(),
		Domain:  domain.Empty(1),
		Patches: 3,
	})
	r := &recorder{}
	l.Attach(r)

	requireT.Equal(3, l.SizeGlobal())
	requireT.True(l.Domain().IsEmpty())
	requireT.Equal(types.NoGlobalID, l.GlobalID(0))

	requireT.Equal(domain.NewInterval(domain.NewAxis(0, 3)), l.Create(4, 0))
	requireT.Equal(domain.NewInterval(domain.NewAxis(4, 5)), l.Create(2, types.NoGlobalID))
	requireT.Equal(domain.NewInterval(domain.NewAxis(4, 4)), l.Create(1, 1))

	requireT.Equal(domain.Sized(7), l.Domain())
	requireT.Equal(domain.NewInterval(domain.NewAxis(0, 3)), l.Node(0).Owned)
	requireT.Equal(domain.NewInterval(domain.NewAxis(4, 4)), l.Node(1).Owned)
	requireT.Equal(domain.NewInterval(domain.NewAxis(5, 6)), l.Node(2).Owned)

	requireT.Equal(types.GlobalID(0), l.GlobalID(3))
	requireT.Equal(types.GlobalID(1), l.GlobalID(4))
	requireT.Equal(types.GlobalID(2), l.GlobalID(6))
	requireT.Equal(types.NoGlobalID, l.GlobalID(7))
	requireT.Equal(types.NoGlobalID, l.GlobalID(-1))

	requireT.Equal([]types.GlobalID{0, 1, 2},
		test.CollectGlobalIDs(l.Touches(domain.NewInterval(domain.NewAxis(3, 5)), nil)))
	requireT.Equal([]types.GlobalID{1},
		test.CollectGlobalIDs(l.Touches(domain.NewLoc(4), nil)))

	// Elements 1 and 3 of patch 0 are appended to patch 2.
	copied := l.Copy(domain.NewRange(domain.NewStridedAxis(1, 3, 2)), 0, 2)
	requireT.Equal(domain.NewInterval(domain.NewAxis(7, 8)), copied)
	requireT.Equal(domain.NewInterval(domain.NewAxis(5, 8)), l.Node(2).Owned)

	// Destroy spanning two patches.
	l.Destroy(domain.NewInterval(domain.NewAxis(3, 5)), types.NoGlobalID, types.ShiftUp)
	requireT.Equal(3, l.PatchSize(0))
	requireT.Equal(0, l.PatchSize(1))
	requireT.Equal(3, l.PatchSize(2))
	requireT.Equal(domain.NewInterval(domain.NewAxis(3, 5)), l.Node(2).Owned)
	requireT.True(l.Node(1).Owned.IsEmpty())
	requireT.Equal(types.GlobalID(2), l.GlobalID(3))

	requireT.Equal([]Event{
		CreateEvent{Patch: 0, Count: 4},
		CreateEvent{Patch: 2, Count: 2},
		CreateEvent{Patch: 1, Count: 1},
		CopyEvent{From: 0, To: 2, Offsets: []int{1, 3}},
		DestroyEvent{Patch: 0, Offsets: []int{3}, Method: types.ShiftUp},
		DestroyEvent{Patch: 1, Offsets: []int{0}, Method: types.ShiftUp},
		DestroyEvent{Patch: 2, Offsets: []int{0}, Method: types.ShiftUp},
	}, r.events)

	requireT.Panics(func() {
		l.Destroy(domain.NewInterval(domain.NewAxis(0, 4)), 0, types.BackFill)
	})
	requireT.Panics(func() {
		l.Create(1, 3)
	})
}

func TestDynamicSyncAcrossContexts(t *testing.T) {
	requireT := require.New(t)

	const contexts = 3
	results := make([][]node.Node, contexts)
	err := test.RunContexts(test.Context(t), contexts, func(ctx context.Context, comm remote.Communicator) error {
		s := session.New(session.Config{Comm: comm, Concurrency: 2})
		l := NewDynamic(DynamicConfig{
			Session: s,
			Domain:  domain.Empty(1),
			Patches: 2 * contexts,
		})

		// Each context appends to its last patch only.
		l.Create(int(s.Context())+1, types.NoGlobalID)
		if err := l.Sync(ctx); err != nil {
			return err
		}
		results[s.Context()] = l.Nodes()
		return nil
	})
	requireT.NoError(err)

	for c, nodes := range results {
		requireT.Len(nodes, 2*contexts)
		requireT.Equal(results[0][5].Owned, nodes[5].Owned, "context %d", c)
		for i, n := range nodes {
			requireT.Equal(types.ContextID(i/2), n.Context)
			requireT.Equal(results[0][i].Owned, n.Owned)
		}
	}

	nodes := results[0]
	requireT.True(nodes[0].Owned.IsEmpty())
	requireT.Equal(domain.NewInterval(domain.NewAxis(0, 0)), nodes[1].Owned)
	requireT.True(nodes[2].Owned.IsEmpty())
	requireT.Equal(domain.NewInterval(domain.NewAxis(1, 2)), nodes[3].Owned)
	requireT.True(nodes[4].Owned.IsEmpty())
	requireT.Equal(domain.NewInterval(domain.NewAxis(3, 5)), nodes[5].Owned)
}

func TestDynamicWithSpatialPartition(t *testing.T) {
	requireT := require.New(t)

	s := session.Local()
	ref := NewUniformGrid(UniformGridConfig{
		Session: s,
		Domain:  domain.Sized(4, 4),
		Blocks:  []int{2, 2},
	})
	l := NewDynamic(DynamicConfig{
		Session:     s,
		Domain:      domain.Empty(1),
		Partitioner: partition.NewSpatial(ref),
		Mapper:      partition.PreservingMapper{},
	})
	requireT.Equal(ref.SizeGlobal(), l.SizeGlobal())
	for _, n := range l.Nodes() {
		requireT.Equal(types.ReplicatedContext, n.Context)
		requireT.True(n.Owned.IsEmpty())
	}
}
