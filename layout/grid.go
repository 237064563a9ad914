package layout

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/domainmap"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// GridConfig stores configuration of the grid layout.
type GridConfig struct {
	Session *session.Session
	Domain  domain.Domain

	// Partitioner divides the domain into blocks. Use partition.NewGrid or partition.NewGridFromCuts.
	Partitioner partition.BlockPartitioner

	// Mapper assigns patches to contexts. If nil, LocalMapper is used by single-context sessions and
	// DistributedMapper otherwise.
	Mapper partition.Mapper
}

// Grid is the layout of blocks of different sizes. Patch lookups are answered by the domain map and
// by binary search over block boundaries.
type Grid struct {
	base

	index  domainmap.Map[types.GlobalID]
	starts [][]int
}

// NewGrid creates grid layout.
func NewGrid(config GridConfig) *Grid {
	l := &Grid{}
	l.init(config.Session, config.Domain, config.Partitioner.InternalGuards(), config.Partitioner.ExternalGuards(),
		l)
	l.apply(config.Partitioner, defaultMapper(config.Session, config.Mapper))
	return l
}

// Repartition replaces the patches with the ones produced by the partitioner. Observers are notified after
// the new patch list is installed.
func (l *Grid) Repartition(ctx context.Context, p partition.BlockPartitioner, m partition.Mapper) {
	old := l.all
	l.internal = p.InternalGuards()
	l.external = p.ExternalGuards()
	l.full = l.external.Grow(l.inner)
	l.apply(p, defaultMapper(l.session, m))

	logger.Get(ctx).Debug("Layout repartitioned",
		zap.Uint64("layoutID", uint64(l.id)),
		zap.Int("patchesBefore", len(old)),
		zap.Int("patchesAfter", len(l.all)))
	l.notify(RepartitionEvent{Old: old})
}

func (l *Grid) apply(p partition.BlockPartitioner, m partition.Mapper) {
	nodes := p.Partition(l.inner)
	m.Map(nodes, l.session.Target())

	l.starts = nil
	if !l.inner.IsEmpty() {
		for _, axes := range p.BlockAxes(l.inner) {
			starts := make([]int, 0, len(axes))
			for _, a := range axes {
				starts = append(starts, a.First)
			}
			l.starts = append(l.starts, starts)
		}
	}

	l.index.Initialize(l.full)
	for _, n := range nodes {
		if !n.Owned.IsEmpty() {
			l.index.Insert(n.Owned, n.GlobalID)
		}
	}
	l.index.Update()

	l.setNodes(nodes)
}

// GlobalID returns ID of the patch owning the point.
func (l *Grid) GlobalID(indices ...int) types.GlobalID {
	if len(indices) != l.Dim() || l.starts == nil || !l.full.Has(indices...) {
		return types.NoGlobalID
	}

	var gid int
	mult := 1
	for axis, x := range indices {
		starts := l.starts[axis]
		b := sort.Search(len(starts), func(i int) bool {
			return starts[i] > x
		}) - 1
		gid += max(b, 0) * mult
		mult *= len(starts)
	}
	return types.GlobalID(gid)
}

func (l *Grid) candidates(d domain.Domain) func(func(types.GlobalID) bool) {
	return func(yield func(types.GlobalID) bool) {
		for e := range l.index.Touch(d) {
			if !yield(e.Value) {
				return
			}
		}
	}
}
