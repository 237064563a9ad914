package layout

import (
	"context"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// UniformGridConfig stores configuration of the uniform grid layout.
type UniformGridConfig struct {
	Session        *session.Session
	Domain         domain.Domain
	Blocks         []int
	InternalGuards domain.GuardLayers
	ExternalGuards domain.GuardLayers

	// Mapper assigns patches to contexts. If nil, LocalMapper is used by single-context sessions and
	// DistributedMapper otherwise.
	Mapper partition.Mapper
}

// UniformGrid is the layout of equally sized blocks. Patch lookups are computed arithmetically.
type UniformGrid struct {
	base

	blocks []int
	first  [types.MaxDim]int
	size   [types.MaxDim]int
}

// NewUniformGrid creates uniform grid layout.
func NewUniformGrid(config UniformGridConfig) *UniformGrid {
	l := &UniformGrid{}
	l.apply(config.Session, config.Domain,
		partition.NewUniformGrid(config.Blocks, config.InternalGuards, config.ExternalGuards),
		defaultMapper(config.Session, config.Mapper))
	return l
}

// Repartition replaces the patches with the ones produced by the partitioner. Observers are notified after
// the new patch list is installed.
func (l *UniformGrid) Repartition(ctx context.Context, p partition.UniformGrid, m partition.Mapper) {
	old := l.all
	l.apply(l.session, l.inner, p, defaultMapper(l.session, m))

	logger.Get(ctx).Debug("Layout repartitioned",
		zap.Uint64("layoutID", uint64(l.id)),
		zap.Int("patchesBefore", len(old)),
		zap.Int("patchesAfter", len(l.all)))
	l.notify(RepartitionEvent{Old: old})
}

// Blocks returns the number of blocks along the axis.
func (l *UniformGrid) Blocks(axis int) int {
	return l.blocks[axis]
}

func (l *UniformGrid) apply(s *session.Session, inner domain.Domain, p partition.UniformGrid, m partition.Mapper) {
	if l.session == nil {
		l.init(s, inner, p.InternalGuards(), p.ExternalGuards(), l)
	} else {
		l.internal = p.InternalGuards()
		l.external = p.ExternalGuards()
		l.full = l.external.Grow(inner)
	}

	nodes := p.Partition(inner)
	m.Map(nodes, s.Target())

	l.blocks = make([]int, p.Dim())
	for axis := range p.Dim() {
		l.blocks[axis] = p.Blocks(axis)
		l.first[axis] = inner.First(axis)
		l.size[axis] = inner.Length(axis) / l.blocks[axis]
	}
	l.setNodes(nodes)
}

// GlobalID returns ID of the patch owning the point.
func (l *UniformGrid) GlobalID(indices ...int) types.GlobalID {
	if len(indices) != len(l.blocks) || l.inner.IsEmpty() || !l.full.Has(indices...) {
		return types.NoGlobalID
	}

	var gid, mult int
	mult = 1
	for axis, x := range indices {
		gid += l.block(axis, x) * mult
		mult *= l.blocks[axis]
	}
	return types.GlobalID(gid)
}

func (l *UniformGrid) block(axis, x int) int {
	b := x - l.first[axis]
	if b < 0 {
		return 0
	}
	return min(b/l.size[axis], l.blocks[axis]-1)
}

func (l *UniformGrid) candidates(d domain.Domain) func(func(types.GlobalID) bool) {
	return func(yield func(types.GlobalID) bool) {
		if d.IsEmpty() || l.inner.IsEmpty() {
			return
		}

		dim := len(l.blocks)
		var lo, hi, pos [types.MaxDim]int
		for axis := range dim {
			dMin := max(d.Min(axis), l.full.Min(axis))
			dMax := min(d.Max(axis), l.full.Max(axis))
			if dMin > dMax {
				return
			}
			lo[axis] = l.block(axis, dMin)
			hi[axis] = l.block(axis, dMax)
		}

		pos = lo
		for {
			var gid, mult int
			mult = 1
			for axis := range dim {
				gid += pos[axis] * mult
				mult *= l.blocks[axis]
			}
			if !yield(types.GlobalID(gid)) {
				return
			}

			axis := 0
			for ; axis < dim; axis++ {
				pos[axis]++
				if pos[axis] <= hi[axis] {
					break
				}
				pos[axis] = lo[axis]
			}
			if axis == dim {
				return
			}
		}
	}
}

func defaultMapper(s *session.Session, m partition.Mapper) partition.Mapper {
	switch {
	case m != nil:
		return m
	case s.Contexts() == 1:
		return partition.LocalMapper{}
	default:
		return partition.DistributedMapper{}
	}
}
