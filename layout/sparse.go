package layout

import (
	"context"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/domainmap"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// SparseTileConfig stores configuration of the sparse tile layout.
type SparseTileConfig struct {
	Session *session.Session

	// BoundingBox is the domain tiles are placed in.
	BoundingBox domain.Domain

	Tiles          []domain.Domain
	InternalGuards domain.GuardLayers
	ExternalGuards domain.GuardLayers

	// Mapper assigns patches to contexts. If nil, LocalMapper is used by single-context sessions and
	// DistributedMapper otherwise.
	Mapper partition.Mapper
}

// SparseTile is the layout of tiles which don't have to cover the whole bounding box. Points not covered by any
// tile have no owner.
type SparseTile struct {
	base

	index domainmap.Map[types.GlobalID]
}

// NewSparseTile creates sparse tile layout.
func NewSparseTile(config SparseTileConfig) *SparseTile {
	p := partition.NewTile(config.Tiles, config.InternalGuards, config.ExternalGuards)

	l := &SparseTile{}
	l.init(config.Session, config.BoundingBox, p.InternalGuards(), p.ExternalGuards(), l)
	l.apply(p, defaultMapper(config.Session, config.Mapper))
	return l
}

// Repartition replaces the tiles. Observers are notified after the new patch list is installed.
func (l *SparseTile) Repartition(ctx context.Context, p partition.Tile, m partition.Mapper) {
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

func (l *SparseTile) apply(p partition.Tile, m partition.Mapper) {
	nodes := p.Partition(l.inner)
	m.Map(nodes, l.session.Target())

	// Allocated domains of tiles may stick out of the bounding box.
	bounds := l.full
	for _, n := range nodes {
		bounds = hull(bounds, n.Allocated)
	}
	l.index.Initialize(bounds)
	for _, n := range nodes {
		if !n.Owned.IsEmpty() {
			l.index.Insert(n.Owned, n.GlobalID)
		}
	}
	l.index.Update()

	l.setNodes(nodes)
}

func (l *SparseTile) candidates(d domain.Domain) func(func(types.GlobalID) bool) {
	return func(yield func(types.GlobalID) bool) {
		for e := range l.index.Touch(d) {
			if !yield(e.Value) {
				return
			}
		}
	}
}

// hull returns the smallest interval containing both domains.
func hull(a, b domain.Domain) domain.Domain {
	switch {
	case b.IsEmpty():
		return a.Bounds()
	case a.IsEmpty():
		return b.Bounds()
	}

	axes := make([]domain.Axis, 0, a.Dim())
	for axis := range a.Dim() {
		axes = append(axes, domain.NewAxis(min(a.Min(axis), b.Min(axis)), max(a.Max(axis), b.Max(axis))))
	}
	return domain.NewInterval(axes...)
}
