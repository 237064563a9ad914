package partition

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Tile partitions the domain into explicitly listed tiles. Tiles must not overlap but they don't need to cover
// the whole domain.
type Tile struct {
	guards

	tiles []domain.Domain
}

// NewTile creates tile partitioner.
func NewTile(tiles []domain.Domain, internal, external domain.GuardLayers) Tile {
	types.Insist(len(tiles) > 0, "no tiles")
	dim := tiles[0].Dim()
	for i, t := range tiles {
		types.Insist(t.Dim() == dim, "tile %d has dimension %d, expected %d", i, t.Dim(), dim)
		types.Insist(t.Unit(), "tile %d must be unit-stride, got %s", i, t)
		for j := range i {
			types.Insist(!domain.Touches(t, tiles[j]), "tiles %d and %d overlap", j, i)
		}
	}

	return Tile{
		guards: newGuards(dim, internal, external),
		tiles:  append([]domain.Domain(nil), tiles...),
	}
}

// Dim returns number of dimensions.
func (p Tile) Dim() int {
	return p.tiles[0].Dim()
}

// Patches returns number of patches.
func (p Tile) Patches() int {
	return len(p.tiles)
}

// Partition returns one node per tile.
func (p Tile) Partition(global domain.Domain) []node.Node {
	types.Insist(global.Dim() == p.Dim(), "domain dimension %d does not match partition dimension %d",
		global.Dim(), p.Dim())
	if global.IsEmpty() {
		return emptyNodes(p.Dim(), p.Patches())
	}

	nodes := make([]node.Node, 0, len(p.tiles))
	for i, t := range p.tiles {
		types.Insist(domain.Contains(global, t), "tile %s is outside of domain %s", t, global)
		nodes = append(nodes, p.makeNode(t, global, types.GlobalID(i)))
	}
	return nodes
}
