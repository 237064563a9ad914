// Package partition divides the global domain into patches and assigns patches to contexts.
package partition

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Partitioner divides the global domain into patches.
type Partitioner interface {
	// Partition returns nodes covering the global domain. Owned domains of boundary patches are grown by
	// the external guards, allocated domains are grown by the internal guards on the interior faces.
	// For empty global domain, Patches() empty nodes are returned.
	Partition(global domain.Domain) []node.Node

	// Dim returns number of dimensions.
	Dim() int

	// Patches returns the number of patches produced.
	Patches() int

	// InternalGuards returns guards between neighbouring patches.
	InternalGuards() domain.GuardLayers

	// ExternalGuards returns guards around the global domain.
	ExternalGuards() domain.GuardLayers
}

// Target describes contexts the nodes are mapped to.
type Target struct {
	// Context is the context running the code.
	Context types.ContextID

	// Contexts is the total number of contexts.
	Contexts int

	// Concurrency is the number of workers processing local patches.
	Concurrency int
}

// Mapper assigns contexts, local IDs and affinities to nodes.
type Mapper interface {
	Map(nodes []node.Node, target Target)
}

type guards struct {
	internal domain.GuardLayers
	external domain.GuardLayers
}

func newGuards(dim int, internal, external domain.GuardLayers) guards {
	return guards{
		internal: normalizeGuards(internal, dim),
		external: normalizeGuards(external, dim),
	}
}

func (g guards) InternalGuards() domain.GuardLayers {
	return g.internal
}

func (g guards) ExternalGuards() domain.GuardLayers {
	return g.external
}

// makeNode builds the node of the block. Boundary faces are detected by comparing block with the global domain.
func (g guards) makeNode(block, global domain.Domain, gid types.GlobalID) node.Node {
	n := node.New(block, gid)
	if block.IsEmpty() {
		return n
	}

	owned := block
	for axis := range block.Dim() {
		if block.Min(axis) == global.Min(axis) {
			owned = g.external.GrowLower(owned, axis)
		}
		if block.Max(axis) == global.Max(axis) {
			owned = g.external.GrowUpper(owned, axis)
		}
	}

	allocated := owned
	for axis := range block.Dim() {
		if block.Min(axis) != global.Min(axis) {
			allocated = g.internal.GrowLower(allocated, axis)
		}
		if block.Max(axis) != global.Max(axis) {
			allocated = g.internal.GrowUpper(allocated, axis)
		}
	}

	n.Owned = owned
	n.Allocated = allocated
	return n
}

func normalizeGuards(g domain.GuardLayers, dim int) domain.GuardLayers {
	if g.Dim() == 0 {
		return domain.NoGuards(dim)
	}
	types.Insist(g.Dim() == dim, "guards dimension %d does not match partition dimension %d", g.Dim(), dim)
	return g
}

func emptyNodes(dim, n int) []node.Node {
	nodes := make([]node.Node, 0, n)
	for i := range n {
		nodes = append(nodes, node.New(domain.Empty(dim), types.GlobalID(i)))
	}
	return nodes
}

// blockIndices iterates over block coordinates, the first axis changing fastest.
func blockIndices(counts []int) func(func([]int) bool) {
	return func(yield func([]int) bool) {
		pos := make([]int, len(counts))
		for _, c := range counts {
			if c == 0 {
				return
			}
		}
		for {
			if !yield(pos) {
				return
			}
			axis := 0
			for ; axis < len(counts); axis++ {
				pos[axis]++
				if pos[axis] < counts[axis] {
					break
				}
				pos[axis] = 0
			}
			if axis == len(counts) {
				return
			}
		}
	}
}
