package partition

import (
	"slices"

	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// LocalMapper replicates all the patches on every context.
type LocalMapper struct{}

// Map maps nodes.
func (LocalMapper) Map(nodes []node.Node, target Target) {
	for i := range nodes {
		nodes[i].Context = types.ReplicatedContext
	}
	assignLocal(nodes, target)
}

// UniformMapper assigns contiguous ranges of patches to contexts.
type UniformMapper struct{}

// Map maps nodes.
func (UniformMapper) Map(nodes []node.Node, target Target) {
	contexts := max(target.Contexts, 1)
	for i := range nodes {
		nodes[i].Context = types.ContextID(i * contexts / len(nodes))
	}
	assignLocal(nodes, target)
}

// PreservingMapper keeps contexts assigned by the partitioner.
type PreservingMapper struct{}

// Map maps nodes.
func (PreservingMapper) Map(nodes []node.Node, target Target) {
	assignLocal(nodes, target)
}

// DistributedMapper assigns patches to contexts by recursive coordinate bisection of patch centres, so patches
// close to each other are stored by the same context.
type DistributedMapper struct{}

// Map maps nodes.
func (DistributedMapper) Map(nodes []node.Node, target Target) {
	if len(nodes) == 0 {
		return
	}

	dim := nodes[0].Owned.Dim()
	centres := make([][types.MaxDim]int, len(nodes))
	for i, n := range nodes {
		if n.Owned.IsEmpty() {
			continue
		}
		for axis := range dim {
			// Doubled to stay in integers.
			centres[i][axis] = n.Owned.Min(axis) + n.Owned.Max(axis)
		}
	}

	indices := make([]int, 0, len(nodes))
	for i := range nodes {
		indices = append(indices, i)
	}
	bisect(nodes, centres, dim, indices, 0, max(target.Contexts, 1))
	assignLocal(nodes, target)
}

func bisect(nodes []node.Node, centres [][types.MaxDim]int, dim int, indices []int, firstContext types.ContextID,
	contexts int,
) {
	if contexts == 1 || len(indices) == 0 {
		for _, i := range indices {
			nodes[i].Context = firstContext
		}
		return
	}

	var axis, spread int
	for a := range dim {
		lo, hi := centres[indices[0]][a], centres[indices[0]][a]
		for _, i := range indices[1:] {
			lo = min(lo, centres[i][a])
			hi = max(hi, centres[i][a])
		}
		if hi-lo > spread {
			axis, spread = a, hi-lo
		}
	}

	slices.SortStableFunc(indices, func(i, j int) int {
		return centres[i][axis] - centres[j][axis]
	})

	lowContexts := contexts / 2
	split := len(indices) * lowContexts / contexts
	bisect(nodes, centres, dim, indices[:split], firstContext, lowContexts)
	bisect(nodes, centres, dim, indices[split:], firstContext+types.ContextID(lowContexts), contexts-lowContexts)
}

// assignLocal assigns local IDs and affinities to the nodes stored by the target context.
func assignLocal(nodes []node.Node, target Target) {
	var local int
	for _, n := range nodes {
		if n.IsLocal(target.Context) {
			local++
		}
	}

	concurrency := max(target.Concurrency, 1)
	var lid int
	for i := range nodes {
		if !nodes[i].IsLocal(target.Context) {
			nodes[i].LocalID = types.NoLocalID
			nodes[i].Affinity = -1
			continue
		}
		nodes[i].LocalID = types.LocalID(lid)
		nodes[i].Affinity = lid * concurrency / local
		lid++
	}
}
