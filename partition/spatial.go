package partition

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Even divides 1-dimensional domain into the number of contiguous patches of almost equal sizes. Unlike Grid, it
// accepts domains shorter than the number of patches, leaving some patches empty. It is used by dynamic layouts.
type Even struct {
	guards

	patches int
}

// NewEven creates even partitioner.
func NewEven(patches int) Even {
	types.Insist(patches > 0, "number of patches must be positive, got %d", patches)
	return Even{
		guards:  newGuards(1, domain.GuardLayers{}, domain.GuardLayers{}),
		patches: patches,
	}
}

// Dim returns number of dimensions.
func (p Even) Dim() int {
	return 1
}

// Patches returns number of patches.
func (p Even) Patches() int {
	return p.patches
}

// Partition divides the domain.
func (p Even) Partition(global domain.Domain) []node.Node {
	types.Insist(global.Dim() == 1, "even partition is 1-dimensional, got domain %s", global)

	nodes := emptyNodes(1, p.patches)
	a := global.Axis(0)
	size, rest := a.Length/p.patches, a.Length%p.patches
	first := a.First
	for i := range nodes {
		l := size
		if i < rest {
			l++
		}
		nodes[i] = nodes[i].WithDomain(domain.NewInterval(domain.NewAxis(first, first+l-1)))
		first += l
	}
	return nodes
}

// Reference is the layout the spatial partition follows.
type Reference interface {
	Nodes() []node.Node
}

// Spatial creates one 1-dimensional patch per patch of the reference layout, stored by the same context.
// It is used by dynamic layouts holding elements located in the reference layout's patches.
// Spatial partition is paired with PreservingMapper to keep the contexts.
type Spatial struct {
	Even

	contexts []types.ContextID
}

// NewSpatial creates spatial partitioner following the reference layout.
func NewSpatial(ref Reference) Spatial {
	nodes := ref.Nodes()
	types.Insist(len(nodes) > 0, "reference layout has no patches")

	contexts := make([]types.ContextID, 0, len(nodes))
	for _, n := range nodes {
		contexts = append(contexts, n.Context)
	}
	return Spatial{
		Even:     NewEven(len(nodes)),
		contexts: contexts,
	}
}

// Partition returns nodes stored by the contexts of reference patches. Elements of non-empty global domain
// are spread evenly.
func (p Spatial) Partition(global domain.Domain) []node.Node {
	nodes := p.Even.Partition(global)
	for i := range nodes {
		nodes[i].Context = p.contexts[i]
	}
	return nodes
}
