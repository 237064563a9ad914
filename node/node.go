package node

import (
	"fmt"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/types"
)

// Node describes one patch of the layout.
type Node struct {
	// Owned is the part of the domain the patch is responsible for.
	Owned domain.Domain

	// Allocated is the owned domain grown by guard layers.
	Allocated domain.Domain

	// Context is the context storing the patch, ReplicatedContext if patch is stored everywhere.
	Context types.ContextID

	// GlobalID is the index of the patch in the layout.
	GlobalID types.GlobalID

	// LocalID is the index of the patch among patches stored by this context.
	LocalID types.LocalID

	// Affinity is the hint for the scheduler telling which worker should process the patch.
	Affinity int
}

// New returns node without guards, not mapped to any context yet.
func New(owned domain.Domain, gid types.GlobalID) Node {
	return Node{
		Owned:     owned,
		Allocated: owned,
		GlobalID:  gid,
		LocalID:   types.NoLocalID,
	}
}

// IsLocal returns true if node is stored by the context.
func (n Node) IsLocal(ctx types.ContextID) bool {
	return n.Context == types.ReplicatedContext || n.Context == ctx
}

// WithDomain returns copy of the node with the owned and allocated domains replaced by d.
func (n Node) WithDomain(d domain.Domain) Node {
	n.Owned = d
	n.Allocated = d
	return n
}

func (n Node) String() string {
	return fmt.Sprintf("node{gid: %d, lid: %d, context: %d, owned: %s, allocated: %s}", n.GlobalID, n.LocalID,
		n.Context, n.Owned, n.Allocated)
}
