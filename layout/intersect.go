package layout

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Intersector splits the domain into pieces, each owned by exactly one patch of every intersected layout.
// Pieces remember the patches they come from, so their global IDs might be resolved for any of those layouts.
type Intersector struct {
	db *node.GlobalIDDataBase
}

// NewIntersector creates intersector.
func NewIntersector() *Intersector {
	return &Intersector{db: &node.GlobalIDDataBase{}}
}

// DataBase returns the database recording origins of the pieces.
func (i *Intersector) DataBase() *node.GlobalIDDataBase {
	return i.db
}

// Intersect splits d by patches of all the queriers. Points of d not owned by some querier are dropped.
func (i *Intersector) Intersect(d domain.Domain, queriers ...Querier) []node.INode {
	if d.IsEmpty() {
		return nil
	}

	current := []node.INode{node.NewINode(d, types.ReplicatedContext, 0, i.db)}
	var next []node.INode
	for _, q := range queriers {
		types.Insist(q.Dim() == d.Dim(), "querier dimension %d does not match domain dimension %d", q.Dim(),
			d.Dim())

		next = next[:0]
		for _, n := range current {
			next = q.TouchesINode(n.Domain, i.db, n.Key, next)
		}
		current, next = next, current
	}
	return current
}
