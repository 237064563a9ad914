package layout

import (
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Event is the change of the layout delivered to observers.
type Event interface {
	layoutEvent()
}

// RepartitionEvent is sent after the patch list has been replaced.
type RepartitionEvent struct {
	// Old is the previous patch list.
	Old []node.Node
}

// CreateEvent is sent after Count elements have been appended to the patch.
type CreateEvent struct {
	Patch types.GlobalID
	Count int
}

// DestroyEvent is sent after elements have been removed from the patch. Offsets are sorted positions of removed
// elements relative to the beginning of the patch, taken before removal.
type DestroyEvent struct {
	Patch   types.GlobalID
	Offsets []int
	Method  types.DeleteMethod
}

// CopyEvent is sent after elements of patch From, at sorted Offsets relative to its beginning, have been
// appended to patch To.
type CopyEvent struct {
	From    types.GlobalID
	To      types.GlobalID
	Offsets []int
}

// SyncEvent is sent after contexts agreed on the patch list.
type SyncEvent struct{}

func (RepartitionEvent) layoutEvent() {}
func (CreateEvent) layoutEvent()      {}
func (DestroyEvent) layoutEvent()     {}
func (CopyEvent) layoutEvent()        {}
func (SyncEvent) layoutEvent()        {}
