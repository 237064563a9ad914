package types

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	// MaxDim is the maximum number of dimensions supported by domains.
	MaxDim = 7

	// ReplicatedContext marks nodes stored on every context.
	ReplicatedContext ContextID = -1

	// NoLocalID marks nodes which are not stored on this context.
	NoLocalID LocalID = -1

	// NoGlobalID is returned when no patch owns the requested point.
	NoGlobalID GlobalID = -1
)

type (
	// ContextID identifies the process (context) storing a patch.
	ContextID int

	// GlobalID is the index of a patch in the layout-wide node list.
	GlobalID int

	// LocalID is the index of a patch among the patches stored on one context.
	LocalID int

	// LayoutID identifies a layout.
	LayoutID uint64

	// NodeKey identifies an entry in the global ID database.
	NodeKey uint64
)

// DeleteMethod defines how holes left by destroyed elements are closed.
type DeleteMethod byte

const (
	// BackFill moves elements from the end of the patch into the holes. Order is not preserved.
	BackFill DeleteMethod = iota

	// ShiftUp shifts all the elements above the holes down. Order is preserved.
	ShiftUp
)

func (m DeleteMethod) String() string {
	switch m {
	case BackFill:
		return "backfill"
	case ShiftUp:
		return "shiftup"
	default:
		return fmt.Sprintf("DeleteMethod(%d)", m)
	}
}

// Face identifies one side of a patch along one axis.
// Face 2*axis is the lower side, 2*axis+1 is the upper one.
type Face uint8

// NewFace returns face of the axis and side.
func NewFace(axis int, upper bool) Face {
	f := Face(2 * axis)
	if upper {
		f++
	}
	return f
}

// Axis returns the axis of the face.
func (f Face) Axis() int {
	return int(f) / 2
}

// Upper returns true if face is the upper side of the axis.
func (f Face) Upper() bool {
	return f&1 == 1
}

// Bit returns bit of the face in the dirty mask.
func (f Face) Bit() uint32 {
	return 1 << f
}

// AllFaces returns the dirty mask with all faces of dim-dimensional patch set.
func AllFaces(dim int) uint32 {
	return 1<<(2*dim) - 1
}

// IDAllocator hands out unique identifiers. It is safe for concurrent use.
type IDAllocator struct {
	last uint64
}

// Next returns next unique ID.
func (a *IDAllocator) Next() uint64 {
	return atomic.AddUint64(&a.last, 1)
}

// NextLayoutID returns next unique layout ID.
func (a *IDAllocator) NextLayoutID() LayoutID {
	return LayoutID(a.Next())
}

// Insist panics if condition is not met. It is used to detect contract violations which are programming errors.
func Insist(condition bool, format string, args ...any) {
	if !condition {
		panic(errors.Errorf(format, args...))
	}
}
