package domain

import (
	"github.com/outofforest/tessera/types"
)

// Slice is the domain reducing dimensionality: ignored axes of the total domain are fixed to a single index and
// disappear from the slice domain.
type Slice struct {
	total   Domain
	ignored [types.MaxDim]bool
	dim     uint8
}

// NewSlice creates slice of the total domain fixing listed axes. Each fixed axis must contain exactly one index.
func NewSlice(total Domain, fixed ...int) Slice {
	s := Slice{total: total, dim: total.dim}
	for _, axis := range fixed {
		types.Insist(axis >= 0 && axis < total.Dim(), "axis %d out of range", axis)
		types.Insist(total.axes[axis].Length == 1, "fixed axis %d must contain one index, got %s", axis,
			total.axes[axis])
		types.Insist(!s.ignored[axis], "axis %d fixed twice", axis)
		s.ignored[axis] = true
		s.dim--
	}
	types.Insist(s.dim > 0, "slice must keep at least one axis")
	return s
}

// Total returns the full-dimensional domain.
func (s Slice) Total() Domain {
	return s.total
}

// Dim returns dimension of the slice domain.
func (s Slice) Dim() int {
	return int(s.dim)
}

// TotalDim returns dimension of the total domain.
func (s Slice) TotalDim() int {
	return int(s.total.dim)
}

// Ignored returns true if axis of the total domain is fixed.
func (s Slice) Ignored(axis int) bool {
	return s.ignored[axis]
}

// Domain returns the reduced domain built from the axes which are not fixed.
func (s Slice) Domain() Domain {
	d := Domain{dim: s.dim, kind: max(s.total.kind, KindInterval)}
	var j int
	for i := range s.total.dim {
		if s.ignored[i] {
			continue
		}
		d.axes[j] = s.total.axes[i]
		j++
	}
	return d
}
