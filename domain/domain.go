// Package domain implements N-dimensional index domains and the calculus operating on them.
package domain

import (
	"strings"

	"github.com/outofforest/tessera/types"
)

// Kind is the most specific shape a domain is declared with.
type Kind uint8

// Kinds are ordered from the most specific to the most general.
const (
	// KindLoc is the single point.
	KindLoc Kind = iota

	// KindInterval is the unit-stride box.
	KindInterval

	// KindRange is the box with arbitrary strides.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindLoc:
		return "loc"
	case KindInterval:
		return "interval"
	default:
		return "range"
	}
}

// Point is the N-dimensional index. Only the first Dim() elements are meaningful.
type Point [types.MaxDim]int

// Domain is an immutable N-dimensional set of indices built from one Axis per dimension.
type Domain struct {
	axes [types.MaxDim]Axis
	dim  uint8
	kind Kind
}

// New creates domain of the kind from axes.
func New(kind Kind, axes ...Axis) Domain {
	types.Insist(len(axes) > 0 && len(axes) <= types.MaxDim, "invalid number of dimensions: %d", len(axes))

	d := Domain{dim: uint8(len(axes)), kind: kind}
	for i, a := range axes {
		a = normalizeAxis(a)
		switch kind {
		case KindLoc:
			types.Insist(a.Length == 1, "loc axis %d must contain exactly one index, got %s", i, a)
		case KindInterval:
			types.Insist(a.Stride == 1, "interval axis %d must be unit-stride, got %s", i, a)
		}
		d.axes[i] = a
	}
	return d
}

// NewInterval creates unit-stride domain.
func NewInterval(axes ...Axis) Domain {
	return New(KindInterval, axes...)
}

// NewRange creates strided domain.
func NewRange(axes ...Axis) Domain {
	return New(KindRange, axes...)
}

// NewLoc creates single-point domain.
func NewLoc(indices ...int) Domain {
	axes := make([]Axis, 0, len(indices))
	for _, i := range indices {
		axes = append(axes, PointAxis(i))
	}
	return New(KindLoc, axes...)
}

// Sized creates interval domain 0..n-1 along each axis.
func Sized(lengths ...int) Domain {
	axes := make([]Axis, 0, len(lengths))
	for _, l := range lengths {
		axes = append(axes, AxisOfLength(l))
	}
	return New(KindInterval, axes...)
}

// Empty returns empty interval domain of the dimension.
func Empty(dim int) Domain {
	axes := make([]Axis, dim)
	return New(KindInterval, axes...)
}

// Kind returns kind of the domain.
func (d Domain) Kind() Kind {
	return d.kind
}

// Dim returns number of dimensions.
func (d Domain) Dim() int {
	return int(d.dim)
}

// Axis returns i-th axis.
func (d Domain) Axis(i int) Axis {
	return d.axes[i]
}

// Axes returns all the axes.
func (d Domain) Axes() []Axis {
	axes := make([]Axis, d.dim)
	copy(axes, d.axes[:d.dim])
	return axes
}

// First returns first index along the axis.
func (d Domain) First(axis int) int {
	return d.axes[axis].First
}

// Last returns last index along the axis.
func (d Domain) Last(axis int) int {
	return d.axes[axis].Last()
}

// Min returns the smallest index along the axis.
func (d Domain) Min(axis int) int {
	return d.axes[axis].Min()
}

// Max returns the largest index along the axis.
func (d Domain) Max(axis int) int {
	return d.axes[axis].Max()
}

// Stride returns stride along the axis.
func (d Domain) Stride(axis int) int {
	return d.axes[axis].Stride
}

// Length returns number of indices along the axis.
func (d Domain) Length(axis int) int {
	return d.axes[axis].Length
}

// IsEmpty returns true if domain contains no points.
func (d Domain) IsEmpty() bool {
	for i := range d.dim {
		if d.axes[i].Length == 0 {
			return true
		}
	}
	return d.dim == 0
}

// Size returns the number of points.
func (d Domain) Size() int {
	if d.dim == 0 {
		return 0
	}
	size := 1
	for i := range d.dim {
		size *= d.axes[i].Length
	}
	return size
}

// Unit returns true if all the axes are unit-stride.
func (d Domain) Unit() bool {
	for i := range d.dim {
		if d.axes[i].Stride != 1 {
			return false
		}
	}
	return true
}

// WithAxis returns copy of the domain with i-th axis replaced.
func (d Domain) WithAxis(i int, a Axis) Domain {
	a = normalizeAxis(a)
	if a.Stride != 1 && d.kind < KindRange {
		d.kind = KindRange
	}
	if a.Length != 1 && d.kind == KindLoc {
		d.kind = KindInterval
	}
	d.axes[i] = a
	return d
}

// AsRange returns the same domain declared as range.
func (d Domain) AsRange() Domain {
	d.kind = KindRange
	return d
}

// AsInterval returns the same domain declared as interval. Domain must be unit-stride.
func (d Domain) AsInterval() Domain {
	types.Insist(d.Unit(), "domain %s is not unit-stride", d)
	d.kind = KindInterval
	return d
}

// Bounds returns the smallest interval containing the domain.
func (d Domain) Bounds() Domain {
	b := Domain{dim: d.dim, kind: KindInterval}
	for i := range d.dim {
		a := d.axes[i]
		if a.Length == 0 {
			b.axes[i] = Axis{Stride: 1}
			continue
		}
		b.axes[i] = NewAxis(a.Min(), a.Max())
	}
	return b
}

// Shift moves the domain by offsets, one per axis.
func (d Domain) Shift(offsets ...int) Domain {
	types.Insist(len(offsets) == int(d.dim), "expected %d offsets, got %d", d.dim, len(offsets))
	for i, o := range offsets {
		d.axes[i] = d.axes[i].Shift(o)
	}
	return d
}

// Has returns true if point belongs to the domain.
func (d Domain) Has(indices ...int) bool {
	if len(indices) != int(d.dim) {
		return false
	}
	for i, x := range indices {
		if !d.axes[i].Has(x) {
			return false
		}
	}
	return true
}

// Take returns the domain built from positions of sub in this domain. Sub is expressed in zero-based
// coordinates of this domain.
func (d Domain) Take(sub Domain) Domain {
	types.Insist(sub.dim == d.dim, "dimension mismatch: %d != %d", sub.dim, d.dim)
	r := Domain{dim: d.dim, kind: max(d.kind, sub.kind, KindInterval)}
	for i := range d.dim {
		r.axes[i] = d.axes[i].Take(sub.axes[i])
		if r.axes[i].Stride != 1 {
			r.kind = KindRange
		}
	}
	return r
}

// Zero returns the domain of the same shape starting at zero with unit strides along each axis.
func (d Domain) Zero() Domain {
	z := Domain{dim: d.dim, kind: KindInterval}
	for i := range d.dim {
		z.axes[i] = AxisOfLength(d.axes[i].Length)
	}
	return z
}

// Points iterates over all the points, the first axis changing fastest.
func (d Domain) Points() func(func(Point) bool) {
	return func(yield func(Point) bool) {
		if d.IsEmpty() {
			return
		}

		var pos Point
		var p Point
		for i := range d.dim {
			p[i] = d.axes[i].First
		}
		for {
			if !yield(p) {
				return
			}

			axis := 0
			for ; axis < int(d.dim); axis++ {
				pos[axis]++
				if pos[axis] < d.axes[axis].Length {
					p[axis] += d.axes[axis].Stride
					break
				}
				pos[axis] = 0
				p[axis] = d.axes[axis].First
			}
			if axis == int(d.dim) {
				return
			}
		}
	}
}

// Split divides domain into two halves along the axis. The lower half gets floor(length/2) elements.
func Split(d Domain, axis int) (Domain, Domain) {
	a := d.axes[axis]
	half := a.Length / 2
	lo, hi := d, d
	lo.axes[axis] = a.Take(AxisOfLength(half))
	hi.axes[axis] = a.Take(NewAxis(half, a.Length-1))
	return lo, hi
}

func (d Domain) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i := range d.dim {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(d.axes[i].String())
	}
	sb.WriteString(")")
	return sb.String()
}
