package domain

import (
	"fmt"

	"github.com/outofforest/tessera/types"
)

// Axis is the one-dimensional sequence of indices First, First+Stride, ... containing Length elements.
// Empty axis is always represented as {0, 1, 0} and single-element axis always has stride 1, so axes might be
// compared using ==.
type Axis struct {
	First  int
	Stride int
	Length int
}

// NewAxis returns unit-stride axis first..last. If last < first, empty axis is returned.
func NewAxis(first, last int) Axis {
	if last < first {
		return Axis{Stride: 1}
	}
	return Axis{First: first, Stride: 1, Length: last - first + 1}
}

// NewStridedAxis returns axis first, first+stride, ... not going beyond last.
func NewStridedAxis(first, last, stride int) Axis {
	types.Insist(stride != 0, "stride must not be zero")

	diff := last - first
	if diff != 0 && (diff > 0) != (stride > 0) {
		return Axis{Stride: 1}
	}
	return normalizeAxis(Axis{First: first, Stride: stride, Length: diff/stride + 1})
}

// AxisOfLength returns axis 0..length-1.
func AxisOfLength(length int) Axis {
	return NewAxis(0, length-1)
}

// PointAxis returns axis containing single index.
func PointAxis(index int) Axis {
	return Axis{First: index, Stride: 1, Length: 1}
}

func normalizeAxis(a Axis) Axis {
	switch {
	case a.Length <= 0:
		return Axis{Stride: 1}
	case a.Length == 1:
		a.Stride = 1
	}
	return a
}

// Empty returns true if axis contains no indices.
func (a Axis) Empty() bool {
	return a.Length == 0
}

// Last returns the last index of the axis.
func (a Axis) Last() int {
	return a.First + (a.Length-1)*a.Stride
}

// Min returns the smallest index.
func (a Axis) Min() int {
	if a.Stride < 0 {
		return a.Last()
	}
	return a.First
}

// Max returns the largest index.
func (a Axis) Max() int {
	if a.Stride < 0 {
		return a.First
	}
	return a.Last()
}

// Unit returns true if axis is unit-stride.
func (a Axis) Unit() bool {
	return a.Stride == 1
}

// Index returns i-th index of the axis.
func (a Axis) Index(i int) int {
	return a.First + i*a.Stride
}

// Offset returns position of the index in the axis. Index must belong to the axis.
func (a Axis) Offset(index int) int {
	return (index - a.First) / a.Stride
}

// Has returns true if index belongs to the axis.
func (a Axis) Has(index int) bool {
	if a.Length == 0 || index < a.Min() || index > a.Max() {
		return false
	}
	return (index-a.First)%a.Stride == 0
}

// Shift moves the axis by offset.
func (a Axis) Shift(offset int) Axis {
	if a.Length == 0 {
		return a
	}
	a.First += offset
	return a
}

// Reverse returns axis containing the same indices in opposite order.
func (a Axis) Reverse() Axis {
	if a.Length <= 1 {
		return a
	}
	return Axis{First: a.Last(), Stride: -a.Stride, Length: a.Length}
}

// Take returns the axis built from positions of sub in this axis, e.g. if a is 10, 12, 14, 16 and sub is 1..3,
// the result is 12, 14, 16.
func (a Axis) Take(sub Axis) Axis {
	if sub.Length == 0 {
		return Axis{Stride: 1}
	}
	return normalizeAxis(Axis{
		First:  a.First + sub.First*a.Stride,
		Stride: a.Stride * sub.Stride,
		Length: sub.Length,
	})
}

func (a Axis) String() string {
	if a.Length == 0 {
		return "[]"
	}
	if a.Stride == 1 {
		return fmt.Sprintf("[%d:%d]", a.First, a.Last())
	}
	return fmt.Sprintf("[%d:%d:%d]", a.First, a.Last(), a.Stride)
}
