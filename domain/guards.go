package domain

import (
	"fmt"

	"github.com/outofforest/tessera/types"
)

// GuardLayers stores the widths of guard (ghost) cells on the lower and upper side of each axis.
type GuardLayers struct {
	lower [types.MaxDim]int
	upper [types.MaxDim]int
	dim   uint8
}

// NewGuardLayers returns guard layers of the same width on every side.
func NewGuardLayers(dim, width int) GuardLayers {
	types.Insist(width >= 0, "guard width must not be negative: %d", width)

	g := GuardLayers{dim: uint8(dim)}
	for i := range dim {
		g.lower[i] = width
		g.upper[i] = width
	}
	return g
}

// NewAsymmetricGuardLayers returns guard layers with explicit lower and upper widths.
func NewAsymmetricGuardLayers(lower, upper []int) GuardLayers {
	types.Insist(len(lower) == len(upper), "lower and upper widths must have the same length")

	g := GuardLayers{dim: uint8(len(lower))}
	for i := range lower {
		types.Insist(lower[i] >= 0 && upper[i] >= 0, "guard width must not be negative")
		g.lower[i] = lower[i]
		g.upper[i] = upper[i]
	}
	return g
}

// NoGuards returns zero-width guard layers.
func NoGuards(dim int) GuardLayers {
	return GuardLayers{dim: uint8(dim)}
}

// Dim returns number of dimensions.
func (g GuardLayers) Dim() int {
	return int(g.dim)
}

// Lower returns width of the lower guard along the axis.
func (g GuardLayers) Lower(axis int) int {
	return g.lower[axis]
}

// Upper returns width of the upper guard along the axis.
func (g GuardLayers) Upper(axis int) int {
	return g.upper[axis]
}

// Width returns width of the guard on the face.
func (g GuardLayers) Width(face types.Face) int {
	if face.Upper() {
		return g.upper[face.Axis()]
	}
	return g.lower[face.Axis()]
}

// IsZero returns true if there are no guards.
func (g GuardLayers) IsZero() bool {
	return g.lower == [types.MaxDim]int{} && g.upper == [types.MaxDim]int{}
}

// Add returns sum of guard layers.
func (g GuardLayers) Add(o GuardLayers) GuardLayers {
	types.Insist(g.dim == o.dim, "dimension mismatch: %d != %d", g.dim, o.dim)
	for i := range g.dim {
		g.lower[i] += o.lower[i]
		g.upper[i] += o.upper[i]
	}
	return g
}

// Sub returns difference of guard layers. None of the widths may become negative.
func (g GuardLayers) Sub(o GuardLayers) GuardLayers {
	types.Insist(g.dim == o.dim, "dimension mismatch: %d != %d", g.dim, o.dim)
	for i := range g.dim {
		g.lower[i] -= o.lower[i]
		g.upper[i] -= o.upper[i]
		types.Insist(g.lower[i] >= 0 && g.upper[i] >= 0, "guard width became negative along axis %d", i)
	}
	return g
}

// Grow extends the interval domain by the guards on every side.
func (g GuardLayers) Grow(d Domain) Domain {
	for i := range g.dim {
		d = g.GrowLower(d, int(i))
		d = g.GrowUpper(d, int(i))
	}
	return d
}

// Shrink removes the guards from every side of the interval domain.
func (g GuardLayers) Shrink(d Domain) Domain {
	checkGuardDims(g, d)
	for i := range g.dim {
		a := d.axes[i]
		d.axes[i] = NewAxis(a.First+g.lower[i], a.Last()-g.upper[i])
	}
	return d
}

// GrowLower extends the interval domain by the lower guard of the axis.
func (g GuardLayers) GrowLower(d Domain, axis int) Domain {
	checkGuardDims(g, d)
	a := d.axes[axis]
	if a.Length == 0 {
		return d
	}
	d.axes[axis] = NewAxis(a.First-g.lower[axis], a.Last())
	if d.kind == KindLoc && d.axes[axis].Length != 1 {
		d.kind = KindInterval
	}
	return d
}

// GrowUpper extends the interval domain by the upper guard of the axis.
func (g GuardLayers) GrowUpper(d Domain, axis int) Domain {
	checkGuardDims(g, d)
	a := d.axes[axis]
	if a.Length == 0 {
		return d
	}
	d.axes[axis] = NewAxis(a.First, a.Last()+g.upper[axis])
	if d.kind == KindLoc && d.axes[axis].Length != 1 {
		d.kind = KindInterval
	}
	return d
}

// Faces returns guard layers keeping only widths of faces present in the mask.
func (g GuardLayers) Faces(mask uint32) GuardLayers {
	for i := range g.dim {
		if mask&types.NewFace(int(i), false).Bit() == 0 {
			g.lower[i] = 0
		}
		if mask&types.NewFace(int(i), true).Bit() == 0 {
			g.upper[i] = 0
		}
	}
	return g
}

func (g GuardLayers) String() string {
	return fmt.Sprintf("guards(%v,%v)", g.lower[:g.dim], g.upper[:g.dim])
}

func checkGuardDims(g GuardLayers, d Domain) {
	types.Insist(g.dim == d.dim, "dimension mismatch: guards %d, domain %d", g.dim, d.dim)
	types.Insist(d.Unit(), "guards apply to unit-stride domains only, got %s", d)
}
