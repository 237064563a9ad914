package domain

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Contains returns true if every point of b belongs to a.
func Contains(a, b Domain) bool {
	checkDims(a, b)

	if b.IsEmpty() {
		return true
	}
	for i := range a.dim {
		if !containsAxis(a.axes[i], b.axes[i]) {
			return false
		}
	}
	return true
}

// Equal returns true if a and b hold the same points. Kinds of domains and directions of their axes are not
// compared, so the interval and the range of the same points are equal, unlike with ==.
func Equal(a, b Domain) bool {
	checkDims(a, b)

	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	for i := range a.dim {
		if x, y := a.axes[i], b.axes[i]; x != y && x.Reverse() != y {
			return false
		}
	}
	return true
}

// Intersect returns the domain of points belonging to both a and b.
func Intersect(a, b Domain) Domain {
	checkDims(a, b)

	r := Domain{dim: a.dim, kind: max(a.kind, b.kind, KindInterval)}
	for i := range a.dim {
		ax := intersectAxis(a.axes[i], b.axes[i])
		if ax.Length == 0 {
			return Empty(int(a.dim)).withKind(r.kind)
		}
		r.axes[i] = ax
	}
	return r
}

// Touches returns true if a and b have at least one common point.
func Touches(a, b Domain) bool {
	checkDims(a, b)

	for i := range a.dim {
		if !touchesAxis(a.axes[i], b.axes[i]) {
			return false
		}
	}
	return a.dim > 0
}

func (d Domain) withKind(k Kind) Domain {
	d.kind = k
	return d
}

func checkDims(a, b Domain) {
	if a.dim != b.dim {
		panic(errors.Errorf("dimension mismatch: %s vs %s", a, b))
	}
}

func containsAxis(a, b Axis) bool {
	if b.Length == 0 {
		return true
	}
	if a.Length == 0 || b.Min() < a.Min() || b.Max() > a.Max() {
		return false
	}
	if a.Stride == 1 || a.Stride == -1 {
		return true
	}

	sa := abs(a.Stride)
	if mod(b.Min()-a.Min(), sa) != 0 {
		return false
	}
	return b.Length == 1 || abs(b.Stride)%sa == 0
}

func touchesAxis(a, b Axis) bool {
	if a.Length == 0 || b.Length == 0 {
		return false
	}
	if a.Min() > b.Max() || b.Min() > a.Max() {
		return false
	}
	if abs(a.Stride) == 1 && abs(b.Stride) == 1 {
		return true
	}
	_, _, _, ok := findIntersectionEndpoints(a, b)
	return ok
}

func intersectAxis(a, b Axis) Axis {
	if a.Length == 0 || b.Length == 0 {
		return Axis{Stride: 1}
	}
	if a.Stride == 1 && b.Stride == 1 {
		return NewAxis(max(a.First, b.First), min(a.Last(), b.Last()))
	}

	first, last, stride, ok := findIntersectionEndpoints(a, b)
	if !ok {
		return Axis{Stride: 1}
	}
	r := normalizeAxis(Axis{First: first, Stride: stride, Length: (last-first)/stride + 1})
	if a.Stride < 0 && b.Stride < 0 {
		r = r.Reverse()
	}
	return r
}

// findIntersectionEndpoints returns the smallest and the largest index common to both axes, and the step between
// consecutive common indices. Common indices x satisfy x ≡ a.Min() (mod |a.Stride|) and x ≡ b.Min() (mod |b.Stride|),
// system is solved using extended Euclidean algorithm.
func findIntersectionEndpoints(a, b Axis) (first, last, stride int, ok bool) {
	lo := max(a.Min(), b.Min())
	hi := min(a.Max(), b.Max())
	if lo > hi {
		return 0, 0, 0, false
	}

	sa := abs(a.Stride)
	sb := abs(b.Stride)
	if a.Length == 1 {
		sa = 1
	}
	if b.Length == 1 {
		sb = 1
	}

	g, x, _ := extendedGCD(sa, sb)
	diff := b.Min() - a.Min()
	if diff%g != 0 {
		return 0, 0, 0, false
	}

	// a.Min() + sa*k is common if sa*k ≡ diff (mod sb), so k ≡ (diff/g)*x (mod sb/g).
	m := sb / g
	k := mulMod(mod(diff/g, m), mod(x, m), m)
	common := a.Min() + sa*k

	stride = sa / g * sb
	first = lo + mod(common-lo, stride)
	if first > hi {
		return 0, 0, 0, false
	}
	last = first + (hi-first)/stride*stride
	return first, last, stride, true
}

// extendedGCD returns g = gcd(a, b) and x, y such that a*x + b*y = g. Both a and b must be positive.
func extendedGCD(a, b int) (g, x, y int) {
	oldR, r := a, b
	oldX, x := 1, 0
	oldY, y := 0, 1
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldX, x = x, oldX-q*x
		oldY, y = y, oldY-q*y
	}
	return oldR, oldX, oldY
}

func mulMod(a, b, m int) int {
	if m == 1 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return int(bits.Rem64(hi, lo, uint64(m)))
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
