package partition

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Grid divides the domain into blocks of possibly different sizes. Blocks are defined either by the number of
// blocks along each axis, in which case the remainder is spread over the first blocks, or by explicit cut points.
type Grid struct {
	guards

	blocks []int
	cuts   [][]int
}

// NewGrid creates grid partitioner with the number of blocks along each axis.
func NewGrid(blocks []int, internal, external domain.GuardLayers) Grid {
	types.Insist(len(blocks) > 0 && len(blocks) <= types.MaxDim, "invalid number of dimensions: %d", len(blocks))
	for i, b := range blocks {
		types.Insist(b > 0, "number of blocks along axis %d must be positive, got %d", i, b)
	}

	return Grid{
		guards: newGuards(len(blocks), internal, external),
		blocks: append([]int(nil), blocks...),
	}
}

// NewGridFromCuts creates grid partitioner from cut points. Cut point is the first index of a block other than
// the first one along the axis, so n cut points produce n+1 blocks. Cut points must be increasing.
func NewGridFromCuts(cuts [][]int, internal, external domain.GuardLayers) Grid {
	types.Insist(len(cuts) > 0 && len(cuts) <= types.MaxDim, "invalid number of dimensions: %d", len(cuts))

	blocks := make([]int, 0, len(cuts))
	cutsCopy := make([][]int, 0, len(cuts))
	for axis, c := range cuts {
		for i := 1; i < len(c); i++ {
			types.Insist(c[i] > c[i-1], "cut points of axis %d are not increasing", axis)
		}
		blocks = append(blocks, len(c)+1)
		cutsCopy = append(cutsCopy, append([]int(nil), c...))
	}

	return Grid{
		guards: newGuards(len(cuts), internal, external),
		blocks: blocks,
		cuts:   cutsCopy,
	}
}

// Dim returns number of dimensions.
func (p Grid) Dim() int {
	return len(p.blocks)
}

// Patches returns number of patches.
func (p Grid) Patches() int {
	n := 1
	for _, b := range p.blocks {
		n *= b
	}
	return n
}

// BlockAxes returns block extents along each axis.
func (p Grid) BlockAxes(global domain.Domain) [][]domain.Axis {
	types.Insist(global.Dim() == len(p.blocks), "domain dimension %d does not match partition dimension %d",
		global.Dim(), len(p.blocks))
	types.Insist(global.Unit(), "partitioned domain must be unit-stride, got %s", global)

	result := make([][]domain.Axis, 0, len(p.blocks))
	for axis, b := range p.blocks {
		a := global.Axis(axis)
		axes := make([]domain.Axis, 0, b)

		if p.cuts != nil {
			first := a.First
			for _, c := range p.cuts[axis] {
				types.Insist(c > a.First && c <= a.Last(), "cut point %d outside of axis %s", c, a)
				axes = append(axes, domain.NewAxis(first, c-1))
				first = c
			}
			axes = append(axes, domain.NewAxis(first, a.Last()))
		} else {
			types.Insist(a.Length >= b, "axis %d of length %d cannot be divided into %d blocks", axis, a.Length, b)
			size, rest := a.Length/b, a.Length%b
			first := a.First
			for i := range b {
				l := size
				if i < rest {
					l++
				}
				axes = append(axes, domain.NewAxis(first, first+l-1))
				first += l
			}
		}
		result = append(result, axes)
	}
	return result
}

// Partition divides the global domain.
func (p Grid) Partition(global domain.Domain) []node.Node {
	if global.IsEmpty() {
		return emptyNodes(p.Dim(), p.Patches())
	}
	return p.gridNodes(global, p.BlockAxes(global))
}
