package partition

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// BlockPartitioner is implemented by partitioners producing regular grid of blocks.
type BlockPartitioner interface {
	Partitioner

	// BlockAxes returns, for each axis, the consecutive block extents the global domain is cut into.
	BlockAxes(global domain.Domain) [][]domain.Axis
}

// UniformGrid divides the domain into blocks of equal size. Length of each axis must be divisible by the number
// of blocks along it.
type UniformGrid struct {
	guards

	blocks []int
}

// NewUniformGrid creates uniform grid partitioner.
func NewUniformGrid(blocks []int, internal, external domain.GuardLayers) UniformGrid {
	types.Insist(len(blocks) > 0 && len(blocks) <= types.MaxDim, "invalid number of dimensions: %d", len(blocks))
	for i, b := range blocks {
		types.Insist(b > 0, "number of blocks along axis %d must be positive, got %d", i, b)
	}

	return UniformGrid{
		guards: newGuards(len(blocks), internal, external),
		blocks: append([]int(nil), blocks...),
	}
}

// Dim returns number of dimensions.
func (p UniformGrid) Dim() int {
	return len(p.blocks)
}

// Patches returns number of patches.
func (p UniformGrid) Patches() int {
	n := 1
	for _, b := range p.blocks {
		n *= b
	}
	return n
}

// Blocks returns number of blocks along the axis.
func (p UniformGrid) Blocks(axis int) int {
	return p.blocks[axis]
}

// BlockAxes returns block extents along each axis.
func (p UniformGrid) BlockAxes(global domain.Domain) [][]domain.Axis {
	p.check(global)

	result := make([][]domain.Axis, 0, len(p.blocks))
	for axis, b := range p.blocks {
		a := global.Axis(axis)
		types.Insist(a.Length%b == 0, "length %d of axis %d is not divisible by %d blocks", a.Length, axis, b)

		size := a.Length / b
		axes := make([]domain.Axis, 0, b)
		for i := range b {
			axes = append(axes, domain.NewAxis(a.First+i*size, a.First+(i+1)*size-1))
		}
		result = append(result, axes)
	}
	return result
}

// Partition divides the global domain.
func (p UniformGrid) Partition(global domain.Domain) []node.Node {
	p.check(global)
	if global.IsEmpty() {
		return emptyNodes(p.Dim(), p.Patches())
	}
	return p.gridNodes(global, p.BlockAxes(global))
}

func (p UniformGrid) check(global domain.Domain) {
	types.Insist(global.Dim() == len(p.blocks), "domain dimension %d does not match partition dimension %d",
		global.Dim(), len(p.blocks))
	types.Insist(global.Unit(), "partitioned domain must be unit-stride, got %s", global)
}

func (g guards) gridNodes(global domain.Domain, axes [][]domain.Axis) []node.Node {
	counts := make([]int, len(axes))
	n := 1
	for i, a := range axes {
		counts[i] = len(a)
		n *= len(a)
	}

	nodes := make([]node.Node, 0, n)
	blockAxes := make([]domain.Axis, len(axes))
	for pos := range blockIndices(counts) {
		for i, p := range pos {
			blockAxes[i] = axes[i][p]
		}
		nodes = append(nodes, g.makeNode(domain.NewInterval(blockAxes...), global, types.GlobalID(len(nodes))))
	}
	return nodes
}
