// Package tessera builds data-parallel arrays whose elements are spread over patches of a layout.
package tessera

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/engine"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/persistent"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// ArrayConfig stores configuration of the array divided into equally sized blocks.
type ArrayConfig struct {
	// Session the array belongs to. If nil, single-context session is created.
	Session *session.Session

	Domain domain.Domain

	// Blocks is the number of blocks along each axis. If nil, the whole domain is stored in one patch.
	Blocks []int

	InternalGuards domain.GuardLayers
	ExternalGuards domain.GuardLayers

	// Kind selects engines of patches. Only PatchBrick and PatchCompressible are valid.
	Kind   engine.PatchKind
	Mapper partition.Mapper
}

// Array is the multi-patch array laid out on the uniform grid.
type Array[T engine.Element] struct {
	*engine.MultiPatch[T]

	grid *layout.UniformGrid
}

// NewArray creates array.
func NewArray[T engine.Element](config ArrayConfig) (*Array[T], error) {
	if config.Kind == engine.PatchDynamic {
		return nil, errors.New("uniform grid array can't use dynamic patches")
	}

	blocks := config.Blocks
	if blocks == nil {
		blocks = lo.Times(config.Domain.Dim(), func(int) int { return 1 })
	}

	grid := layout.NewUniformGrid(layout.UniformGridConfig{
		Session:        sessionOrLocal(config.Session),
		Domain:         config.Domain,
		Blocks:         blocks,
		InternalGuards: config.InternalGuards,
		ExternalGuards: config.ExternalGuards,
		Mapper:         config.Mapper,
	})
	m, err := engine.New[T](engine.Config{Layout: grid, Kind: config.Kind})
	if err != nil {
		return nil, errors.Wrap(err, "creating array engine failed")
	}
	return &Array[T]{MultiPatch: m, grid: grid}, nil
}

// Grid returns the layout of the array.
func (a *Array[T]) Grid() *layout.UniformGrid {
	return a.grid
}

// Repartition divides the array into new blocks keeping the guards. Elements are moved to the new patches.
func (a *Array[T]) Repartition(ctx context.Context, blocks []int, m partition.Mapper) {
	a.grid.Repartition(ctx, partition.NewUniformGrid(blocks, a.grid.InternalGuards(), a.grid.ExternalGuards()), m)
}

// SaveLayout stores owned domains of all the patches in the file.
func (a *Array[T]) SaveLayout(ctx context.Context, path string) error {
	return persistent.SaveLayout(ctx, path, ownedDomains(a.grid.Nodes()))
}

// TileArrayConfig stores configuration of the array made of explicitly placed tiles.
type TileArrayConfig struct {
	// Session the array belongs to. If nil, single-context session is created.
	Session *session.Session

	// BoundingBox is the domain tiles are placed in.
	BoundingBox domain.Domain

	Tiles          []domain.Domain
	InternalGuards domain.GuardLayers
	ExternalGuards domain.GuardLayers

	// Kind selects engines of patches. Only PatchBrick and PatchCompressible are valid.
	Kind   engine.PatchKind
	Mapper partition.Mapper
}

// TileArray is the multi-patch array laid out on sparse tiles.
type TileArray[T engine.Element] struct {
	*engine.MultiPatch[T]

	tiles  *layout.SparseTile
	placed []domain.Domain
}

// NewTileArray creates tile array.
func NewTileArray[T engine.Element](config TileArrayConfig) (*TileArray[T], error) {
	if config.Kind == engine.PatchDynamic {
		return nil, errors.New("tile array can't use dynamic patches")
	}

	tiles := layout.NewSparseTile(layout.SparseTileConfig{
		Session:        sessionOrLocal(config.Session),
		BoundingBox:    config.BoundingBox,
		Tiles:          config.Tiles,
		InternalGuards: config.InternalGuards,
		ExternalGuards: config.ExternalGuards,
		Mapper:         config.Mapper,
	})
	m, err := engine.New[T](engine.Config{Layout: tiles, Kind: config.Kind})
	if err != nil {
		return nil, errors.Wrap(err, "creating tile array engine failed")
	}
	return &TileArray[T]{MultiPatch: m, tiles: tiles, placed: append([]domain.Domain(nil), config.Tiles...)}, nil
}

// LoadTileArray creates tile array whose tiles are loaded from the file written by SaveLayout. Tiles of the config
// are ignored.
func LoadTileArray[T engine.Element](ctx context.Context, path string, config TileArrayConfig) (*TileArray[T], error) {
	tiles, err := persistent.LoadLayout(ctx, path, config.BoundingBox.Dim())
	if err != nil {
		return nil, err
	}
	config.Tiles = lo.Filter(tiles, func(d domain.Domain, _ int) bool {
		return !d.IsEmpty()
	})
	return NewTileArray[T](config)
}

// Tiles returns the layout of the array.
func (a *TileArray[T]) Tiles() *layout.SparseTile {
	return a.tiles
}

// SaveLayout stores tiles of the array in the file.
func (a *TileArray[T]) SaveLayout(ctx context.Context, path string) error {
	return persistent.SaveLayout(ctx, path, a.placed)
}

// DynamicArrayConfig stores configuration of the 1-dimensional array whose size changes.
type DynamicArrayConfig struct {
	// Session the array belongs to. If nil, single-context session is created.
	Session *session.Session

	// Size is the initial number of elements.
	Size int

	// Patches is the number of patches the initial elements are spread over.
	Patches int

	// DeleteMethod is used by deferred destroys.
	DeleteMethod types.DeleteMethod
	Mapper       partition.Mapper
}

// DynamicArray is the array of dynamic patches.
type DynamicArray[T engine.Element] struct {
	*engine.MultiPatch[T]

	dynamic *layout.Dynamic
}

// NewDynamicArray creates dynamic array.
func NewDynamicArray[T engine.Element](config DynamicArrayConfig) (*DynamicArray[T], error) {
	if config.Size < 0 {
		return nil, errors.Errorf("invalid size %d", config.Size)
	}

	l := layout.NewDynamic(layout.DynamicConfig{
		Session: sessionOrLocal(config.Session),
		Domain:  domain.Sized(config.Size),
		Patches: config.Patches,
		Mapper:  config.Mapper,
	})
	l.SetDeleteMethod(config.DeleteMethod)

	m, err := engine.New[T](engine.Config{Layout: l, Kind: engine.PatchDynamic})
	if err != nil {
		return nil, errors.Wrap(err, "creating dynamic array engine failed")
	}
	return &DynamicArray[T]{MultiPatch: m, dynamic: l}, nil
}

// Dynamic returns the layout of the array.
func (a *DynamicArray[T]) Dynamic() *layout.Dynamic {
	return a.dynamic
}

// Create appends n zero elements to the patch. If patch is NoGlobalID, the last local patch is used.
func (a *DynamicArray[T]) Create(n int, patch types.GlobalID) domain.Domain {
	return a.dynamic.Create(n, patch)
}

// Destroy removes elements immediately.
func (a *DynamicArray[T]) Destroy(kill domain.Domain, method types.DeleteMethod) {
	a.dynamic.Destroy(kill, types.NoGlobalID, method)
}

// DeferredDestroy schedules removal of elements performed by Sync.
func (a *DynamicArray[T]) DeferredDestroy(kill domain.Domain) {
	a.dynamic.DeferredDestroy(kill, types.NoGlobalID)
}

// Sync performs deferred destroys and agrees on sizes of patches with other contexts.
func (a *DynamicArray[T]) Sync(ctx context.Context) error {
	return a.dynamic.Sync(ctx)
}

// Values returns elements of the local patch ordered by index.
func (a *DynamicArray[T]) Values(patch types.GlobalID) []T {
	return a.DynamicPatch(patch).Data()
}

func sessionOrLocal(s *session.Session) *session.Session {
	if s == nil {
		return session.Local()
	}
	return s
}

func ownedDomains(nodes []node.Node) []domain.Domain {
	return lo.Map(nodes, func(n node.Node, _ int) domain.Domain {
		return n.Owned
	})
}
