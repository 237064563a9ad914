package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/layout"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/observer"
	"github.com/outofforest/tessera/types"
)

// PatchKind selects the engine storing each patch.
type PatchKind uint8

const (
	// PatchBrick stores patches in bricks.
	PatchBrick PatchKind = iota

	// PatchCompressible stores patches in compressible bricks.
	PatchCompressible

	// PatchDynamic stores patches of dynamic layouts.
	PatchDynamic
)

func (k PatchKind) String() string {
	switch k {
	case PatchBrick:
		return "brick"
	case PatchCompressible:
		return "compressible"
	case PatchDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("PatchKind(%d)", k)
	}
}

// Config stores configuration of the multi-patch engine.
type Config struct {
	Layout layout.Layout
	Kind   PatchKind
}

// patchList is shared by copies of the multi-patch engine. It observes the layout and keeps patch engines
// in line with it.
type patchList[T Element] struct {
	refs    atomic.Int32
	layout  layout.Layout
	kind    PatchKind
	engines []Engine[T]
	handle  observer.Handle
	dirty   *uint32
}

// MultiPatch stores elements of the layout in one engine per local patch. It is indexed with the coordinates of
// the layout domain. Engines of remote patches are nil.
type MultiPatch[T Element] struct {
	patches *patchList[T]
}

// New creates multi-patch engine. Patch buffers are allocated as configured by the session of the layout.
func New[T Element](config Config) (*MultiPatch[T], error) {
	l := config.Layout
	types.Insist(config.Kind != PatchDynamic || l.Dim() == 1, "dynamic patches require 1-dimensional layout")

	p := &patchList[T]{
		layout: l,
		kind:   config.Kind,
		dirty:  lo.ToPtr(types.AllFaces(l.Dim())),
	}
	p.refs.Store(1)

	engines, err := p.newEngines(l.Nodes())
	if err != nil {
		return nil, err
	}
	p.engines = engines
	p.handle = l.Attach(p)

	return &MultiPatch[T]{patches: p}, nil
}

func (p *patchList[T]) newEngines(nodes []node.Node) ([]Engine[T], error) {
	ctx := p.layout.Session().Context()
	kind := p.layout.Session().PatchAllocation()

	engines := make([]Engine[T], len(nodes))
	for i, n := range nodes {
		if !n.IsLocal(ctx) {
			continue
		}

		switch p.kind {
		case PatchBrick:
			b, err := NewBrick[T](n.Allocated, kind)
			if err != nil {
				closeEngines(engines)
				return nil, err
			}
			engines[i] = b
		case PatchCompressible:
			engines[i] = NewCompressibleBrick[T](n.Allocated, kind)
		case PatchDynamic:
			engines[i] = NewDynamic[T](n.Owned)
		default:
			types.Insist(false, "unknown patch kind %s", p.kind)
		}
	}
	return engines, nil
}

func closeEngines[T Element](engines []Engine[T]) {
	for _, e := range engines {
		switch e := e.(type) {
		case *Brick[T]:
			e.Close()
		case *CompressibleBrick[T]:
			e.Close()
		}
	}
}

// Notify applies layout events to the patch engines.
func (p *patchList[T]) Notify(event layout.Event) {
	switch e := event.(type) {
	case layout.RepartitionEvent:
		p.repartition(e.Old)
	case layout.CreateEvent:
		if d := p.dynamic(e.Patch); d != nil {
			d.Create(e.Count)
			p.rebase()
		}
	case layout.DestroyEvent:
		if d := p.dynamic(e.Patch); d != nil {
			d.Destroy(e.Offsets, e.Method)
			p.rebase()
		}
	case layout.CopyEvent:
		if d := p.dynamic(e.To); d != nil {
			d.CopyFrom(p.dynamic(e.From), e.Offsets)
			p.rebase()
		}
	case layout.SyncEvent:
		if p.kind == PatchDynamic {
			p.rebase()
		}
	}
}

// dynamic returns the dynamic engine of the patch, nil if patches are not dynamic.
func (p *patchList[T]) dynamic(gid types.GlobalID) *Dynamic[T] {
	if p.kind != PatchDynamic {
		return nil
	}
	e := p.engines[gid]
	types.Insist(e != nil, "patch %d is not local", gid)
	return e.(*Dynamic[T])
}

// rebase moves dynamic patches to the indices assigned by the layout.
func (p *patchList[T]) rebase() {
	for _, n := range p.layout.LocalNodes() {
		d := p.engines[n.GlobalID].(*Dynamic[T])
		if !n.Owned.IsEmpty() {
			d.Rebase(n.Owned.First(0))
		}
	}
}

// repartition moves elements from old patches to the new ones. Only elements of local patches are moved.
func (p *patchList[T]) repartition(old []node.Node) {
	types.Insist(p.kind != PatchDynamic, "dynamic patches can't be repartitioned")

	engines := lo.Must(p.newEngines(p.layout.Nodes()))
	dim := p.layout.Dim()
	for _, n := range p.layout.LocalNodes() {
		dst := engines[n.GlobalID]
		for _, o := range old {
			src := p.engines[o.GlobalID]
			if src == nil {
				continue
			}
			for pt := range domain.Intersect(n.Allocated, o.Owned).Points() {
				dst.Write(src.Read(pt[:dim]...), pt[:dim]...)
			}
		}
	}

	closeEngines(p.engines)
	p.engines = engines
	atomic.StoreUint32(p.dirty, types.AllFaces(dim))
}

// Layout returns the layout.
func (m *MultiPatch[T]) Layout() layout.Layout {
	return m.patches.layout
}

// Kind returns kind of patch engines.
func (m *MultiPatch[T]) Kind() PatchKind {
	return m.patches.kind
}

// Dim returns number of dimensions.
func (m *MultiPatch[T]) Dim() int {
	return m.patches.layout.Dim()
}

// Domain returns the domain of the layout.
func (m *MultiPatch[T]) Domain() domain.Domain {
	return m.patches.layout.Domain()
}

// Read returns the element from the patch owning it.
func (m *MultiPatch[T]) Read(indices ...int) T {
	return m.owner(indices).Read(indices...)
}

// Ref returns pointer to the element in the patch owning it. Guards are marked dirty.
func (m *MultiPatch[T]) Ref(indices ...int) *T {
	m.SetDirty()
	return m.owner(indices).Ref(indices...)
}

// Write stores the element in the patch owning it. Guards are marked dirty.
func (m *MultiPatch[T]) Write(v T, indices ...int) {
	m.SetDirty()
	m.owner(indices).Write(v, indices...)
}

// Fill stores v in all the elements of local patches, guards included.
func (m *MultiPatch[T]) Fill(v T) {
	m.SetDirty()
	for _, e := range m.patches.engines {
		if e != nil {
			e.Fill(v)
		}
	}
}

func (m *MultiPatch[T]) owner(indices []int) Engine[T] {
	gid := m.patches.layout.GlobalID(indices...)
	types.Insist(gid != types.NoGlobalID, "no patch owns point %v", indices)
	return m.Patch(gid)
}

// Patch returns engine of the local patch.
func (m *MultiPatch[T]) Patch(gid types.GlobalID) Engine[T] {
	types.Insist(gid >= 0 && int(gid) < len(m.patches.engines), "patch %d does not exist", gid)
	e := m.patches.engines[gid]
	types.Insist(e != nil, "patch %d is not local", gid)
	return e
}

// LocalPatch returns engine of the patch with the local ID.
func (m *MultiPatch[T]) LocalPatch(lid types.LocalID) Engine[T] {
	local := m.patches.layout.LocalNodes()
	types.Insist(lid >= 0 && int(lid) < len(local), "local patch %d does not exist", lid)
	return m.Patch(local[lid].GlobalID)
}

// DynamicPatch returns the dynamic engine of the local patch.
func (m *MultiPatch[T]) DynamicPatch(gid types.GlobalID) *Dynamic[T] {
	types.Insist(m.patches.kind == PatchDynamic, "patches of kind %s are not dynamic", m.patches.kind)
	return m.Patch(gid).(*Dynamic[T])
}

// GlobalPatch returns engine of the patch. Owned domain of the node must be stored by the patch.
func (m *MultiPatch[T]) GlobalPatch(n node.Node) Engine[T] {
	e := m.Patch(n.GlobalID)
	types.Insist(domain.Contains(e.Domain(), n.Owned), "domain %s is not stored by patch %d", n.Owned,
		n.GlobalID)
	return e
}

// GlobalPatchINode returns engine of the patch the intersection piece belongs to.
func (m *MultiPatch[T]) GlobalPatchINode(n node.INode) Engine[T] {
	gid := n.GlobalID(m.patches.layout.ID())
	types.Insist(gid != types.NoGlobalID, "piece %s does not come from the layout", n.Domain)
	e := m.Patch(gid)
	types.Insist(domain.Contains(e.Domain(), n.Domain), "domain %s is not stored by patch %d", n.Domain, gid)
	return e
}

// FillGuards copies owned elements into guards of the neighbouring local patches if guards are dirty.
func (m *MultiPatch[T]) FillGuards() {
	if atomic.LoadUint32(m.patches.dirty) == 0 {
		return
	}

	for _, item := range m.patches.layout.FillList() {
		m.copyItem(item, item.Domain)
	}
	atomic.StoreUint32(m.patches.dirty, 0)
}

// FillGuardLayers fills only the guard layers of width g. Faces filled completely are marked clean.
func (m *MultiPatch[T]) FillGuardLayers(g domain.GuardLayers) {
	l := m.patches.layout
	types.Insist(g.Dim() == l.Dim(), "guard dimension %d does not match layout dimension %d", g.Dim(), l.Dim())

	for _, item := range l.FillList() {
		d := domain.Intersect(item.Domain, g.Grow(l.Node(item.Guard).Owned))
		if !d.IsEmpty() {
			m.copyItem(item, d)
		}
	}

	internal := l.InternalGuards()
	for face := range types.Face(2 * l.Dim()) {
		if internal.IsZero() || g.Width(face) >= internal.Width(face) {
			m.ClearDirty(face)
		}
	}
}

func (m *MultiPatch[T]) copyItem(item layout.FillItem, d domain.Domain) {
	owner := m.patches.engines[item.Owner]
	guard := m.patches.engines[item.Guard]
	if owner == nil || guard == nil {
		return
	}

	dim := m.Dim()
	for p := range d.Points() {
		guard.Write(owner.Read(p[:dim]...), p[:dim]...)
	}
}

// SetDirty marks all the faces dirty.
func (m *MultiPatch[T]) SetDirty() {
	atomic.StoreUint32(m.patches.dirty, types.AllFaces(m.Dim()))
}

// ClearDirty marks the face clean.
func (m *MultiPatch[T]) ClearDirty(face types.Face) {
	atomic.AndUint32(m.patches.dirty, ^face.Bit())
}

// IsDirty returns true if guards of the face are dirty.
func (m *MultiPatch[T]) IsDirty(face types.Face) bool {
	return atomic.LoadUint32(m.patches.dirty)&face.Bit() != 0
}

// Elements returns the number of elements owned by local patches.
func (m *MultiPatch[T]) Elements() int {
	var n int
	for _, nd := range m.patches.layout.LocalNodes() {
		n += nd.Owned.Size()
	}
	return n
}

// ElementsCompressed returns the number of elements owned by compressed local patches.
func (m *MultiPatch[T]) ElementsCompressed() int {
	var n int
	for _, nd := range m.patches.layout.LocalNodes() {
		if c, ok := m.patches.engines[nd.GlobalID].(*CompressibleBrick[T]); ok && c.Compressed() {
			n += nd.Owned.Size()
		}
	}
	return n
}

// TryCompress compresses local patches whose elements are all equal. It returns true if all of them are
// compressed afterwards.
func (m *MultiPatch[T]) TryCompress() bool {
	if m.patches.kind != PatchCompressible {
		return false
	}

	all := true
	for _, e := range m.patches.engines {
		if e != nil && !e.(*CompressibleBrick[T]).TryCompress() {
			all = false
		}
	}
	return all
}

// Uncompress expands all the local patches.
func (m *MultiPatch[T]) Uncompress() error {
	for _, e := range m.patches.engines {
		if c, ok := e.(*CompressibleBrick[T]); ok {
			if err := c.Uncompress(); err != nil {
				return err
			}
		}
	}
	return nil
}

// View returns view covering d, expressed in coordinates of the layout.
func (m *MultiPatch[T]) View(d domain.Domain) *MultiPatchView[T] {
	return &MultiPatchView[T]{mp: m, view: layout.NewView(m.patches.layout, d)}
}

// Slice returns view reduced by slice s, expressed in coordinates of the layout.
func (m *MultiPatch[T]) Slice(s domain.Slice) *MultiPatchView[T] {
	return &MultiPatchView[T]{mp: m, view: layout.NewSliceView(m.patches.layout, s)}
}

// Copy returns engine sharing the patches.
func (m *MultiPatch[T]) Copy() *MultiPatch[T] {
	m.patches.refs.Add(1)
	return &MultiPatch[T]{patches: m.patches}
}

// Shared returns true if patches are shared with other copies.
func (m *MultiPatch[T]) Shared() bool {
	return m.patches.refs.Load() > 1
}

// Close releases the engine. The last copy detaches from the layout and releases the patches.
func (m *MultiPatch[T]) Close() {
	if m.patches.refs.Add(-1) > 0 {
		return
	}
	m.patches.layout.Detach(m.patches.handle)
	closeEngines(m.patches.engines)
	m.patches.engines = nil
}

// MultiPatchView is the zero-copy view of the multi-patch engine, indexed with zero-based coordinates.
type MultiPatchView[T Element] struct {
	mp   *MultiPatch[T]
	view layout.View
}

// Dim returns number of dimensions.
func (v *MultiPatchView[T]) Dim() int {
	return v.view.Dim()
}

// Domain returns zero-based domain of the view.
func (v *MultiPatchView[T]) Domain() domain.Domain {
	return v.view.Domain()
}

// View returns the layout view.
func (v *MultiPatchView[T]) View() layout.View {
	return v.view
}

// Read returns the element.
func (v *MultiPatchView[T]) Read(indices ...int) T {
	return v.mp.Read(v.view.Indexer().BasePoint(indices...)...)
}

// Ref returns pointer to the element.
func (v *MultiPatchView[T]) Ref(indices ...int) *T {
	return v.mp.Ref(v.view.Indexer().BasePoint(indices...)...)
}

// Write stores the element.
func (v *MultiPatchView[T]) Write(value T, indices ...int) {
	v.mp.Write(value, v.view.Indexer().BasePoint(indices...)...)
}

// Fill stores value in all the elements of the view.
func (v *MultiPatchView[T]) Fill(value T) {
	dim := v.Dim()
	for p := range v.Domain().Points() {
		v.Write(value, p[:dim]...)
	}
}

// Touches appends patches touching d, expressed in view coordinates.
func (v *MultiPatchView[T]) Touches(d domain.Domain, out []node.Node) []node.Node {
	return v.view.Touches(d, out)
}

// GlobalPatch returns zero-copy view of the patch restricted to the owned domain of the node returned by Touches.
func (v *MultiPatchView[T]) GlobalPatch(n node.Node) Engine[T] {
	return v.patchView(n.GlobalID, n.Owned)
}

// GlobalPatchINode returns zero-copy view of the patch restricted to the intersection piece expressed in view
// coordinates.
func (v *MultiPatchView[T]) GlobalPatchINode(n node.INode) Engine[T] {
	gid := n.GlobalID(v.view.ID())
	types.Insist(gid != types.NoGlobalID, "piece %s does not come from the layout", n.Domain)
	return v.patchView(gid, n.Domain)
}

func (v *MultiPatchView[T]) patchView(gid types.GlobalID, d domain.Domain) Engine[T] {
	ix := v.view.Indexer()
	s := ix.BaseSlice(d)
	e := v.mp.Patch(gid)
	types.Insist(domain.Contains(e.Domain(), s.Total()), "domain %s is not stored by patch %d", s.Total(), gid)
	if s.Dim() == s.TotalDim() {
		return NewView(e, s.Total())
	}
	return NewSliceView(e, s)
}

// Sub returns view covering d, expressed in coordinates of this view.
func (v *MultiPatchView[T]) Sub(d domain.Domain) *MultiPatchView[T] {
	return &MultiPatchView[T]{mp: v.mp, view: v.view.Sub(d)}
}

// Slice returns view reduced by slice s, expressed in coordinates of this view.
func (v *MultiPatchView[T]) Slice(s domain.Slice) *MultiPatchView[T] {
	return &MultiPatchView[T]{mp: v.mp, view: v.view.Slice(s)}
}
