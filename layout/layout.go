// Package layout maps the global domain onto patches stored by contexts.
package layout

import (
	"sync"

	"github.com/cespare/xxhash"
	"github.com/samber/lo"

	"github.com/outofforest/photon"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/observer"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// Layout owns the list of patches covering the domain.
type Layout interface {
	Querier

	// InnerDomain returns the domain without external guards.
	InnerDomain() domain.Domain

	// InternalGuards returns guards between neighbouring patches.
	InternalGuards() domain.GuardLayers

	// ExternalGuards returns guards around the domain.
	ExternalGuards() domain.GuardLayers

	// Session returns the session the layout belongs to.
	Session() *session.Session

	// Nodes returns all the patches ordered by global ID.
	Nodes() []node.Node

	// LocalNodes returns patches stored by this context ordered by local ID.
	LocalNodes() []node.Node

	// RemoteNodes returns patches stored by other contexts.
	RemoteNodes() []node.Node

	// SizeGlobal returns the number of patches.
	SizeGlobal() int

	// SizeLocal returns the number of patches stored by this context.
	SizeLocal() int

	// SizeRemote returns the number of patches stored by other contexts.
	SizeRemote() int

	// Node returns the patch.
	Node(gid types.GlobalID) node.Node

	// GlobalID returns ID of the patch owning the point or NoGlobalID if there is no such patch.
	GlobalID(indices ...int) types.GlobalID

	// Touches appends to out the patches whose owned domain touches d. Owned domain of each returned node is
	// clipped to d.
	Touches(d domain.Domain, out []node.Node) []node.Node

	// TouchesLocal works like Touches but returns local patches only.
	TouchesLocal(d domain.Domain, out []node.Node) []node.Node

	// TouchesRemote works like Touches but returns remote patches only.
	TouchesRemote(d domain.Domain, out []node.Node) []node.Node

	// TouchesAlloc appends to out the patches whose allocated domain touches d. Owned domain of each returned node
	// is the allocated domain clipped to d.
	TouchesAlloc(d domain.Domain, out []node.Node) []node.Node

	// FillList returns the guard fill list.
	FillList() []FillItem

	// Attach registers the observer notified about changes of the layout.
	Attach(o Observer) observer.Handle

	// Detach unregisters the observer.
	Detach(h observer.Handle)

	// Fingerprint returns hash of the patch list. Contexts agreeing on the layout compute the same fingerprint.
	Fingerprint() uint64
}

// Querier answers which patches touch the domain. It is implemented by layouts and their views.
type Querier interface {
	// ID returns ID of the layout. Views report the ID of the layout they are built on.
	ID() types.LayoutID

	// Dim returns number of dimensions.
	Dim() int

	// Domain returns the whole domain covered by the patches.
	Domain() domain.Domain

	// TouchesINode appends to out the pieces of patches touching d. Each piece is recorded in the database as
	// derived from parent.
	TouchesINode(d domain.Domain, db *node.GlobalIDDataBase, parent types.NodeKey, out []node.INode) []node.INode
}

// Observer receives layout events. Events are delivered synchronously after the layout has been updated.
type Observer interface {
	Notify(event Event)
}

// FillItem describes one copy required to fill guards: Domain is copied from the owned region of patch Owner
// to the guard region of patch Guard. Face is the face of the guard patch the domain lies on.
type FillItem struct {
	Owner  types.GlobalID
	Guard  types.GlobalID
	Domain domain.Domain
	Face   types.Face
}

type finder interface {
	// candidates iterates over global IDs of patches whose owned domain might touch d.
	candidates(d domain.Domain) func(func(types.GlobalID) bool)
}

type base struct {
	id       types.LayoutID
	session  *session.Session
	inner    domain.Domain
	full     domain.Domain
	internal domain.GuardLayers
	external domain.GuardLayers
	finder   finder

	all    []node.Node
	local  []node.Node
	remote []node.Node

	fillMu    sync.Mutex
	fill      []FillItem
	fillValid bool

	obsMu     sync.Mutex
	observers observer.Registry[Observer]
}

func (l *base) init(s *session.Session, inner domain.Domain, internal, external domain.GuardLayers, f finder) {
	l.id = s.IDs().NextLayoutID()
	l.session = s
	l.inner = inner
	l.internal = internal
	l.external = external
	l.full = external.Grow(inner)
	l.finder = f
}

func (l *base) setNodes(nodes []node.Node) {
	ctx := l.session.Context()
	l.all = nodes
	l.local = lo.Filter(nodes, func(n node.Node, _ int) bool {
		return n.IsLocal(ctx)
	})
	l.remote = lo.Filter(nodes, func(n node.Node, _ int) bool {
		return !n.IsLocal(ctx)
	})

	l.fillMu.Lock()
	l.fill = nil
	l.fillValid = false
	l.fillMu.Unlock()
}

// ID returns ID of the layout.
func (l *base) ID() types.LayoutID {
	return l.id
}

// Dim returns number of dimensions.
func (l *base) Dim() int {
	return l.inner.Dim()
}

// Session returns session.
func (l *base) Session() *session.Session {
	return l.session
}

// Domain returns the domain including external guards.
func (l *base) Domain() domain.Domain {
	return l.full
}

// InnerDomain returns the domain without external guards.
func (l *base) InnerDomain() domain.Domain {
	return l.inner
}

// InternalGuards returns guards between patches.
func (l *base) InternalGuards() domain.GuardLayers {
	return l.internal
}

// ExternalGuards returns guards around the domain.
func (l *base) ExternalGuards() domain.GuardLayers {
	return l.external
}

// Nodes returns all the patches.
func (l *base) Nodes() []node.Node {
	return l.all
}

// LocalNodes returns local patches.
func (l *base) LocalNodes() []node.Node {
	return l.local
}

// RemoteNodes returns remote patches.
func (l *base) RemoteNodes() []node.Node {
	return l.remote
}

// SizeGlobal returns number of patches.
func (l *base) SizeGlobal() int {
	return len(l.all)
}

// SizeLocal returns number of local patches.
func (l *base) SizeLocal() int {
	return len(l.local)
}

// SizeRemote returns number of remote patches.
func (l *base) SizeRemote() int {
	return len(l.remote)
}

// Node returns the patch.
func (l *base) Node(gid types.GlobalID) node.Node {
	types.Insist(gid >= 0 && int(gid) < len(l.all), "patch %d does not exist", gid)
	return l.all[gid]
}

// GlobalID returns ID of the patch owning the point.
func (l *base) GlobalID(indices ...int) types.GlobalID {
	if len(indices) != l.Dim() {
		return types.NoGlobalID
	}
	p := domain.NewLoc(indices...)
	for gid := range l.finder.candidates(p) {
		if domain.Contains(l.all[gid].Owned, p) {
			return gid
		}
	}
	return types.NoGlobalID
}

// Touches appends patches touching d.
func (l *base) Touches(d domain.Domain, out []node.Node) []node.Node {
	return l.touches(d, out, func(node.Node) bool { return true })
}

// TouchesLocal appends local patches touching d.
func (l *base) TouchesLocal(d domain.Domain, out []node.Node) []node.Node {
	ctx := l.session.Context()
	return l.touches(d, out, func(n node.Node) bool { return n.IsLocal(ctx) })
}

// TouchesRemote appends remote patches touching d.
func (l *base) TouchesRemote(d domain.Domain, out []node.Node) []node.Node {
	ctx := l.session.Context()
	return l.touches(d, out, func(n node.Node) bool { return !n.IsLocal(ctx) })
}

// TouchesAlloc appends patches whose allocated domain touches d.
func (l *base) TouchesAlloc(d domain.Domain, out []node.Node) []node.Node {
	if d.IsEmpty() {
		return out
	}

	// Owned domain of the patch whose allocated domain touches d must touch d grown by the guards taken from
	// the opposite sides.
	lower := make([]int, l.Dim())
	upper := make([]int, l.Dim())
	for axis := range l.Dim() {
		lower[axis] = l.internal.Upper(axis)
		upper[axis] = l.internal.Lower(axis)
	}
	search := domain.NewAsymmetricGuardLayers(lower, upper).Grow(d.Bounds())

	for gid := range l.finder.candidates(search) {
		n := l.all[gid]
		i := domain.Intersect(n.Allocated, d)
		if i.IsEmpty() {
			continue
		}
		n.Owned = i
		out = append(out, n)
	}
	return out
}

// TouchesINode appends pieces of patches touching d.
func (l *base) TouchesINode(d domain.Domain, db *node.GlobalIDDataBase, parent types.NodeKey,
	out []node.INode,
) []node.INode {
	for gid := range l.finder.candidates(d) {
		n := l.all[gid]
		i := domain.Intersect(n.Owned, d)
		if i.IsEmpty() {
			continue
		}
		key := db.Push(l.id, gid, n.Context, parent)
		out = append(out, node.NewINode(i, n.Context, key, db))
	}
	return out
}

func (l *base) touches(d domain.Domain, out []node.Node, filter func(node.Node) bool) []node.Node {
	if d.IsEmpty() {
		return out
	}
	for gid := range l.finder.candidates(d) {
		n := l.all[gid]
		if !filter(n) {
			continue
		}
		i := domain.Intersect(n.Owned, d)
		if i.IsEmpty() {
			continue
		}
		n.Owned = i
		out = append(out, n)
	}
	return out
}

// Attach registers observer.
func (l *base) Attach(o Observer) observer.Handle {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	return l.observers.Attach(o)
}

// Detach unregisters observer.
func (l *base) Detach(h observer.Handle) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	l.observers.Detach(h)
}

// Observers returns the number of attached observers.
func (l *base) Observers() int {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	return l.observers.Count()
}

func (l *base) notify(event Event) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	l.observers.Notify(func(o Observer) {
		o.Notify(event)
	})
}

type nodeRecord struct {
	GlobalID  int64
	Context   int64
	Owned     [types.MaxDim][3]int64
	Allocated [types.MaxDim][3]int64
}

// Fingerprint returns hash of the patch list.
func (l *base) Fingerprint() uint64 {
	var rec nodeRecord
	recB := photon.NewFromValue(&rec).B
	buf := make([]byte, 0, len(l.all)*len(recB))
	for _, n := range l.all {
		rec = nodeRecord{
			GlobalID: int64(n.GlobalID),
			Context:  int64(n.Context),
		}
		for axis := range n.Owned.Dim() {
			o := n.Owned.Axis(axis)
			a := n.Allocated.Axis(axis)
			rec.Owned[axis] = [3]int64{int64(o.First), int64(o.Stride), int64(o.Length)}
			rec.Allocated[axis] = [3]int64{int64(a.First), int64(a.Stride), int64(a.Length)}
		}
		buf = append(buf, recB...)
	}
	return xxhash.Sum64(buf)
}

// listFinder scans all the patches.
type listFinder struct {
	l *base
}

func (f listFinder) candidates(d domain.Domain) func(func(types.GlobalID) bool) {
	return func(yield func(types.GlobalID) bool) {
		for _, n := range f.l.all {
			if domain.Touches(n.Owned, d) && !yield(n.GlobalID) {
				return
			}
		}
	}
}
