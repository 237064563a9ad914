package layout

import (
	"context"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/photon"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/persistent"
	"github.com/outofforest/tessera/remote"
	"github.com/outofforest/tessera/session"
	"github.com/outofforest/tessera/types"
)

// DynamicConfig stores configuration of the dynamic layout.
type DynamicConfig struct {
	Session *session.Session

	// Domain is the initial 1-dimensional domain, possibly empty.
	Domain domain.Domain

	// Partitioner divides the initial domain. If nil, partition.NewEven(Patches) is used.
	Partitioner partition.Partitioner

	// Patches is the number of patches used when Partitioner is nil.
	Patches int

	// Mapper assigns patches to contexts. If nil, LocalMapper is used by single-context sessions and
	// UniformMapper otherwise.
	Mapper partition.Mapper
}

// Dynamic is the 1-dimensional layout whose patches grow and shrink. Patches always cover contiguous ranges
// of indices ordered by global ID. Local changes are visible immediately, Sync must be called by all the contexts
// to agree on the sizes of patches stored by other contexts.
type Dynamic struct {
	base

	first    int
	sizes    []int
	ends     []int
	method   types.DeleteMethod
	deferred map[types.GlobalID][]int
}

// NewDynamic creates dynamic layout.
func NewDynamic(config DynamicConfig) *Dynamic {
	types.Insist(config.Domain.Dim() == 1, "dynamic layout is 1-dimensional, got domain %s", config.Domain)

	p := config.Partitioner
	if p == nil {
		p = partition.NewEven(max(config.Patches, 1))
	}

	l := &Dynamic{
		first:    config.Domain.First(0),
		deferred: map[types.GlobalID][]int{},
	}
	l.init(config.Session, config.Domain, domain.NoGuards(1), domain.NoGuards(1), l)

	nodes := p.Partition(config.Domain)
	m := config.Mapper
	if m == nil && config.Session.Contexts() > 1 {
		m = partition.UniformMapper{}
	}
	defaultMapper(config.Session, m).Map(nodes, config.Session.Target())

	l.sizes = make([]int, len(nodes))
	for i, n := range nodes {
		l.sizes[i] = n.Owned.Size()
	}
	l.all = nodes
	l.renumber()
	return l
}

// SetDeleteMethod sets the method used by deferred destroys.
func (l *Dynamic) SetDeleteMethod(method types.DeleteMethod) {
	l.method = method
}

// DeleteMethod returns the method used by deferred destroys.
func (l *Dynamic) DeleteMethod() types.DeleteMethod {
	return l.method
}

// Create appends n elements to the local patch. If patch is NoGlobalID, the last local patch is used.
// Domain of the new elements is returned.
func (l *Dynamic) Create(n int, patch types.GlobalID) domain.Domain {
	types.Insist(n >= 0, "negative number of elements: %d", n)
	patch = l.localPatch(patch)

	first := l.ends[patch]
	l.sizes[patch] += n
	l.renumber()
	l.notify(CreateEvent{Patch: patch, Count: n})
	return domain.NewInterval(domain.NewAxis(first, first+n-1))
}

// Destroy removes elements of the kill domain from the local patch. If patch is NoGlobalID, elements are removed
// from all the local patches the kill domain touches. Kill domain is expressed in global indices.
func (l *Dynamic) Destroy(kill domain.Domain, patch types.GlobalID, method types.DeleteMethod) {
	type destroy struct {
		patch   types.GlobalID
		offsets []int
	}

	var destroys []destroy
	for _, p := range l.killPatches(kill, patch) {
		types.Insist(len(l.deferred[p]) == 0, "patch %d has pending deferred destroys", p)
		if offsets := l.offsets(kill, p); len(offsets) > 0 {
			destroys = append(destroys, destroy{patch: p, offsets: offsets})
		}
	}

	for _, d := range destroys {
		l.sizes[d.patch] -= len(d.offsets)
	}
	l.renumber()
	for _, d := range destroys {
		l.notify(DestroyEvent{Patch: d.patch, Offsets: d.offsets, Method: method})
	}
}

// DeferredDestroy schedules removal of elements of the kill domain. Elements are removed by Sync using
// the delete method of the layout. Kill domain is expressed in global indices at the moment of the call.
func (l *Dynamic) DeferredDestroy(kill domain.Domain, patch types.GlobalID) {
	for _, p := range l.killPatches(kill, patch) {
		if offsets := l.offsets(kill, p); len(offsets) > 0 {
			l.deferred[p] = append(l.deferred[p], offsets...)
		}
	}
}

// Copy appends copies of elements of patch from to patch to. Both patches must be local. Elements are expressed
// in global indices. Domain of the new elements is returned.
func (l *Dynamic) Copy(elements domain.Domain, from, to types.GlobalID) domain.Domain {
	from = l.localPatch(from)
	to = l.localPatch(to)
	types.Insist(len(l.deferred[from]) == 0, "patch %d has pending deferred destroys", from)
	types.Insist(domain.Contains(l.all[from].Owned, elements), "elements %s are outside of patch %d", elements,
		from)

	offsets := l.offsets(elements, from)
	first := l.ends[to]
	l.sizes[to] += len(offsets)
	l.renumber()
	l.notify(CopyEvent{From: from, To: to, Offsets: offsets})
	return domain.NewInterval(domain.NewAxis(first, first+len(offsets)-1))
}

// Sync performs deferred destroys and exchanges sizes of local patches with other contexts. It is a collective
// operation, every context must call it.
func (l *Dynamic) Sync(ctx context.Context) error {
	log := logger.Get(ctx)

	if len(l.deferred) > 0 {
		patches := make([]types.GlobalID, 0, len(l.deferred))
		for p := range l.deferred {
			patches = append(patches, p)
		}
		slices.Sort(patches)

		kills := make([][]int, 0, len(patches))
		for _, p := range patches {
			offsets := l.deferred[p]
			slices.Sort(offsets)
			offsets = slices.Compact(offsets)
			kills = append(kills, offsets)
			l.sizes[p] -= len(offsets)
		}
		clear(l.deferred)
		l.renumber()

		for i, p := range patches {
			l.notify(DestroyEvent{Patch: p, Offsets: kills[i], Method: l.method})
		}
	}

	comm := l.session.Comm()
	local := make([]domain.Domain, 0, len(l.local))
	for _, n := range l.local {
		local = append(local, domain.Sized(l.sizes[n.GlobalID]))
	}
	payloads, err := remote.GatherSealed(ctx, comm, persistent.MarshalDomains(local))
	if err != nil {
		return errors.Wrap(err, "exchanging patch sizes failed")
	}

	for c := len(payloads) - 1; c >= 0; c-- {
		sizes, err := persistent.UnmarshalDomains(payloads[c], 1)
		if err != nil {
			return errors.Wrapf(err, "decoding patch sizes of context %d failed", c)
		}

		var i int
		for _, n := range l.all {
			if !n.IsLocal(types.ContextID(c)) {
				continue
			}
			if i >= len(sizes) {
				return errors.Errorf("context %d reported %d patches, more expected", c, len(sizes))
			}
			// Replicated patches end up with sizes reported by context 0.
			l.sizes[n.GlobalID] = sizes[i].Size()
			i++
		}
		if i != len(sizes) {
			return errors.Errorf("context %d reported %d patches, %d expected", c, len(sizes), i)
		}
	}
	l.renumber()

	fingerprint := l.Fingerprint()
	fingerprints, err := comm.AllGather(ctx, photon.NewFromValue(&fingerprint).B)
	if err != nil {
		return errors.Wrap(err, "exchanging layout fingerprints failed")
	}
	for c, f := range fingerprints {
		if len(f) != len(photon.NewFromValue(&fingerprint).B) || *photon.FromBytes[uint64](f) != fingerprint {
			return errors.Errorf("layout of context %d differs from the layout of context %d", c,
				comm.Context())
		}
	}

	log.Debug("Dynamic layout synchronized",
		zap.Uint64("layoutID", uint64(l.id)),
		zap.Int("size", l.inner.Size()),
		zap.Uint64("fingerprint", fingerprint))
	l.notify(SyncEvent{})
	return nil
}

// PatchSize returns number of elements in the patch.
func (l *Dynamic) PatchSize(patch types.GlobalID) int {
	return l.sizes[patch]
}

// GlobalID returns ID of the patch owning the index.
func (l *Dynamic) GlobalID(indices ...int) types.GlobalID {
	if len(indices) != 1 {
		return types.NoGlobalID
	}
	x := indices[0]
	gid := sort.SearchInts(l.ends, x+1)
	if gid == len(l.ends) || x < l.ends[gid]-l.sizes[gid] {
		return types.NoGlobalID
	}
	return types.GlobalID(gid)
}

func (l *Dynamic) candidates(d domain.Domain) func(func(types.GlobalID) bool) {
	return func(yield func(types.GlobalID) bool) {
		if d.IsEmpty() {
			return
		}
		dMin, dMax := d.Min(0), d.Max(0)
		for gid := sort.SearchInts(l.ends, dMin+1); gid < len(l.ends); gid++ {
			if l.ends[gid]-l.sizes[gid] > dMax {
				return
			}
			if l.sizes[gid] > 0 && !yield(types.GlobalID(gid)) {
				return
			}
		}
	}
}

// localPatch resolves NoGlobalID to the last local patch and checks that patch is local.
func (l *Dynamic) localPatch(patch types.GlobalID) types.GlobalID {
	if patch == types.NoGlobalID {
		types.Insist(len(l.local) > 0, "there are no local patches")
		return l.local[len(l.local)-1].GlobalID
	}
	types.Insist(patch >= 0 && int(patch) < len(l.all), "patch %d does not exist", patch)
	types.Insist(l.all[patch].IsLocal(l.session.Context()), "patch %d is not local", patch)
	return patch
}

func (l *Dynamic) killPatches(kill domain.Domain, patch types.GlobalID) []types.GlobalID {
	types.Insist(kill.Dim() == 1, "kill domain must be 1-dimensional, got %s", kill)

	if patch != types.NoGlobalID {
		patch = l.localPatch(patch)
		types.Insist(domain.Contains(l.all[patch].Owned, kill), "kill domain %s is outside of patch %d", kill,
			patch)
		return []types.GlobalID{patch}
	}

	var patches []types.GlobalID
	for _, n := range l.local {
		if domain.Touches(n.Owned, kill) {
			patches = append(patches, n.GlobalID)
		}
	}
	return patches
}

// offsets returns sorted offsets of kill indices relative to the beginning of the patch.
func (l *Dynamic) offsets(kill domain.Domain, patch types.GlobalID) []int {
	owned := l.all[patch].Owned
	i := domain.Intersect(owned, kill)
	offsets := make([]int, 0, i.Size())
	for p := range i.Points() {
		offsets = append(offsets, p[0]-owned.First(0))
	}
	slices.Sort(offsets)
	return offsets
}

// renumber recomputes contiguous patch domains from patch sizes.
func (l *Dynamic) renumber() {
	nodes := make([]node.Node, len(l.all))
	l.ends = l.ends[:0]
	first := l.first
	for i, n := range l.all {
		nodes[i] = n.WithDomain(domain.NewInterval(domain.NewAxis(first, first+l.sizes[i]-1)))
		first += l.sizes[i]
		l.ends = append(l.ends, first)
	}
	l.inner = domain.NewInterval(domain.NewAxis(l.first, first-1))
	l.full = l.inner
	l.setNodes(nodes)
}
