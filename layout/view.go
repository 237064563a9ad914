package layout

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Indexer translates zero-based coordinates of a view into coordinates of the base layout or engine. Base index
// along axis b is first[b] + stride[b] * view index along axis axes[b]. Base axes fixed by slices have axes[b] == -1
// and always map to first[b].
type Indexer struct {
	domain  domain.Domain
	baseDim int
	axes    [types.MaxDim]int
	first   [types.MaxDim]int
	stride  [types.MaxDim]int
}

// NewIndexer creates indexer of the view covering d, expressed in base coordinates.
func NewIndexer(d domain.Domain) Indexer {
	ix := Indexer{
		domain:  d.Zero(),
		baseDim: d.Dim(),
	}
	for axis := range d.Dim() {
		a := d.Axis(axis)
		ix.axes[axis] = axis
		ix.first[axis] = a.First
		ix.stride[axis] = a.Stride
	}
	return ix
}

// NewSliceIndexer creates indexer of the view covering slice s, expressed in base coordinates.
func NewSliceIndexer(s domain.Slice) Indexer {
	return NewIndexer(s.Total()).Slice(domain.NewSlice(s.Total().Zero(), fixedAxes(s)...))
}

// Dim returns dimension of the view.
func (ix Indexer) Dim() int {
	return ix.domain.Dim()
}

// BaseDim returns dimension of the base.
func (ix Indexer) BaseDim() int {
	return ix.baseDim
}

// Fixed returns base axes fixed by slices.
func (ix Indexer) Fixed() []int {
	var fixed []int
	for b := range ix.baseDim {
		if ix.axes[b] < 0 {
			fixed = append(fixed, b)
		}
	}
	return fixed
}

// BaseSlice translates d from view coordinates into the slice of the base. Base axes fixed by slices are
// ignored by the result, so its reduced domain has the dimension of the view.
func (ix Indexer) BaseSlice(d domain.Domain) domain.Slice {
	return domain.NewSlice(ix.BaseDomain(d), ix.Fixed()...)
}

// Domain returns zero-based domain of the view.
func (ix Indexer) Domain() domain.Domain {
	return ix.domain
}

// Image returns the points of the base covered by the view.
func (ix Indexer) Image() domain.Domain {
	return ix.BaseDomain(ix.domain)
}

// Sub returns indexer of the view covering d, expressed in coordinates of this view.
func (ix Indexer) Sub(d domain.Domain) Indexer {
	types.Insist(domain.Contains(ix.domain, d), "domain %s is outside of the view %s", d, ix.domain)

	r := ix
	r.domain = d.Zero()
	for b := range ix.baseDim {
		v := ix.axes[b]
		if v < 0 {
			continue
		}
		a := d.Axis(v)
		r.first[b] = ix.first[b] + ix.stride[b]*a.First
		r.stride[b] = ix.stride[b] * a.Stride
	}
	return r
}

// Slice returns indexer of the view reduced by slice s, expressed in coordinates of this view.
func (ix Indexer) Slice(s domain.Slice) Indexer {
	types.Insist(s.TotalDim() == ix.Dim(), "slice dimension %d does not match view dimension %d", s.TotalDim(),
		ix.Dim())

	r := ix.Sub(s.Total())
	r.domain = s.Domain().Zero()

	var renumber [types.MaxDim]int
	var kept int
	for v := range ix.Dim() {
		renumber[v] = -1
		if !s.Ignored(v) {
			renumber[v] = kept
			kept++
		}
	}
	for b := range ix.baseDim {
		if v := r.axes[b]; v >= 0 {
			r.axes[b] = renumber[v]
		}
	}
	return r
}

// BaseDomain translates d from view coordinates into base coordinates.
func (ix Indexer) BaseDomain(d domain.Domain) domain.Domain {
	types.Insist(d.Dim() == ix.Dim(), "dimension mismatch: %d != %d", d.Dim(), ix.Dim())

	kind := max(d.Kind(), domain.KindInterval)
	axes := make([]domain.Axis, 0, ix.baseDim)
	empty := d.IsEmpty()
	for b := range ix.baseDim {
		v := ix.axes[b]
		switch {
		case v < 0:
			axes = append(axes, domain.PointAxis(ix.first[b]))
		case empty:
			axes = append(axes, domain.Axis{Stride: 1})
		default:
			a := d.Axis(v)
			ba := domain.Axis{First: ix.first[b] + ix.stride[b]*a.First, Stride: ix.stride[b] * a.Stride,
				Length: a.Length}
			if ba.Length > 1 && ba.Stride != 1 {
				kind = domain.KindRange
			}
			axes = append(axes, ba)
		}
	}
	return domain.New(kind, axes...)
}

// ViewDomain translates d from base coordinates into view coordinates. Every point of d must be covered by
// the view. Axes of the result are ascending.
func (ix Indexer) ViewDomain(d domain.Domain) domain.Domain {
	types.Insist(d.Dim() == ix.baseDim, "dimension mismatch: %d != %d", d.Dim(), ix.baseDim)

	if d.IsEmpty() {
		return domain.Empty(ix.Dim())
	}

	kind := domain.KindInterval
	axes := make([]domain.Axis, ix.Dim())
	for b := range ix.baseDim {
		v := ix.axes[b]
		if v < 0 {
			continue
		}
		a := d.Axis(b)
		if a.Length == 1 {
			axes[v] = domain.PointAxis((a.First - ix.first[b]) / ix.stride[b])
			continue
		}
		va := domain.Axis{First: (a.First - ix.first[b]) / ix.stride[b], Stride: a.Stride / ix.stride[b],
			Length: a.Length}
		if va.Stride < 0 {
			va = va.Reverse()
		}
		if va.Stride != 1 {
			kind = domain.KindRange
		}
		axes[v] = va
	}
	return domain.New(kind, axes...)
}

// BasePoint translates point from view coordinates into base coordinates.
func (ix Indexer) BasePoint(indices ...int) []int {
	types.Insist(len(indices) == ix.Dim(), "expected %d indices, got %d", ix.Dim(), len(indices))

	p := make([]int, ix.baseDim)
	for b := range ix.baseDim {
		p[b] = ix.first[b]
		if v := ix.axes[b]; v >= 0 {
			p[b] += ix.stride[b] * indices[v]
		}
	}
	return p
}

// Apply returns strides and offset addressing the view in the buffer addressed in base coordinates by strides
// and offset. Element of the base point p lives at offset + sum(strides[b] * p[b]).
func (ix Indexer) Apply(strides [types.MaxDim]int, offset int) ([types.MaxDim]int, int) {
	var r [types.MaxDim]int
	for b := range ix.baseDim {
		offset += strides[b] * ix.first[b]
		if v := ix.axes[b]; v >= 0 {
			r[v] = strides[b] * ix.stride[b]
		}
	}
	return r, offset
}

func fixedAxes(s domain.Slice) []int {
	var fixed []int
	for axis := range s.TotalDim() {
		if s.Ignored(axis) {
			fixed = append(fixed, axis)
		}
	}
	return fixed
}

// View is the zero-copy re-indexing of the layout into a sub-domain. Queries are translated into coordinates of
// the root layout, answered by it and translated back.
type View struct {
	root    Layout
	indexer Indexer
}

// NewView creates view of the layout covering d, expressed in layout coordinates.
func NewView(l Layout, d domain.Domain) View {
	types.Insist(domain.Contains(l.Domain(), d), "domain %s is outside of the layout %s", d, l.Domain())
	return View{root: l, indexer: NewIndexer(d)}
}

// NewSliceView creates view of the layout covering slice s, expressed in layout coordinates.
func NewSliceView(l Layout, s domain.Slice) View {
	types.Insist(domain.Contains(l.Domain(), s.Total()), "slice %s is outside of the layout %s", s.Total(),
		l.Domain())
	return View{root: l, indexer: NewSliceIndexer(s)}
}

// Sub returns view covering d, expressed in coordinates of this view.
func (v View) Sub(d domain.Domain) View {
	return View{root: v.root, indexer: v.indexer.Sub(d)}
}

// Slice returns view reduced by slice s, expressed in coordinates of this view.
func (v View) Slice(s domain.Slice) View {
	return View{root: v.root, indexer: v.indexer.Slice(s)}
}

// Root returns the layout the view is built on.
func (v View) Root() Layout {
	return v.root
}

// Indexer returns the indexer of the view.
func (v View) Indexer() Indexer {
	return v.indexer
}

// ID returns ID of the root layout.
func (v View) ID() types.LayoutID {
	return v.root.ID()
}

// Dim returns dimension of the view.
func (v View) Dim() int {
	return v.indexer.Dim()
}

// Domain returns zero-based domain of the view.
func (v View) Domain() domain.Domain {
	return v.indexer.Domain()
}

// GlobalID returns ID of the root patch owning the point of the view.
func (v View) GlobalID(indices ...int) types.GlobalID {
	if !v.indexer.Domain().Has(indices...) {
		return types.NoGlobalID
	}
	return v.root.GlobalID(v.indexer.BasePoint(indices...)...)
}

// Touches appends patches touching d, translated into view coordinates.
func (v View) Touches(d domain.Domain, out []node.Node) []node.Node {
	return v.translate(out, func(base domain.Domain, out []node.Node) []node.Node {
		return v.root.Touches(base, out)
	}, d)
}

// TouchesLocal appends local patches touching d, translated into view coordinates.
func (v View) TouchesLocal(d domain.Domain, out []node.Node) []node.Node {
	return v.translate(out, func(base domain.Domain, out []node.Node) []node.Node {
		return v.root.TouchesLocal(base, out)
	}, d)
}

// TouchesRemote appends remote patches touching d, translated into view coordinates.
func (v View) TouchesRemote(d domain.Domain, out []node.Node) []node.Node {
	return v.translate(out, func(base domain.Domain, out []node.Node) []node.Node {
		return v.root.TouchesRemote(base, out)
	}, d)
}

// TouchesINode appends pieces of root patches touching d, translated into view coordinates.
func (v View) TouchesINode(d domain.Domain, db *node.GlobalIDDataBase, parent types.NodeKey,
	out []node.INode,
) []node.INode {
	d = domain.Intersect(v.indexer.Domain(), d)
	if d.IsEmpty() {
		return out
	}

	first := len(out)
	out = v.root.TouchesINode(v.indexer.BaseDomain(d), db, parent, out)
	for i := first; i < len(out); i++ {
		out[i] = out[i].WithDomain(v.indexer.ViewDomain(out[i].Domain))
	}
	return out
}

func (v View) translate(out []node.Node, query func(base domain.Domain, out []node.Node) []node.Node,
	d domain.Domain,
) []node.Node {
	d = domain.Intersect(v.indexer.Domain(), d)
	if d.IsEmpty() {
		return out
	}

	first := len(out)
	out = query(v.indexer.BaseDomain(d), out)
	for i := first; i < len(out); i++ {
		out[i] = out[i].WithDomain(v.indexer.ViewDomain(out[i].Owned))
	}
	return out
}
