// Package domainmap implements the spatial index answering which of the stored domains touch the query.
package domainmap

import (
	"github.com/outofforest/mass"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/types"
)

const nodeChunk = 64

// Entry is the domain stored in the map together with its payload.
type Entry[T any] struct {
	Domain domain.Domain
	Value  T
}

type treeNode[T any] struct {
	domain  domain.Domain
	axis    int
	parent  *treeNode[T]
	left    *treeNode[T]
	right   *treeNode[T]
	entries []Entry[T]
}

// Map is the binary tree over the bounding domain. Each tree node covers half of its parent's domain, split
// along rotating axis. Stored domain lives in the deepest node containing it entirely, so domains crossing
// the split boundary stay in the ancestor.
type Map[T any] struct {
	nodes   *mass.Mass[treeNode[T]]
	root    *treeNode[T]
	size    int
	updated bool
}

// Initialize sets the bounding domain. All the previously stored entries are dropped.
func (m *Map[T]) Initialize(bounds domain.Domain) {
	m.nodes = mass.New[treeNode[T]](nodeChunk)
	m.root = m.nodes.New()
	*m.root = treeNode[T]{
		domain: bounds.Bounds(),
		axis:   -1,
	}
	m.size = 0
	m.updated = false
}

// Initialized returns true if bounding domain has been set.
func (m *Map[T]) Initialized() bool {
	return m.root != nil
}

// Bounds returns the bounding domain.
func (m *Map[T]) Bounds() domain.Domain {
	types.Insist(m.root != nil, "domain map is not initialized")
	return m.root.domain
}

// Insert stores the domain with its payload. Domain must be contained in the bounding domain.
func (m *Map[T]) Insert(d domain.Domain, value T) {
	types.Insist(m.root != nil, "domain map is not initialized")
	types.Insist(domain.Contains(m.root.domain, d), "domain %s is outside of the map bounds %s", d,
		m.root.domain)

	m.updated = false
	m.size++

	n := m.root
	if !d.IsEmpty() {
		for {
			if n.left == nil && !m.split(n) {
				break
			}
			if domain.Contains(n.left.domain, d) {
				n = n.left
				continue
			}
			if domain.Contains(n.right.domain, d) {
				n = n.right
				continue
			}
			break
		}
	}
	n.entries = append(n.entries, Entry[T]{Domain: d, Value: value})
}

// Update marks the map as ready for queries.
func (m *Map[T]) Update() {
	types.Insist(m.root != nil, "domain map is not initialized")
	m.updated = true
}

// Size returns the number of stored entries.
func (m *Map[T]) Size() int {
	return m.size
}

// Clear removes all the entries but keeps the bounding domain.
func (m *Map[T]) Clear() {
	if m.root == nil {
		return
	}
	m.Initialize(m.root.domain)
}

// Zap removes all the entries and the bounding domain.
func (m *Map[T]) Zap() {
	m.nodes = nil
	m.root = nil
	m.size = 0
	m.updated = false
}

// Touch iterates over entries touching the query domain.
func (m *Map[T]) Touch(q domain.Domain) func(func(Entry[T]) bool) {
	types.Insist(m.updated, "domain map must be updated before querying")

	return func(yield func(Entry[T]) bool) {
		if q.IsEmpty() {
			return
		}

		n := m.root
		for n != nil {
			if domain.Touches(n.domain, q) {
				for _, e := range n.entries {
					if domain.Touches(e.Domain, q) && !yield(e) {
						return
					}
				}
				if n.left != nil {
					n = n.left
					continue
				}
			}
			n = next(n)
		}
	}
}

// All iterates over all the entries.
func (m *Map[T]) All() func(func(Entry[T]) bool) {
	return func(yield func(Entry[T]) bool) {
		n := m.root
		for n != nil {
			for _, e := range n.entries {
				if !yield(e) {
					return
				}
			}
			if n.left != nil {
				n = n.left
				continue
			}
			n = next(n)
		}
	}
}

// next returns the node following the subtree of n in pre-order.
func next[T any](n *treeNode[T]) *treeNode[T] {
	for n.parent != nil {
		if n == n.parent.left {
			return n.parent.right
		}
		n = n.parent
	}
	return nil
}

func (m *Map[T]) split(n *treeNode[T]) bool {
	dim := n.domain.Dim()
	axis := n.axis
	for range dim {
		axis = (axis + 1) % dim
		if n.domain.Length(axis) < 2 {
			continue
		}

		lo, hi := domain.Split(n.domain, axis)
		n.left = m.nodes.New()
		*n.left = treeNode[T]{domain: lo, axis: axis, parent: n}
		n.right = m.nodes.New()
		*n.right = treeNode[T]{domain: hi, axis: axis, parent: n}
		return true
	}
	return false
}
