package node

import (
	"sync"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/types"
)

// INode is the patch as seen by the intersection of two layouts. Its global ID depends on the layout asking
// and is resolved through the database.
type INode struct {
	Domain  domain.Domain
	Context types.ContextID
	Key     types.NodeKey
	db      *GlobalIDDataBase
}

// NewINode returns INode resolved through the database.
func NewINode(d domain.Domain, ctx types.ContextID, key types.NodeKey, db *GlobalIDDataBase) INode {
	return INode{
		Domain:  d,
		Context: ctx,
		Key:     key,
		db:      db,
	}
}

// GlobalID returns ID of the patch in the layout.
func (n INode) GlobalID(layoutID types.LayoutID) types.GlobalID {
	if n.db == nil {
		return types.NoGlobalID
	}
	return n.db.GlobalID(n.Key, layoutID)
}

// WithDomain returns copy of INode with the domain replaced.
func (n INode) WithDomain(d domain.Domain) INode {
	n.Domain = d
	return n
}

type dbEntry struct {
	layoutID types.LayoutID
	globalID types.GlobalID
	context  types.ContextID
	parent   types.NodeKey
}

// GlobalIDDataBase records which patch of which layout each intersection piece belongs to. Entries are chained,
// so piece derived from another one knows all the layouts its ancestors were found in.
type GlobalIDDataBase struct {
	mu      sync.RWMutex
	entries []dbEntry
}

// Push records the piece found in patch gid of layout and returns its key.
// Parent is zero if piece is not derived from any other one.
func (db *GlobalIDDataBase) Push(layoutID types.LayoutID, gid types.GlobalID, ctx types.ContextID,
	parent types.NodeKey,
) types.NodeKey {
	db.mu.Lock()
	defer db.mu.Unlock()

	types.Insist(uint64(parent) <= uint64(len(db.entries)), "invalid parent key %d", parent)

	db.entries = append(db.entries, dbEntry{
		layoutID: layoutID,
		globalID: gid,
		context:  ctx,
		parent:   parent,
	})
	return types.NodeKey(len(db.entries))
}

// GlobalID walks the chain of the key and returns patch ID recorded for the layout.
func (db *GlobalIDDataBase) GlobalID(key types.NodeKey, layoutID types.LayoutID) types.GlobalID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for key != 0 {
		e := db.entries[key-1]
		if e.layoutID == layoutID {
			return e.globalID
		}
		key = e.parent
	}
	return types.NoGlobalID
}

// Context returns context recorded for the key.
func (db *GlobalIDDataBase) Context(key types.NodeKey) types.ContextID {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.entries[key-1].context
}

// Size returns the number of entries.
func (db *GlobalIDDataBase) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.entries)
}
