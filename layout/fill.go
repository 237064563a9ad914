package layout

import (
	"github.com/pkg/errors"

	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// FillList returns the guard fill list, computing it on first use.
func (l *base) FillList() []FillItem {
	l.fillMu.Lock()
	defer l.fillMu.Unlock()

	if !l.fillValid {
		l.fill = l.computeFillList()
		l.fillValid = true
	}
	return l.fill
}

func (l *base) computeFillList() []FillItem {
	if l.internal.IsZero() {
		return nil
	}

	var items []FillItem
	var owners []node.Node
	for _, guard := range l.all {
		if guard.Allocated == guard.Owned {
			continue
		}

		owners = l.Touches(guard.Allocated, owners[:0])
		for _, owner := range owners {
			if owner.GlobalID == guard.GlobalID {
				continue
			}
			items = append(items, FillItem{
				Owner:  owner.GlobalID,
				Guard:  guard.GlobalID,
				Domain: owner.Owned,
				Face:   guardFace(guard.Owned, owner.Owned),
			})
		}
	}
	return items
}

// guardFace returns the face of the owned domain the guard region d lies on. It is the lowest axis along which
// d is outside owned.
func guardFace(owned, d domain.Domain) types.Face {
	for axis := range owned.Dim() {
		if d.Max(axis) < owned.Min(axis) {
			return types.NewFace(axis, false)
		}
		if d.Min(axis) > owned.Max(axis) {
			return types.NewFace(axis, true)
		}
	}
	panic(errors.Errorf("domain %s is not a guard region of %s", d, owned))
}
