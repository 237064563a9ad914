package layout

import (
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/session"
)

// DomainLayoutConfig stores configuration of the single-patch layout.
type DomainLayoutConfig struct {
	Session *session.Session
	Domain  domain.Domain
	Guards  domain.GuardLayers
}

// DomainLayout is the layout of exactly one patch covering the whole domain, replicated on every context.
type DomainLayout struct {
	base
}

// NewDomainLayout creates single-patch layout.
func NewDomainLayout(config DomainLayoutConfig) *DomainLayout {
	ones := make([]int, config.Domain.Dim())
	for i := range ones {
		ones[i] = 1
	}
	p := partition.NewUniformGrid(ones, domain.GuardLayers{}, config.Guards)

	l := &DomainLayout{}
	l.init(config.Session, config.Domain, p.InternalGuards(), p.ExternalGuards(), listFinder{l: &l.base})

	nodes := p.Partition(config.Domain)
	partition.LocalMapper{}.Map(nodes, config.Session.Target())
	l.setNodes(nodes)
	return l
}
