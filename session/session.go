// Package session holds the per-application state shared by layouts and engines.
package session

import (
	"runtime"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/partition"
	"github.com/outofforest/tessera/remote"
	"github.com/outofforest/tessera/types"
)

// Config stores session configuration.
type Config struct {
	// Comm connects the contexts. Single-context session is created if nil.
	Comm remote.Communicator

	// Concurrency is the number of workers processing patches of this context. GOMAXPROCS is used if zero.
	Concurrency int

	// PatchAllocation selects where patch buffers live.
	PatchAllocation alloc.Kind
}

// Session is the per-application context.
type Session struct {
	config Config
	ids    types.IDAllocator
}

// New creates session.
func New(config Config) *Session {
	if config.Comm == nil {
		config.Comm = remote.Local{}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Session{config: config}
}

// Local creates single-context session.
func Local() *Session {
	return New(Config{})
}

// Context returns ID of this context.
func (s *Session) Context() types.ContextID {
	return s.config.Comm.Context()
}

// Contexts returns number of contexts.
func (s *Session) Contexts() int {
	return s.config.Comm.Contexts()
}

// Concurrency returns number of workers.
func (s *Session) Concurrency() int {
	return s.config.Concurrency
}

// Comm returns communicator.
func (s *Session) Comm() remote.Communicator {
	return s.config.Comm
}

// PatchAllocation returns kind of patch buffers.
func (s *Session) PatchAllocation() alloc.Kind {
	return s.config.PatchAllocation
}

// IDs returns the allocator of layout IDs.
func (s *Session) IDs() *types.IDAllocator {
	return &s.ids
}

// Target returns the mapping target of this context.
func (s *Session) Target() partition.Target {
	return partition.Target{
		Context:     s.Context(),
		Contexts:    s.Contexts(),
		Concurrency: s.Concurrency(),
	}
}
