// Package remote defines the collective operations the layouts need from the transport connecting contexts.
package remote

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/outofforest/tessera/types"
)

// Communicator exchanges small payloads between all the contexts.
type Communicator interface {
	// Context returns ID of this context.
	Context() types.ContextID

	// Contexts returns the number of contexts.
	Contexts() int

	// AllGather sends payload to all the contexts and returns payloads of all of them, indexed by context.
	// It is a collective operation, every context must call it.
	AllGather(ctx context.Context, payload []byte) ([][]byte, error)
}

// Local is the communicator of the single-context application.
type Local struct{}

// Context returns ID of this context.
func (Local) Context() types.ContextID {
	return 0
}

// Contexts returns the number of contexts.
func (Local) Contexts() int {
	return 1
}

// AllGather returns the payload.
func (Local) AllGather(ctx context.Context, payload []byte) ([][]byte, error) {
	return [][]byte{bytes.Clone(payload)}, nil
}

// Cluster connects contexts running in the same process. It is used to run multi-context code in tests.
type Cluster struct {
	mu   sync.Mutex
	size int
	gen  *generation
}

type generation struct {
	payloads [][]byte
	arrived  []bool
	count    int
	done     chan struct{}
}

// NewCluster creates cluster of size contexts.
func NewCluster(size int) *Cluster {
	types.Insist(size > 0, "cluster must have at least one context")

	return &Cluster{
		size: size,
		gen:  newGeneration(size),
	}
}

// Endpoint returns communicator of the context.
func (c *Cluster) Endpoint(ctx types.ContextID) Communicator {
	types.Insist(ctx >= 0 && int(ctx) < c.size, "context %d out of range", ctx)
	return &endpoint{cluster: c, context: ctx}
}

func (c *Cluster) allGather(ctx context.Context, id types.ContextID, payload []byte) ([][]byte, error) {
	c.mu.Lock()
	g := c.gen
	types.Insist(!g.arrived[id], "context %d entered the same collective twice", id)
	g.payloads[id] = bytes.Clone(payload)
	g.arrived[id] = true
	g.count++
	if g.count == c.size {
		close(g.done)
		c.gen = newGeneration(c.size)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	case <-g.done:
		return append([][]byte(nil), g.payloads...), nil
	}
}

func newGeneration(size int) *generation {
	return &generation{
		payloads: make([][]byte, size),
		arrived:  make([]bool, size),
		done:     make(chan struct{}),
	}
}

type endpoint struct {
	cluster *Cluster
	context types.ContextID
}

func (e *endpoint) Context() types.ContextID {
	return e.context
}

func (e *endpoint) Contexts() int {
	return e.cluster.size
}

func (e *endpoint) AllGather(ctx context.Context, payload []byte) ([][]byte, error) {
	return e.cluster.allGather(ctx, e.context, payload)
}

// Seal prefixes payload with its blake3 digest.
func Seal(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	sealed := make([]byte, 0, len(sum)+len(payload))
	sealed = append(sealed, sum[:]...)
	return append(sealed, payload...)
}

// Open verifies the digest of sealed payload and returns the payload.
func Open(sealed []byte) ([]byte, error) {
	const digestSize = 32

	if len(sealed) < digestSize {
		return nil, errors.Errorf("sealed payload too short: %d bytes", len(sealed))
	}
	sum := blake3.Sum256(sealed[digestSize:])
	if !bytes.Equal(sum[:], sealed[:digestSize]) {
		return nil, errors.New("payload digest mismatch")
	}
	return sealed[digestSize:], nil
}

// GatherSealed seals the payload, gathers payloads of all the contexts and verifies them.
func GatherSealed(ctx context.Context, comm Communicator, payload []byte) ([][]byte, error) {
	sealed, err := comm.AllGather(ctx, Seal(payload))
	if err != nil {
		return nil, err
	}

	result := make([][]byte, 0, len(sealed))
	for i, s := range sealed {
		p, err := Open(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid payload received from context %d", i)
		}
		result = append(result, p)
	}
	return result, nil
}
