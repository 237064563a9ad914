package remote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/stretchr/testify/require"
	blake3luke "lukechampine.com/blake3"

	"github.com/outofforest/tessera/types"
)

func TestLocal(t *testing.T) {
	requireT := require.New(t)

	var comm Local
	requireT.Equal(types.ContextID(0), comm.Context())
	requireT.Equal(1, comm.Contexts())

	payloads, err := comm.AllGather(context.Background(), []byte{1, 2, 3})
	requireT.NoError(err)
	requireT.Equal([][]byte{{1, 2, 3}}, payloads)
}

func TestCluster(t *testing.T) {
	requireT := require.New(t)

	const size = 4
	cluster := NewCluster(size)
	results := make([][][]byte, size)

	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range size {
			comm := cluster.Endpoint(types.ContextID(i))
			spawn(fmt.Sprintf("context-%02d", i), parallel.Continue, func(ctx context.Context) error {
				// Two rounds to check that generations don't mix.
				for round := range 2 {
					payloads, err := comm.AllGather(ctx, []byte{byte(comm.Context()), byte(round)})
					if err != nil {
						return err
					}
					results[comm.Context()] = payloads
				}
				return nil
			})
		}
		return nil
	})
	requireT.NoError(err)

	expected := [][]byte{{0, 1}, {1, 1}, {2, 1}, {3, 1}}
	for _, r := range results {
		requireT.Equal(expected, r)
	}
}

func TestClusterCancel(t *testing.T) {
	requireT := require.New(t)

	cluster := NewCluster(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cluster.Endpoint(0).AllGather(ctx, []byte{1})
	requireT.ErrorIs(err, context.DeadlineExceeded)
}

func TestSeal(t *testing.T) {
	requireT := require.New(t)

	payload := []byte("domains")
	sealed := Seal(payload)

	sum := blake3luke.Sum256(payload)
	requireT.Equal(sum[:], sealed[:32])

	opened, err := Open(sealed)
	requireT.NoError(err)
	requireT.Equal(payload, opened)

	sealed[len(sealed)-1]++
	_, err = Open(sealed)
	requireT.Error(err)

	_, err = Open([]byte{1, 2})
	requireT.Error(err)
}

func TestGatherSealed(t *testing.T) {
	requireT := require.New(t)

	payloads, err := GatherSealed(context.Background(), Local{}, []byte{5, 6})
	requireT.NoError(err)
	requireT.Equal([][]byte{{5, 6}}, payloads)
}
