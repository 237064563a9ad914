package test

import (
	"context"
	"fmt"

	"github.com/outofforest/parallel"

	"github.com/outofforest/tessera/remote"
	"github.com/outofforest/tessera/types"
)

// RunContexts runs fn once per context of the in-process cluster and waits until all of them finish.
func RunContexts(ctx context.Context, contexts int, fn func(ctx context.Context, comm remote.Communicator) error) error {
	cluster := remote.NewCluster(contexts)

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range contexts {
			comm := cluster.Endpoint(types.ContextID(i))
			spawn(fmt.Sprintf("context-%02d", i), parallel.Continue, func(ctx context.Context) error {
				return fn(ctx, comm)
			})
		}
		return nil
	})
}
