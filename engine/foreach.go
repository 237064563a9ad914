package engine

import (
	"context"
	"fmt"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/tessera/node"
)

// PatchFunc processes one local patch.
type PatchFunc[T Element] func(ctx context.Context, n node.Node, e Engine[T]) error

// ForEachPatch runs fn for every local patch. Patches are grouped by their affinity and each group is processed
// by its own worker. First error cancels remaining work.
func ForEachPatch[T Element](ctx context.Context, m *MultiPatch[T], fn PatchFunc[T]) error {
	local := m.Layout().LocalNodes()
	if len(local) == 0 {
		return nil
	}

	workers := m.Layout().Session().Concurrency()
	groups := make([][]node.Node, workers)
	for _, n := range local {
		w := max(n.Affinity, 0) % workers
		groups[w] = append(groups[w], n)
	}

	logger.Get(ctx).Debug("Processing patches",
		zap.Uint64("layoutID", uint64(m.Layout().ID())),
		zap.Int("patches", len(local)),
		zap.Int("workers", workers))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i, g := range groups {
			if len(g) == 0 {
				continue
			}
			spawn(fmt.Sprintf("worker-%02d", i), parallel.Continue, func(ctx context.Context) error {
				for _, n := range g {
					if err := ctx.Err(); err != nil {
						return errors.WithStack(err)
					}
					if err := fn(ctx, n, m.Patch(n.GlobalID)); err != nil {
						return errors.Wrapf(err, "processing patch %d failed", n.GlobalID)
					}
				}
				return nil
			})
		}
		return nil
	})
}
