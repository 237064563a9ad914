package test

import (
	"context"
	"sort"
	"testing"

	"golang.org/x/exp/constraints"

	"github.com/outofforest/logger"
	"github.com/outofforest/tessera/node"
	"github.com/outofforest/tessera/types"
)

// Context returns context carrying the logger, canceled when test finishes.
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)
	return ctx
}

// Sorted returns sorted copy of values.
func Sorted[T constraints.Ordered](values []T) []T {
	s := append([]T{}, values...)
	sort.Slice(s, func(i, j int) bool {
		return s[i] < s[j]
	})
	return s
}

// CollectGlobalIDs collects sorted global IDs of nodes.
func CollectGlobalIDs(nodes []node.Node) []types.GlobalID {
	ids := make([]types.GlobalID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.GlobalID)
	}
	return Sorted(ids)
}
