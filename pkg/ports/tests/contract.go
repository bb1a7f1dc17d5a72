package tests

import (
	"context"
	"testing"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
)

// GraphSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.GraphSource.
// expected lists the node ids, in graph order, that the source is seeded with.
func GraphSourceContractTest(t *testing.T, source ports.GraphSource, expected []string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Nodes_Order", func(t *testing.T) {
		nodes, err := source.Nodes(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing nodes: %v", err)
		}
		if len(nodes) != len(expected) {
			t.Fatalf("expected %d nodes, got %d", len(expected), len(nodes))
		}
		for i, id := range expected {
			if nodes[i].ID != id {
				t.Errorf("node %d: got %q, want %q", i, nodes[i].ID, id)
			}
		}
	})

	t.Run("Nodes_Isolated", func(t *testing.T) {
		nodes, err := source.Nodes(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing nodes: %v", err)
		}
		if len(nodes) == 0 {
			t.Skip("no nodes to mutate")
		}
		nodes[0].Data.Title = "mutated-by-caller"
		nodes[0].Data.Type = domain.NodeTypeDatasource + "-mutated"

		again, err := source.Nodes(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing nodes: %v", err)
		}
		if again[0].Data.Title == "mutated-by-caller" {
			t.Error("caller mutation leaked into the graph source")
		}
	})
}
