package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Graph implements ports.GraphSource using an in-memory node list.
// Safe for concurrent use; SetNodes swaps the graph atomically.
type Graph struct {
	mu    sync.RWMutex
	nodes []domain.GraphNode
}

// NewGraph creates a Graph holding nodes in the given order.
func NewGraph(nodes ...domain.GraphNode) *Graph {
	g := &Graph{}
	g.SetNodes(nodes)
	return g
}

// NewGraphFromJSON creates a Graph from a JSON array of nodes.
// This handles deserialization automatically, improving DX for tests and fixtures.
func NewGraphFromJSON(raw []byte) (*Graph, error) {
	var nodes []domain.GraphNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	for i, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d missing ID", i)
		}
	}
	return NewGraph(nodes...), nil
}

// SetNodes replaces the graph.
func (g *Graph) SetNodes(nodes []domain.GraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = copyNodes(nodes)
}

// Nodes returns a copy of the graph nodes.
func (g *Graph) Nodes(ctx context.Context) ([]domain.GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyNodes(g.nodes), nil
}

func copyNodes(in []domain.GraphNode) []domain.GraphNode {
	out := make([]domain.GraphNode, len(in))
	copy(out, in)
	return out
}
