package ports

import (
	"context"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// GraphSource reports the nodes of the current pipeline graph.
// The core treats the result as read-only.
type GraphSource interface {
	Nodes(ctx context.Context) ([]domain.GraphNode, error)
}

// Watchable defines an interface for graph sources that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying graph changes.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
