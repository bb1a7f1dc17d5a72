/*
Package registry derives the selectable datasources from the pipeline graph.
*/
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
)

// ListDatasources keeps the datasource nodes of the graph, in graph order.
// Duplicate titles are allowed; callers disambiguate by Value (node id).
func ListDatasources(nodes []domain.GraphNode) []domain.DatasourceOption {
	options := make([]domain.DatasourceOption, 0, len(nodes))
	for _, n := range nodes {
		if n.Data.Type != domain.NodeTypeDatasource {
			continue
		}
		options = append(options, domain.DatasourceOption{
			Label: n.Data.Title,
			Value: n.ID,
			Data:  n.Data,
		})
	}
	return options
}

// Find returns the option whose Value equals nodeID.
func Find(options []domain.DatasourceOption, nodeID string) (domain.DatasourceOption, bool) {
	for _, o := range options {
		if o.Value == nodeID {
			return o, true
		}
	}
	return domain.DatasourceOption{}, false
}

// Registry memoises the datasource options of a GraphSource.
// Options are recomputed whenever any node in the list changes, config included.
type Registry struct {
	source ports.GraphSource
	logger *slog.Logger

	mu          sync.Mutex
	fingerprint uint64
	options     []domain.DatasourceOption
	computed    bool
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a Registry over source.
func New(source ports.GraphSource, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Options returns the current datasource options.
func (r *Registry) Options(ctx context.Context) ([]domain.DatasourceOption, error) {
	nodes, err := r.source.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}

	fp, ok := fingerprint(nodes)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !ok || !r.computed || fp != r.fingerprint {
		r.options = ListDatasources(nodes)
		r.fingerprint = fp
		r.computed = ok
		r.logger.Debug("datasource options recomputed", "count", len(r.options))
	}

	out := make([]domain.DatasourceOption, len(r.options))
	copy(out, r.options)
	return out, nil
}

// fingerprint hashes the full node list. Map keys encode sorted, so equal
// graphs hash equal. ok is false when the nodes cannot be encoded.
func fingerprint(nodes []domain.GraphNode) (uint64, bool) {
	h := fnv.New64a()
	if err := json.NewEncoder(h).Encode(nodes); err != nil {
		return 0, false
	}
	return h.Sum64(), true
}
