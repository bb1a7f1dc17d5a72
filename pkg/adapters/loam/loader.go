package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// watchPattern matches every document format Loam can parse.
const watchPattern = "**/*.{md,json,yaml,yml}"

// Loader reads a pipeline graph from a Loam repository.
// Each document is one node; its frontmatter carries the node data.
type Loader struct {
	Repo *loam.TypedRepository[NodeMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[NodeMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initialises a read-only Loam repository at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number across formats.
	// Read-only mode avoids Loam's sandbox behaviour in dev mode.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[NodeMetadata](repo)), nil
}

type entry struct {
	node     domain.GraphNode
	position int
}

// Nodes implements ports.GraphSource. Nodes are ordered by their "position"
// field, then by id.
func (l *Loader) Nodes(ctx context.Context) ([]domain.GraphNode, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		id := nodeID(doc.ID, doc.Data)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		entries = append(entries, entry{
			node:     domain.GraphNode{ID: id, Data: doc.Data.config()},
			position: doc.Data.Position,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].position != entries[j].position {
			return entries[i].position < entries[j].position
		}
		return entries[i].node.ID < entries[j].node.ID
	})

	nodes := make([]domain.GraphNode, len(entries))
	for i, e := range entries {
		nodes[i] = e.node
	}
	return nodes, nil
}

// FetchProcessingParams implements ports.ParamFetcher from the node's
// "variables" frontmatter. pipelineID is ignored; a repository holds one pipeline.
func (l *Loader) FetchProcessingParams(ctx context.Context, pipelineID, id string) (*domain.ProcessingParams, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	vars, err := decodeVariables(doc.Data.Variables)
	if err != nil {
		return nil, fmt.Errorf("invalid variables in %s: %w", id, err)
	}
	for i := range vars {
		if vars[i].BelongToNodeID == "" {
			vars[i].BelongToNodeID = id
		}
	}
	return &domain.ProcessingParams{Variables: vars}, nil
}

func decodeVariables(raw []any) ([]domain.Variable, error) {
	vars := make([]domain.Variable, 0, len(raw))
	for i, item := range raw {
		var v domain.Variable
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &v,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
		if v.Variable == "" {
			return nil, fmt.Errorf("variables[%d]: missing variable name", i)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// Watch implements ports.Watchable. Each change to a node document emits a
// signal; signals are coalesced while the consumer is busy.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, watchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func nodeID(docID string, meta NodeMetadata) string {
	raw := meta.ID
	if raw == "" {
		raw = docID
	}
	return trimExtension(raw)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
