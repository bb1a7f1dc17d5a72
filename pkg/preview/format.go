/*
Package preview turns raw test-run outputs into a bounded, display-ready preview.

Truncation depends on the chunk structure:

  - General: the first N chunks.
  - Parent-child, paragraph: the first N parents, each with all of its children.
  - Parent-child, full-doc: all parents, each with its first N children.
  - QA: the first N pairs, passed through with every field intact.

A nil array for the selected branch is a schema mismatch with the server and
is reported as ErrMalformedOutputs rather than recovered.
*/
package preview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// DefaultLimit is the preview cap used when no limit is configured.
const DefaultLimit = 20

// ErrMalformedOutputs is returned when the outputs lack the array required by their chunk structure.
var ErrMalformedOutputs = errors.New("malformed preview outputs")

// Format converts outputs into preview chunks capped by limit.
// It returns (nil, nil) for nil outputs or an unrecognised chunk structure.
// A limit <= 0 falls back to DefaultLimit.
func Format(outputs *domain.PreviewOutputs, limit int) (domain.PreviewChunks, error) {
	if outputs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	switch outputs.ChunkStructure {
	case domain.ChunkingGeneral:
		if outputs.Preview == nil {
			return nil, fmt.Errorf("%w: %s without preview", ErrMalformedOutputs, outputs.ChunkStructure)
		}
		return formatGeneral(outputs.Preview, limit), nil

	case domain.ChunkingParentChild:
		if outputs.Preview == nil {
			return nil, fmt.Errorf("%w: %s without preview", ErrMalformedOutputs, outputs.ChunkStructure)
		}
		return formatParentChild(outputs.Preview, outputs.ParentMode, limit), nil

	case domain.ChunkingQA:
		if outputs.QAPreview == nil {
			return nil, fmt.Errorf("%w: %s without qa_preview", ErrMalformedOutputs, outputs.ChunkStructure)
		}
		return domain.QAChunks{QAChunks: head(outputs.QAPreview, limit)}, nil

	default:
		return nil, nil
	}
}

func formatGeneral(items []domain.PreviewItem, limit int) domain.GeneralChunks {
	items = items[:min(len(items), limit)]
	out := make(domain.GeneralChunks, 0, len(items))
	for _, item := range items {
		out = append(out, domain.GeneralChunk{Content: item.Content})
	}
	return out
}

func formatParentChild(items []domain.PreviewItem, mode domain.ParentMode, limit int) domain.ParentChildChunks {
	if mode != domain.ParentModeFullDoc {
		mode = domain.ParentModeParagraph
	}

	parents := items
	childLimit := -1
	if mode == domain.ParentModeFullDoc {
		childLimit = limit
	} else {
		parents = items[:min(len(items), limit)]
	}

	chunks := make([]domain.ParentChildChunk, 0, len(parents))
	for _, item := range parents {
		children := item.ChildChunks
		if childLimit >= 0 {
			children = children[:min(len(children), childLimit)]
		}
		chunks = append(chunks, domain.ParentChildChunk{
			ParentContent: item.Content,
			ChildContents: append([]string{}, children...),
			ParentMode:    mode,
		})
	}
	return domain.ParentChildChunks{ParentMode: mode, ParentChildChunks: chunks}
}

// head returns a copy of the first n entries, never nil.
func head[T any](in []T, n int) []T {
	in = in[:min(len(in), n)]
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Formatter memoises the last formatted preview by outputs identity.
// Formatting the same *PreviewOutputs twice returns the cached result.
type Formatter struct {
	limit int

	mu   sync.Mutex
	last *domain.PreviewOutputs
	res  domain.PreviewChunks
	err  error
}

// NewFormatter creates a Formatter capped at limit (DefaultLimit when <= 0).
func NewFormatter(limit int) *Formatter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Formatter{limit: limit}
}

// Limit returns the preview cap.
func (f *Formatter) Limit() int { return f.limit }

// Format formats outputs, reusing the previous result when outputs is the same pointer.
func (f *Formatter) Format(outputs *domain.PreviewOutputs) (domain.PreviewChunks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if outputs != nil && outputs == f.last {
		return f.res, f.err
	}
	f.res, f.err = Format(outputs, f.limit)
	f.last = outputs
	return f.res, f.err
}
