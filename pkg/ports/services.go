package ports

import (
	"context"
	"io"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// ParamFetcher retrieves the processing variables declared for a datasource node.
type ParamFetcher interface {
	FetchProcessingParams(ctx context.Context, pipelineID, nodeID string) (*domain.ProcessingParams, error)
}

// RunDispatcher hands a run request off to the run engine.
// Retries are the dispatcher's concern, not the caller's.
type RunDispatcher interface {
	HandleRun(ctx context.Context, req domain.RunRequest) (runID string, err error)
}

// Notifier surfaces user-facing notices.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n domain.Notification) { f(ctx, n) }

// FileUploader stores an uploaded local file and returns its resolved metadata.
// A returned FileInfo with a non-empty ID signals upload completion.
type FileUploader interface {
	Upload(ctx context.Context, name, mimeType string, size int64, r io.Reader) (domain.FileInfo, error)
}
