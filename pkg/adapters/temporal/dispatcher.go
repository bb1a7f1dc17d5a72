package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/domain"
)

// DefaultWorkflow is the workflow type started for a test run.
const DefaultWorkflow = "PipelineTestRun"

// WorkflowStarter is the subset of the Temporal client the dispatcher needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
}

// Dispatcher starts one workflow execution per run request.
type Dispatcher struct {
	client     WorkflowStarter
	taskQueue  string
	workflow   string
	pipelineID string
	logger     *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithWorkflow overrides the workflow type name.
func WithWorkflow(name string) Option {
	return func(d *Dispatcher) { d.workflow = name }
}

// WithPipelineID prefixes workflow ids with the pipeline id.
func WithPipelineID(id string) Option {
	return func(d *Dispatcher) { d.pipelineID = id }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a Dispatcher that starts workflows on taskQueue.
func New(client WorkflowStarter, taskQueue string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:    client,
		taskQueue: taskQueue,
		workflow:  DefaultWorkflow,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to the Temporal frontend at hostPort.
func Dial(hostPort, namespace string) (tclient.Client, error) {
	c, err := tclient.Dial(tclient.Options{HostPort: hostPort, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to dial temporal at %s: %w", hostPort, err)
	}
	return c, nil
}

// HandleRun implements ports.RunDispatcher. The returned id is the Temporal run id.
func (d *Dispatcher) HandleRun(ctx context.Context, req domain.RunRequest) (string, error) {
	if d.client == nil {
		return "", errors.New("temporal client is not configured")
	}
	id := "pipeprep-" + uuid.NewString()
	if d.pipelineID != "" {
		id = "pipeprep-" + d.pipelineID + "-" + uuid.NewString()
	}

	run, err := d.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                    id,
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		Memo: map[string]interface{}{
			"start_node_id":   req.StartNodeID,
			"datasource_type": string(req.DatasourceType),
			"is_preview":      req.IsPreview,
		},
	}, d.workflow, req)
	if err != nil {
		return "", fmt.Errorf("failed to start workflow %s: %w", d.workflow, err)
	}

	d.logger.Info("workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "task_queue", d.taskQueue)
	if runID := run.GetRunID(); runID != "" {
		return runID, nil
	}
	return run.GetID(), nil
}
