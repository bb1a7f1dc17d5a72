/*
Package preparation implements the two-step state machine that prepares a pipeline test run.

Step 1 selects a datasource and its items; step 2 collects processing inputs and
dispatches a run request. Kind switches and credential changes clear the
affected selection before the new value is recorded, under one lock, so no
reader observes the new datasource paired with the previous selection.
*/
package preparation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
	"github.com/aretw0/pipeprep/pkg/registry"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
	"github.com/aretw0/pipeprep/pkg/validation"
)

// ErrDispatchInFlight is returned when Process is called while a dispatch is running.
var ErrDispatchInFlight = errors.New("run dispatch already in progress")

// ErrNoDispatcher is returned when Process has no RunDispatcher to hand off to.
var ErrNoDispatcher = errors.New("no run dispatcher configured")

// Machine is the preparation state machine of one session.
// It is safe for concurrent use, although a session is expected to have one owner.
type Machine struct {
	pipelineID string
	sessionID  string
	options    []domain.DatasourceOption

	store      *sourcestore.Store
	params     ports.ParamFetcher
	dispatcher ports.RunDispatcher
	notifier   ports.Notifier
	hooks      domain.Hooks
	logger     *slog.Logger
	isPreview  bool

	initOnce sync.Once

	mu           sync.Mutex
	step         domain.Step
	datasource   *domain.Datasource
	inputs       map[string]any
	status       domain.SessionStatus
	runID        string
	variables    []domain.Variable
	paramsNodeID string

	fetching atomic.Int32 // in-flight param fetches
	running  atomic.Bool
}

// Option configures the Machine.
type Option func(*Machine)

// WithSessionID sets the id reported in snapshots.
func WithSessionID(id string) Option {
	return func(m *Machine) { m.sessionID = id }
}

// WithSession restores a persisted session before initialisation runs.
func WithSession(s *domain.Session) Option {
	return func(m *Machine) { m.restore(s) }
}

// WithParamFetcher configures where processing variables come from.
func WithParamFetcher(f ports.ParamFetcher) Option {
	return func(m *Machine) { m.params = f }
}

// WithDispatcher configures the run dispatcher used by Process.
func WithDispatcher(d ports.RunDispatcher) Option {
	return func(m *Machine) { m.dispatcher = d }
}

// WithNotifier configures where user-facing notices go.
func WithNotifier(n ports.Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithHooks registers lifecycle hooks.
// Hooks run synchronously while the Machine is locked and must not call back into it.
func WithHooks(h domain.Hooks) Option {
	return func(m *Machine) { m.hooks = h }
}

// WithLogger configures a logger for the Machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithPreview marks dispatched requests as previews. Defaults to true.
func WithPreview(preview bool) Option {
	return func(m *Machine) { m.isPreview = preview }
}

// New creates a Machine over the given datasource options and runs initialisation.
func New(pipelineID string, options []domain.DatasourceOption, opts ...Option) *Machine {
	m := &Machine{
		pipelineID: pipelineID,
		options:    append([]domain.DatasourceOption(nil), options...),
		store:      sourcestore.New(),
		logger:     logging.NewNop(),
		isPreview:  true,
		step:       domain.StepSelectAndConfigure,
		status:     domain.StatusPreparing,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Init(context.Background())
	return m
}

// Init selects the first option when nothing is selected yet.
// It runs at most once per Machine; later calls are no-ops.
func (m *Machine) Init(ctx context.Context) {
	m.initOnce.Do(func() {
		m.mu.Lock()
		selected := m.datasource != nil
		options := m.options
		m.mu.Unlock()
		if selected || len(options) == 0 {
			return
		}
		if err := m.SelectDatasource(ctx, options[0].Datasource()); err != nil {
			m.logger.Debug("auto-select skipped", "pipeline_id", m.pipelineID, "err", err)
		}
	})
}

// Options returns the selectable datasource options.
func (m *Machine) Options() []domain.DatasourceOption {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DatasourceOption(nil), m.options...)
}

// SetOptions replaces the selectable options after a graph change.
// The active datasource is kept even if it is no longer listed.
func (m *Machine) SetOptions(options []domain.DatasourceOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = append([]domain.DatasourceOption(nil), options...)
}

// Sources exposes the selection store for kind-specific writes.
func (m *Machine) Sources() *sourcestore.Store { return m.store }

// Step returns the current step.
func (m *Machine) Step() domain.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Datasource returns a copy of the active datasource, or nil.
func (m *Machine) Datasource() *domain.Datasource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.datasource == nil {
		return nil
	}
	ds := *m.datasource
	return &ds
}

// Fetching reports whether a parameter fetch is in flight.
func (m *Machine) Fetching() bool { return m.fetching.Load() > 0 }

// Running reports whether a run dispatch is in flight.
func (m *Machine) Running() bool { return m.running.Load() }

// SelectNode selects the option whose node id is nodeID.
func (m *Machine) SelectNode(ctx context.Context, nodeID string) error {
	opt, ok := registry.Find(m.Options(), nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDatasource, nodeID)
	}
	return m.SelectDatasource(ctx, opt.Datasource())
}

// SelectDatasource makes ds the active datasource.
// Selecting the active node again is a no-op. Otherwise the previous kind's
// selection is cleared and the credential reset before ds is recorded.
func (m *Machine) SelectDatasource(ctx context.Context, ds domain.Datasource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == domain.StatusDispatched {
		return domain.ErrAlreadyDispatched
	}
	if m.step != domain.StepSelectAndConfigure {
		return domain.ErrWrongStep
	}

	prev := m.datasource
	if prev != nil && prev.NodeID == ds.NodeID {
		return nil
	}

	m.store.Update(func(st *domain.SourceState) {
		if prev != nil {
			handlerFor(prev.Kind).clear(st)
		}
		st.CurrentCredentialID = ""
		st.CurrentNodeID = ds.NodeID
	})
	m.datasource = &ds
	m.variables = nil
	m.paramsNodeID = ""

	ev := &domain.SwitchEvent{
		EventBase: m.event(domain.EventDatasourceSwitch),
		ToNodeID:  ds.NodeID,
		ToKind:    ds.Kind,
		Cleared:   prev != nil,
	}
	if prev != nil {
		ev.FromNodeID = prev.NodeID
		ev.FromKind = prev.Kind
	}
	m.logger.Debug("datasource switched", "pipeline_id", m.pipelineID, "from", ev.FromNodeID, "to", ds.NodeID, "kind", ds.Kind)
	if m.hooks.OnDatasourceSwitch != nil {
		m.hooks.OnDatasourceSwitch(ctx, ev)
	}
	return nil
}

// ChangeCredential clears the active kind's selection and records id.
// It reports false when there is no datasource or id is already in effect.
func (m *Machine) ChangeCredential(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.datasource == nil {
		return false, nil
	}
	if m.step != domain.StepSelectAndConfigure {
		return false, domain.ErrWrongStep
	}
	if m.store.CredentialID() == id {
		return false, nil
	}

	kind := m.datasource.Kind
	m.store.Update(func(st *domain.SourceState) {
		handlerFor(kind).clear(st)
		st.CurrentCredentialID = id
	})

	if m.hooks.OnCredentialChange != nil {
		m.hooks.OnCredentialChange(ctx, &domain.CredentialEvent{
			EventBase:    m.event(domain.EventCredentialChange),
			NodeID:       m.datasource.NodeID,
			Kind:         kind,
			CredentialID: id,
		})
	}
	return true, nil
}

// Ready reports whether the selection allows leaving step 1.
func (m *Machine) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyLocked()
}

func (m *Machine) readyLocked() bool {
	if m.datasource == nil {
		return false
	}
	return handlerFor(m.datasource.Kind).ready(m.store.Snapshot())
}

// Next advances to step 2 when the selection is ready. It reports whether the step changed.
func (m *Machine) Next(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != domain.StepSelectAndConfigure || !m.readyLocked() {
		return false
	}
	m.setStepLocked(ctx, domain.StepProcessAndSubmit)
	return true
}

// Back returns to step 1 without clearing the selection. It reports whether the step changed.
func (m *Machine) Back(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step != domain.StepProcessAndSubmit || m.running.Load() || m.status == domain.StatusDispatched {
		return false
	}
	m.setStepLocked(ctx, domain.StepSelectAndConfigure)
	return true
}

func (m *Machine) setStepLocked(ctx context.Context, to domain.Step) {
	from := m.step
	m.step = to
	m.logger.Debug("step changed", "pipeline_id", m.pipelineID, "from", from, "to", to)
	if m.hooks.OnStepChange != nil {
		m.hooks.OnStepChange(ctx, &domain.StepEvent{EventBase: m.event(domain.EventStepChange), From: from, To: to})
	}
}

// Variables returns the processing variables applied for the active node.
func (m *Machine) Variables() []domain.Variable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Variable(nil), m.variables...)
}

// LoadParams fetches the processing variables of the active node.
// A result for a node that is no longer active is dropped and applied is false.
func (m *Machine) LoadParams(ctx context.Context) (applied bool, err error) {
	if m.params == nil {
		return false, errors.New("no param fetcher configured")
	}

	m.mu.Lock()
	if m.datasource == nil {
		m.mu.Unlock()
		return false, domain.ErrNoDatasource
	}
	nodeID := m.datasource.NodeID
	m.mu.Unlock()

	m.fetching.Add(1)
	params, err := m.params.FetchProcessingParams(ctx, m.pipelineID, nodeID)
	m.fetching.Add(-1)
	if err != nil {
		return false, fmt.Errorf("failed to fetch processing params for %s: %w", nodeID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.datasource == nil || m.datasource.NodeID != nodeID {
		active := ""
		if m.datasource != nil {
			active = m.datasource.NodeID
		}
		m.logger.Debug("stale processing params dropped", "pipeline_id", m.pipelineID, "requested", nodeID, "active", active)
		if m.hooks.OnStaleResponse != nil {
			m.hooks.OnStaleResponse(ctx, &domain.StaleEvent{
				EventBase:       m.event(domain.EventStaleResponse),
				RequestedNodeID: nodeID,
				ActiveNodeID:    active,
			})
		}
		return false, nil
	}

	if params != nil {
		m.variables = append([]domain.Variable(nil), params.Variables...)
	} else {
		m.variables = nil
	}
	m.paramsNodeID = nodeID
	return true, nil
}

// Process validates inputs, builds the run request and dispatches it.
// With no datasource selected it does nothing and returns an empty run id.
// Validation failures notify the first violation and return an error wrapping
// domain.ErrValidation.
func (m *Machine) Process(ctx context.Context, inputs map[string]any) (string, error) {
	if m.dispatcher == nil {
		return "", ErrNoDispatcher
	}

	m.mu.Lock()
	if m.status == domain.StatusDispatched {
		m.mu.Unlock()
		return "", domain.ErrAlreadyDispatched
	}
	if m.step != domain.StepProcessAndSubmit {
		m.mu.Unlock()
		return "", domain.ErrWrongStep
	}
	if m.datasource == nil {
		m.mu.Unlock()
		m.logger.Debug("process ignored without datasource", "pipeline_id", m.pipelineID)
		return "", nil
	}
	needParams := m.params != nil && m.paramsNodeID != m.datasource.NodeID
	m.mu.Unlock()

	if needParams {
		if _, err := m.LoadParams(ctx); err != nil {
			return "", err
		}
	}

	if !m.running.CompareAndSwap(false, true) {
		return "", ErrDispatchInFlight
	}
	defer m.running.Store(false)

	m.mu.Lock()
	if m.datasource == nil {
		m.mu.Unlock()
		return "", nil
	}
	ds := *m.datasource
	vars := m.variables

	if err := validation.Check(vars, inputs); err != nil {
		m.mu.Unlock()
		if n, ok := validation.FirstNotification(validation.Violations(err)); ok {
			m.notify(ctx, n)
		}
		return "", err
	}

	req := domain.RunRequest{
		Inputs:             validation.ApplyDefaults(vars, inputs),
		StartNodeID:        ds.NodeID,
		DatasourceType:     ds.Kind,
		DatasourceInfoList: handlerFor(ds.Kind).build(m.store.Snapshot()),
		IsPreview:          m.isPreview,
	}
	m.inputs = domain.CloneMap(req.Inputs)
	m.mu.Unlock()

	start := time.Now()
	runID, err := m.dispatcher.HandleRun(ctx, req.Clone())

	ev := &domain.DispatchEvent{
		EventBase: m.event(domain.EventDispatch),
		NodeID:    ds.NodeID,
		Kind:      ds.Kind,
		RunID:     runID,
		Duration:  time.Since(start),
		Err:       err,
	}
	if m.hooks.OnDispatch != nil {
		m.hooks.OnDispatch(ctx, ev)
	}
	if err != nil {
		m.logger.Error("run dispatch failed", "pipeline_id", m.pipelineID, "node_id", ds.NodeID, "err", err)
		return "", fmt.Errorf("failed to dispatch run: %w", err)
	}

	m.mu.Lock()
	m.status = domain.StatusDispatched
	m.runID = runID
	m.mu.Unlock()

	m.logger.Info("run dispatched", "pipeline_id", m.pipelineID, "node_id", ds.NodeID, "kind", ds.Kind, "run_id", runID)
	return runID, nil
}

// Snapshot returns the persistable state of the machine.
func (m *Machine) Snapshot() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &domain.Session{
		ID:         m.sessionID,
		PipelineID: m.pipelineID,
		Step:       m.step,
		Sources:    m.store.Snapshot(),
		Status:     m.status,
		RunID:      m.runID,
		UpdatedAt:  time.Now(),
	}
	if m.datasource != nil {
		ds := *m.datasource
		s.Datasource = &ds
	}
	s.Inputs = domain.CloneMap(m.inputs)
	return s
}

// Restore replaces the machine state with a persisted session.
// Processing variables are not persisted; they are kept only when the
// restored datasource is the node they were fetched for.
func (m *Machine) Restore(s *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restore(s)
}

func (m *Machine) restore(s *domain.Session) {
	if s == nil {
		return
	}
	c := s.Clone()
	if c.ID != "" {
		m.sessionID = c.ID
	}
	if c.PipelineID != "" {
		m.pipelineID = c.PipelineID
	}
	m.step = c.Step
	if m.step != domain.StepProcessAndSubmit {
		m.step = domain.StepSelectAndConfigure
	}
	m.datasource = c.Datasource
	m.store.Restore(c.Sources)
	m.inputs = c.Inputs
	m.status = c.Status
	if m.status == "" {
		m.status = domain.StatusPreparing
	}
	m.runID = c.RunID
	if c.Datasource == nil || c.Datasource.NodeID != m.paramsNodeID {
		m.variables = nil
		m.paramsNodeID = ""
	}
}

func (m *Machine) notify(ctx context.Context, n domain.Notification) {
	if m.notifier != nil {
		m.notifier.Notify(ctx, n)
	}
}

func (m *Machine) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, PipelineID: m.pipelineID}
}
