package pipeprep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/adapters/memory"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/ports"
	"github.com/aretw0/pipeprep/pkg/preparation"
	"github.com/aretw0/pipeprep/pkg/preview"
	"github.com/aretw0/pipeprep/pkg/registry"
	"github.com/aretw0/pipeprep/pkg/session"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
)

// DefaultMachineCacheSize bounds the number of live preparations kept in memory.
const DefaultMachineCacheSize = 1024

// ErrNoUploader is returned by Upload when no FileUploader is configured.
var ErrNoUploader = errors.New("no file uploader configured")

// Listener receives session changes and notifications, e.g. to stream them to clients.
type Listener interface {
	SessionChanged(sessionID string, diff *domain.SessionDiff)
	Notified(sessionID string, n domain.Notification)
}

// View is a session snapshot together with the live flags of its preparation.
type View struct {
	Session   *domain.Session         `json:"session"`
	Ready     bool                    `json:"ready"`
	Fetching  bool                    `json:"fetching"`
	Running   bool                    `json:"running"`
	Steps     []domain.StepDescriptor `json:"steps"`
	Variables []domain.Variable       `json:"variables"`
}

// Service is the high-level entry point for pipeprep.
// It binds the datasource registry, session persistence and the preparation
// machine, and exposes session-scoped operations to the adapters.
type Service struct {
	pipelineID string
	registry   *registry.Registry
	sessions   *session.Manager
	machines   *lru.Cache[string, *preparation.Machine]

	params     ports.ParamFetcher
	dispatcher ports.RunDispatcher
	notifier   ports.Notifier
	uploader   ports.FileUploader
	listener   Listener
	hooks      domain.Hooks
	logger     *slog.Logger
	formatter  *preview.Formatter

	store     ports.SessionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	cacheSize int
	preview   bool
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(s *Service) { s.store = store }
}

// WithLocker enables distributed locking of sessions across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Service) { s.locker = locker }
}

// WithLockTTL bounds how long a distributed session lock is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) { s.lockTTL = ttl }
}

// WithParamFetcher sets the source of processing variables.
func WithParamFetcher(f ports.ParamFetcher) Option {
	return func(s *Service) { s.params = f }
}

// WithDispatcher sets the run dispatcher.
func WithDispatcher(d ports.RunDispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithNotifier sets the user-facing notifier.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithUploader sets the local file uploader.
func WithUploader(u ports.FileUploader) Option {
	return func(s *Service) { s.uploader = u }
}

// WithListener registers a listener for session diffs and notifications.
func WithListener(l Listener) Option {
	return func(s *Service) { s.listener = l }
}

// WithHooks registers observability hooks on every preparation.
func WithHooks(h domain.Hooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPreviewLimit sets how many preview items are shown. Zero keeps the default.
func WithPreviewLimit(limit int) Option {
	return func(s *Service) { s.formatter = preview.NewFormatter(limit) }
}

// WithMachineCacheSize bounds the live preparation cache.
func WithMachineCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithPreview marks dispatched runs as previews. Defaults to true.
func WithPreview(preview bool) Option {
	return func(s *Service) { s.preview = preview }
}

// New creates a Service for the pipeline whose graph is served by source.
func New(pipelineID string, source ports.GraphSource, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, errors.New("graph source is required")
	}
	s := &Service{
		pipelineID: pipelineID,
		logger:     logging.NewNop(),
		formatter:  preview.NewFormatter(preview.DefaultLimit),
		cacheSize:  DefaultMachineCacheSize,
		preview:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("pipeline_id", pipelineID)

	if s.store == nil {
		s.store = memory.NewStore()
	}
	managerOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(s.locker))
	}
	if s.lockTTL > 0 {
		managerOpts = append(managerOpts, session.WithLockTTL(s.lockTTL))
	}
	s.sessions = session.NewManager(s.store, managerOpts...)
	s.registry = registry.New(source, registry.WithLogger(s.logger))

	machines, err := lru.New[string, *preparation.Machine](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create machine cache: %w", err)
	}
	s.machines = machines
	return s, nil
}

// PipelineID returns the pipeline the service prepares runs for.
func (s *Service) PipelineID() string { return s.pipelineID }

// Sessions exposes the session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Datasources lists the selectable datasources of the pipeline graph.
func (s *Service) Datasources(ctx context.Context) ([]domain.DatasourceOption, error) {
	return s.registry.Options(ctx)
}

// Create starts a new preparation with the first datasource auto-selected.
func (s *Service) Create(ctx context.Context) (*View, error) {
	options, err := s.registry.Options(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	m := s.newMachine(id, options, domain.NewSession(id, s.pipelineID))
	snap := m.Snapshot()
	if err := s.sessions.Save(ctx, id, snap); err != nil {
		return nil, err
	}
	s.machines.Add(id, m)
	s.changed(id, nil, snap)
	s.logger.Info("session created", "session_id", id)
	return s.view(snap, m), nil
}

// Get returns the current view of a session. It does not wait for in-flight operations.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m, ok := s.machines.Get(id); ok {
		return s.view(sess, m), nil
	}
	return s.view(sess, nil), nil
}

// Delete removes a session and its live preparation.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.machines.Remove(id)
	return s.sessions.Delete(ctx, id)
}

// List returns the ids of all stored sessions.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// Do runs fn against the preparation of session id under the session lock and
// persists the result. Nothing is persisted if fn fails.
func (s *Service) Do(ctx context.Context, id string, fn func(ctx context.Context, m *preparation.Machine) error) (*View, error) {
	var live *preparation.Machine
	before, after, err := s.sessions.Update(ctx, id, func(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
		m, err := s.machine(ctx, sess)
		if err != nil {
			return nil, err
		}
		live = m
		if err := fn(ctx, m); err != nil {
			// The live machine may be ahead of the store now; rebuild it next time.
			s.machines.Remove(id)
			return nil, err
		}
		return m.Snapshot(), nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(id, before, after)
	return s.view(after, live), nil
}

// SelectDatasource switches the active datasource of a session.
func (s *Service) SelectDatasource(ctx context.Context, id, nodeID string) (*View, error) {
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		return m.SelectNode(ctx, nodeID)
	})
}

// ChangeCredential changes the credential of the active datasource.
func (s *Service) ChangeCredential(ctx context.Context, id, credentialID string) (*View, error) {
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		_, err := m.ChangeCredential(ctx, credentialID)
		return err
	})
}

// UpdateSources applies a partial selection update.
func (s *Service) UpdateSources(ctx context.Context, id string, patch sourcestore.Patch) (*View, error) {
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		if m.Step() != domain.StepSelectAndConfigure {
			return domain.ErrWrongStep
		}
		m.Sources().Apply(patch)
		return nil
	})
}

// Upload stores a local file through the uploader and appends it to the file list.
func (s *Service) Upload(ctx context.Context, id, name, mimeType string, size int64, r io.Reader) (*View, error) {
	if s.uploader == nil {
		return nil, ErrNoUploader
	}
	info, err := s.uploader.Upload(ctx, name, mimeType, size, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		if m.Step() != domain.StepSelectAndConfigure {
			return domain.ErrWrongStep
		}
		m.Sources().AddLocalFile(domain.LocalFile{File: info})
		return nil
	})
}

// Next advances to processing when the selection is ready.
func (s *Service) Next(ctx context.Context, id string) (*View, error) {
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		if !m.Next(ctx) {
			return domain.ErrNotReady
		}
		return nil
	})
}

// Back returns to datasource selection.
func (s *Service) Back(ctx context.Context, id string) (*View, error) {
	return s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		if !m.Back(ctx) {
			return domain.ErrWrongStep
		}
		return nil
	})
}

// LoadParams fetches the processing variables of the active datasource.
// The fetch runs outside the session lock; a result that arrives after the
// datasource changed is dropped and applied is false.
func (s *Service) LoadParams(ctx context.Context, id string) (vars []domain.Variable, applied bool, err error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	m, err := s.machine(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	applied, err = m.LoadParams(ctx)
	if err != nil {
		return nil, false, err
	}
	return m.Variables(), applied, nil
}

// Process validates inputs and dispatches the run. It returns the run id.
func (s *Service) Process(ctx context.Context, id string, inputs map[string]any) (string, error) {
	var runID string
	_, err := s.Do(ctx, id, func(ctx context.Context, m *preparation.Machine) error {
		var err error
		runID, err = m.Process(ctx, inputs)
		return err
	})
	return runID, err
}

// Preview formats raw run outputs into bounded preview chunks.
func (s *Service) Preview(outputs *domain.PreviewOutputs, limit int) (domain.PreviewChunks, error) {
	if limit > 0 {
		return preview.Format(outputs, limit)
	}
	return s.formatter.Format(outputs)
}

// PreviewLimit returns the configured preview limit.
func (s *Service) PreviewLimit() int { return s.formatter.Limit() }

// machine returns the live preparation of sess, restoring it when it is not cached.
func (s *Service) machine(ctx context.Context, sess *domain.Session) (*preparation.Machine, error) {
	options, err := s.registry.Options(ctx)
	if err != nil {
		return nil, err
	}
	if m, ok := s.machines.Get(sess.ID); ok {
		m.SetOptions(options)
		m.Restore(sess)
		return m, nil
	}
	m := s.newMachine(sess.ID, options, sess)
	s.machines.Add(sess.ID, m)
	return m, nil
}

func (s *Service) newMachine(id string, options []domain.DatasourceOption, sess *domain.Session) *preparation.Machine {
	opts := []preparation.Option{
		preparation.WithSessionID(id),
		preparation.WithSession(sess),
		preparation.WithHooks(s.hooks),
		preparation.WithLogger(s.logger.With("session_id", id)),
		preparation.WithPreview(s.preview),
		preparation.WithNotifier(ports.NotifierFunc(func(ctx context.Context, n domain.Notification) {
			if s.notifier != nil {
				s.notifier.Notify(ctx, n)
			}
			if s.listener != nil {
				s.listener.Notified(id, n)
			}
		})),
	}
	if s.params != nil {
		opts = append(opts, preparation.WithParamFetcher(s.params))
	}
	if s.dispatcher != nil {
		opts = append(opts, preparation.WithDispatcher(s.dispatcher))
	}
	return preparation.New(s.pipelineID, options, opts...)
}

func (s *Service) changed(id string, before, after *domain.Session) {
	if s.listener == nil {
		return
	}
	if diff := domain.Diff(before, after); diff != nil {
		s.listener.SessionChanged(id, diff)
	}
}

func (s *Service) view(sess *domain.Session, m *preparation.Machine) *View {
	v := &View{
		Session: sess,
		Steps:   domain.Steps(),
	}
	if sess.Datasource != nil {
		v.Ready = sourcestore.Ready(sess.Sources, sess.Datasource.Kind)
	}
	if m != nil {
		v.Fetching = m.Fetching()
		v.Running = m.Running()
		v.Variables = m.Variables()
	}
	return v
}
