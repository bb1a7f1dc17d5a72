package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Metrics holds the Prometheus collectors of the preparation flow.
type Metrics struct {
	Switches    *prometheus.CounterVec
	Credentials *prometheus.CounterVec
	Steps       *prometheus.CounterVec
	Dispatches  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Stale       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeprep_datasource_switches_total",
			Help: "Datasource switches, by target kind.",
		}, []string{"kind"}),
		Credentials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeprep_credential_changes_total",
			Help: "Credential changes, by datasource kind.",
		}, []string{"kind"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeprep_step_changes_total",
			Help: "Step transitions, by target step.",
		}, []string{"to"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeprep_dispatches_total",
			Help: "Run dispatches, by datasource kind and outcome.",
		}, []string{"kind", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeprep_dispatch_duration_seconds",
			Help:    "Time spent handing a run request to the dispatcher.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		Stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeprep_stale_responses_total",
			Help: "Async results dropped because the datasource changed.",
		}),
	}
	reg.MustRegister(m.Switches, m.Credentials, m.Steps, m.Dispatches, m.Duration, m.Stale)
	return m
}

// Hooks records every event on the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnDatasourceSwitch: func(ctx context.Context, e *domain.SwitchEvent) {
			m.Switches.WithLabelValues(kindLabel(e.ToKind)).Inc()
		},
		OnCredentialChange: func(ctx context.Context, e *domain.CredentialEvent) {
			m.Credentials.WithLabelValues(kindLabel(e.Kind)).Inc()
		},
		OnStepChange: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(stepLabel(e.To)).Inc()
		},
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			kind := kindLabel(e.Kind)
			m.Dispatches.WithLabelValues(kind, outcome).Inc()
			m.Duration.WithLabelValues(kind).Observe(e.Duration.Seconds())
		},
		OnStaleResponse: func(ctx context.Context, e *domain.StaleEvent) {
			m.Stale.Inc()
		},
	}
}

// LoggingHooks writes one structured log line per event.
func LoggingHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnDatasourceSwitch: func(ctx context.Context, e *domain.SwitchEvent) {
			logger.InfoContext(ctx, "datasource_switch",
				"pipeline_id", e.PipelineID,
				"from", e.FromNodeID,
				"to", e.ToNodeID,
				"kind", e.ToKind,
				"cleared", e.Cleared,
			)
		},
		OnCredentialChange: func(ctx context.Context, e *domain.CredentialEvent) {
			logger.InfoContext(ctx, "credential_change", "pipeline_id", e.PipelineID, "node_id", e.NodeID, "kind", e.Kind)
		},
		OnStepChange: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step_change", "pipeline_id", e.PipelineID, "from", e.From, "to", e.To)
		},
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "dispatch_failed", "pipeline_id", e.PipelineID, "node_id", e.NodeID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "dispatch", "pipeline_id", e.PipelineID, "node_id", e.NodeID, "run_id", e.RunID, "duration", e.Duration)
		},
		OnStaleResponse: func(ctx context.Context, e *domain.StaleEvent) {
			logger.DebugContext(ctx, "stale_response", "pipeline_id", e.PipelineID, "requested", e.RequestedNodeID, "active", e.ActiveNodeID)
		},
	}
}

func kindLabel(k domain.DatasourceKind) string {
	if k.Known() {
		return string(k)
	}
	return "unknown"
}

func stepLabel(s domain.Step) string {
	switch s {
	case domain.StepSelectAndConfigure:
		return "data_source"
	case domain.StepProcessAndSubmit:
		return "document_processing"
	default:
		return "unknown"
	}
}
