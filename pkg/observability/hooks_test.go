package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnDatasourceSwitch(ctx, &domain.SwitchEvent{ToKind: domain.KindLocalFile})
	hooks.OnDatasourceSwitch(ctx, &domain.SwitchEvent{ToKind: "ftp"})
	hooks.OnCredentialChange(ctx, &domain.CredentialEvent{Kind: domain.KindOnlineDrive})
	hooks.OnStepChange(ctx, &domain.StepEvent{From: domain.StepSelectAndConfigure, To: domain.StepProcessAndSubmit})
	hooks.OnDispatch(ctx, &domain.DispatchEvent{Kind: domain.KindLocalFile, Duration: 50 * time.Millisecond})
	hooks.OnDispatch(ctx, &domain.DispatchEvent{Kind: domain.KindLocalFile, Err: errors.New("boom")})
	hooks.OnStaleResponse(ctx, &domain.StaleEvent{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Switches.WithLabelValues("local_file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Switches.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Credentials.WithLabelValues("online_drive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("document_processing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("local_file", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("local_file", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stale))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LoggingHooks(logger)

	hooks.OnDatasourceSwitch(context.Background(), &domain.SwitchEvent{ToNodeID: "drive", ToKind: domain.KindOnlineDrive})
	hooks.OnDispatch(context.Background(), &domain.DispatchEvent{NodeID: "drive", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, `"msg":"datasource_switch"`)
	assert.Contains(t, out, `"to":"drive"`)
	assert.Contains(t, out, `"msg":"dispatch_failed"`)
	assert.Contains(t, out, `"err":"boom"`)
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.Hooks{OnStepChange: func(context.Context, *domain.StepEvent) { calls = append(calls, "a") }}
	b := domain.Hooks{
		OnStepChange:    func(context.Context, *domain.StepEvent) { calls = append(calls, "b") },
		OnStaleResponse: func(context.Context, *domain.StaleEvent) { calls = append(calls, "stale") },
	}

	hooks := observability.Combine(a, b)
	hooks.OnStepChange(context.Background(), &domain.StepEvent{})
	hooks.OnStaleResponse(context.Background(), &domain.StaleEvent{})
	hooks.OnDispatch(context.Background(), &domain.DispatchEvent{})

	assert.Equal(t, []string{"a", "b", "stale"}, calls)
}
