package observability

import (
	"context"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Combine fans every event out to each hook set in order.
// Nil callbacks are skipped.
func Combine(sets ...domain.Hooks) domain.Hooks {
	return domain.Hooks{
		OnDatasourceSwitch: func(ctx context.Context, e *domain.SwitchEvent) {
			for _, h := range sets {
				if h.OnDatasourceSwitch != nil {
					h.OnDatasourceSwitch(ctx, e)
				}
			}
		},
		OnCredentialChange: func(ctx context.Context, e *domain.CredentialEvent) {
			for _, h := range sets {
				if h.OnCredentialChange != nil {
					h.OnCredentialChange(ctx, e)
				}
			}
		},
		OnStepChange: func(ctx context.Context, e *domain.StepEvent) {
			for _, h := range sets {
				if h.OnStepChange != nil {
					h.OnStepChange(ctx, e)
				}
			}
		},
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			for _, h := range sets {
				if h.OnDispatch != nil {
					h.OnDispatch(ctx, e)
				}
			}
		},
		OnStaleResponse: func(ctx context.Context, e *domain.StaleEvent) {
			for _, h := range sets {
				if h.OnStaleResponse != nil {
					h.OnStaleResponse(ctx, e)
				}
			}
		},
	}
}
