package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDatasourceSwitch EventType = "datasource_switch"
	EventCredentialChange EventType = "credential_change"
	EventStepChange       EventType = "step_change"
	EventDispatch         EventType = "dispatch"
	EventStaleResponse    EventType = "stale_response"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	PipelineID string    `json:"pipeline_id"`
}

// SwitchEvent is emitted when the active datasource changes.
type SwitchEvent struct {
	EventBase
	FromNodeID string         `json:"from_node_id,omitempty"`
	ToNodeID   string         `json:"to_node_id"`
	FromKind   DatasourceKind `json:"from_kind,omitempty"`
	ToKind     DatasourceKind `json:"to_kind"`
	Cleared    bool           `json:"cleared"`
}

// CredentialEvent is emitted when the credential of the active datasource changes.
type CredentialEvent struct {
	EventBase
	NodeID       string         `json:"node_id"`
	Kind         DatasourceKind `json:"kind"`
	CredentialID string         `json:"credential_id"`
}

// StepEvent is emitted on step transitions.
type StepEvent struct {
	EventBase
	From Step `json:"from"`
	To   Step `json:"to"`
}

// DispatchEvent is emitted after a run request has been handed off.
type DispatchEvent struct {
	EventBase
	NodeID   string         `json:"node_id"`
	Kind     DatasourceKind `json:"kind"`
	RunID    string         `json:"run_id,omitempty"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`
}

// StaleEvent is emitted when an async result is dropped because the datasource changed.
type StaleEvent struct {
	EventBase
	RequestedNodeID string `json:"requested_node_id"`
	ActiveNodeID    string `json:"active_node_id"`
}

// Hooks defines callbacks for preparation observability.
type Hooks struct {
	OnDatasourceSwitch func(context.Context, *SwitchEvent)
	OnCredentialChange func(context.Context, *CredentialEvent)
	OnStepChange       func(context.Context, *StepEvent)
	OnDispatch         func(context.Context, *DispatchEvent)
	OnStaleResponse    func(context.Context, *StaleEvent)
}
