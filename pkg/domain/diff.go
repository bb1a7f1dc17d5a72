package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Step       *Step          `json:"step,omitempty"`
	Status     *SessionStatus `json:"status,omitempty"`
	Datasource *Datasource    `json:"datasource,omitempty"`

	// CredentialID is set when the credential changed, "" included.
	CredentialID *string `json:"credential_id,omitempty"`

	// Sources carries the whole selection when any part of it changed.
	Sources *SourceState `json:"sources,omitempty"`

	// Inputs contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Inputs map[string]any `json:"inputs,omitempty"`

	RunID *string `json:"run_id,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newSession.ID}

	if oldSession == nil || oldSession.Step != newSession.Step {
		diff.Step = &newSession.Step
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		diff.Status = &newSession.Status
	}
	if newSession.Datasource != nil && (oldSession == nil || !reflect.DeepEqual(oldSession.Datasource, newSession.Datasource)) {
		diff.Datasource = newSession.Datasource
	}
	if oldSession == nil || oldSession.Sources.CurrentCredentialID != newSession.Sources.CurrentCredentialID {
		diff.CredentialID = &newSession.Sources.CurrentCredentialID
	}
	if oldSession == nil || !reflect.DeepEqual(oldSession.Sources, newSession.Sources) {
		diff.Sources = &newSession.Sources
	}
	if newSession.RunID != "" && (oldSession == nil || oldSession.RunID != newSession.RunID) {
		diff.RunID = &newSession.RunID
	}

	diff.Inputs = diffInputs(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffInputs(old, new *Session) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Inputs {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Inputs {
		oldVal, exists := old.Inputs[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old.Inputs {
		if _, exists := new.Inputs[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Step == nil &&
		d.Status == nil &&
		d.Datasource == nil &&
		d.CredentialID == nil &&
		d.Sources == nil &&
		len(d.Inputs) == 0 &&
		d.RunID == nil
}
