package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	ds := &Datasource{NodeID: "n1", Kind: KindLocalFile, NodeData: NodeConfig{Type: NodeTypeDatasource, Title: "Upload"}}

	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		s := NewSession("sess-1", "pipe")
		s.Datasource = ds
		s.Inputs = map[string]any{"a": 1}

		diff := Diff(nil, s)
		require.NotNil(t, diff)
		assert.Equal(t, "sess-1", diff.SessionID)
		require.NotNil(t, diff.Step)
		assert.Equal(t, StepSelectAndConfigure, *diff.Step)
		require.NotNil(t, diff.Status)
		assert.Equal(t, StatusPreparing, *diff.Status)
		assert.Equal(t, ds, diff.Datasource)
		require.NotNil(t, diff.Sources)
		assert.Equal(t, map[string]any{"a": 1}, diff.Inputs)
		assert.Nil(t, diff.RunID)
	})

	t.Run("No Changes", func(t *testing.T) {
		s := NewSession("sess-1", "pipe")
		s.Datasource = ds
		assert.Nil(t, Diff(s, s.Clone()))
	})

	t.Run("Step And Credential", func(t *testing.T) {
		old := NewSession("sess-1", "pipe")
		next := old.Clone()
		next.Step = StepProcessAndSubmit
		next.Sources.CurrentCredentialID = "cred-1"

		diff := Diff(old, next)
		require.NotNil(t, diff)
		require.NotNil(t, diff.Step)
		assert.Equal(t, StepProcessAndSubmit, *diff.Step)
		require.NotNil(t, diff.CredentialID)
		assert.Equal(t, "cred-1", *diff.CredentialID)
		assert.Nil(t, diff.Status)
		assert.Nil(t, diff.Datasource)
	})

	t.Run("Input Deletion", func(t *testing.T) {
		old := NewSession("sess-1", "pipe")
		old.Inputs = map[string]any{"keep": "x", "drop": true}
		next := old.Clone()
		delete(next.Inputs, "drop")
		next.Inputs["keep"] = "y"

		diff := Diff(old, next)
		require.NotNil(t, diff)
		assert.Equal(t, map[string]any{"keep": "y", "drop": nil}, diff.Inputs)
	})

	t.Run("Dispatch", func(t *testing.T) {
		old := NewSession("sess-1", "pipe")
		next := old.Clone()
		next.Status = StatusDispatched
		next.RunID = "run-9"

		diff := Diff(old, next)
		require.NotNil(t, diff)
		require.NotNil(t, diff.RunID)
		assert.Equal(t, "run-9", *diff.RunID)

		raw, err := json.Marshal(diff)
		require.NoError(t, err)
		assert.JSONEq(t, `{"session_id":"sess-1","status":"dispatched","run_id":"run-9"}`, string(raw))
	})
}
