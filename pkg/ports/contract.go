package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "pipeline-1")
		session.Datasource = &domain.Datasource{
			NodeID:   "node-1",
			Kind:     domain.KindOnlineDrive,
			NodeData: domain.NodeConfig{Type: domain.NodeTypeDatasource, Title: "Drive", ProviderType: domain.KindOnlineDrive},
		}
		session.Sources.Bucket = "bucket"
		session.Sources.SelectedFileIDs = []string{"f1"}
		session.Sources.CurrentCredentialID = "cred"
		session.Inputs = map[string]any{"foo": "bar", "count": 42}

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.PipelineID, loaded.PipelineID)
		assert.Equal(t, session.Step, loaded.Step)
		require.NotNil(t, loaded.Datasource)
		assert.Equal(t, "node-1", loaded.Datasource.NodeID)
		assert.Equal(t, domain.KindOnlineDrive, loaded.Datasource.Kind)
		assert.Equal(t, []string{"f1"}, loaded.Sources.SelectedFileIDs)
		assert.Equal(t, "cred", loaded.Sources.CurrentCredentialID)
		assert.Equal(t, -1, loaded.Sources.PreviewIndex)
		assert.Equal(t, "bar", loaded.Inputs["foo"])
		// JSON backed stores turn ints into float64, so only presence is checked.
		assert.NotNil(t, loaded.Inputs["count"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		session := domain.NewSession(sessionID, "pipeline-1")
		require.NoError(t, store.Save(ctx, sessionID, session))

		session.Step = domain.StepProcessAndSubmit
		session.Status = domain.StatusDispatched
		session.RunID = "run-1"
		require.NoError(t, store.Save(ctx, sessionID, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepProcessAndSubmit, loaded.Step)
		assert.Equal(t, domain.StatusDispatched, loaded.Status)
		assert.Equal(t, "run-1", loaded.RunID)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSession(sessionID, "pipeline-1"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, "pipeline-1"))
		_ = store.Save(ctx, id2, domain.NewSession(id2, "pipeline-1"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
