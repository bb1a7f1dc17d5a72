package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pipeprep/pkg/adapters/memory"
	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "(?i)token"})
	require.NoError(t, err)
	store := mw(underlying)

	session := domain.NewSession("s1", "p1")
	session.Inputs = map[string]any{
		"chunk_size":    512,
		"user_password": "secret123",
		"auth": map[string]any{
			"endpoint":  "https://example.com",
			"API_TOKEN": "abc",
		},
	}
	require.NoError(t, store.Save(ctx, "s1", session))

	assert.Equal(t, "secret123", session.Inputs["user_password"], "caller's session must stay intact")

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Masked, stored.Inputs["user_password"])
	assert.EqualValues(t, 512, stored.Inputs["chunk_size"])
	auth := stored.Inputs["auth"].(map[string]any)
	assert.Equal(t, middleware.Masked, auth["API_TOKEN"])
	assert.Equal(t, "https://example.com", auth["endpoint"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_EncryptsMaskedInputs(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	session := domain.NewSession("s1", "p1")
	session.Inputs = map[string]any{"secret": "x", "plain": "y"}
	require.NoError(t, store.Save(ctx, "s1", session))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Masked, loaded.Inputs["secret"])
	assert.Equal(t, "y", loaded.Inputs["plain"])
}
