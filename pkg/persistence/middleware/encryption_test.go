package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/persistence/middleware"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sampleSession() *domain.Session {
	s := domain.NewSession("s-1", "aruba", "health-verify-identity", map[domain.Role]string{
		"holder":        "did:example:traveler",
		"health_issuer": "did:sov:FK8a5myo4jhh3yDfn4WtbS",
	})
	s.Connections = []domain.Connection{{From: "holder", To: "health_issuer"}}
	s.Records = []domain.ActionRecord{{
		Step:      1,
		State:     "connect-to-health-issuer",
		Action:    "connect",
		Outcome:   domain.OutcomeSuccess,
		Artifacts: map[string]any{"connection_id": "c-1"},
	}}
	return s
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	original := sampleSession()
	require.NoError(t, secure.Save(ctx, original))

	stored, err := underlying.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.Bindings, "bindings must only exist inside the envelope")
	assert.Empty(t, stored.Records)
	assert.Empty(t, stored.CurrentState)
	assert.Equal(t, domain.StatusActive, stored.Status)

	loaded, err := secure.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, original.Bindings, loaded.Bindings)
	assert.Equal(t, "health-verify-identity", loaded.CurrentState)
	assert.True(t, loaded.HasConnection("holder", "health_issuer"))
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	require.NoError(t, mwOld(underlying).Save(ctx, sampleSession()))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	loaded, err := mwNew(underlying).Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "health-verify-identity", loaded.CurrentState)

	mwOther, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mwOther(underlying).Load(ctx, "s-1")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), sampleSession()))
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	_, err = mw(underlying).Load(context.Background(), "s-1")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}
