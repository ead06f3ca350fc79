package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "contract", "start", map[domain.Role]string{"holder": "did:example:alice"})
		session.Connections = append(session.Connections, domain.Connection{From: "holder", To: "issuer"})
		session.Records = append(session.Records, domain.ActionRecord{
			Step:    1,
			State:   "start",
			Action:  "connect",
			Outcome: domain.OutcomeSuccess,
		})

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.CurrentState, loaded.CurrentState)
		assert.Equal(t, "did:example:alice", loaded.Bindings["holder"])
		assert.True(t, loaded.HasConnection("issuer", "holder"))
		assert.True(t, loaded.Invoked("connect"))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Bindings["holder"] = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "did:example:alice", again.Bindings["holder"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID, "contract", "start", nil))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, "contract", "start", nil))
		_ = store.Save(ctx, domain.NewSession(id2, "contract", "start", nil))

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
