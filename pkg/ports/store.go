package ports

import (
	"context"

	"github.com/aretw0/charter/pkg/domain"
)

// SessionStore defines the interface for persisting flow sessions.
// This allows a host to drive long-running flows across processes ("Stop & Resume").
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session for a given ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
