package memory

import (
	"context"
	"sync"

	"github.com/aretw0/charter/pkg/ports"
)

// Credential is a credential held by a participant, as far as predicates care.
type Credential struct {
	SchemaID  string
	CredDefID string
	IssuerID  string
}

// Wallet implements ports.CredentialVerifier over an in-memory list of held credentials.
// Safe for concurrent use.
type Wallet struct {
	mu   sync.RWMutex
	held map[string][]Credential
}

// NewWallet creates an empty wallet.
func NewWallet() *Wallet {
	return &Wallet{held: make(map[string][]Credential)}
}

// Add records that the participant holds the credential.
func (w *Wallet) Add(participantID string, c Credential) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held[participantID] = append(w.held[participantID], c)
}

// HoldsCredential reports whether any held credential satisfies every field set in the query.
func (w *Wallet) HoldsCredential(ctx context.Context, participantID string, q ports.CredentialQuery) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, c := range w.held[participantID] {
		if q.SchemaID != "" && c.SchemaID != q.SchemaID {
			continue
		}
		if q.CredDefID != "" && c.CredDefID != q.CredDefID {
			continue
		}
		if q.IssuerID != "" && c.IssuerID != q.IssuerID {
			continue
		}
		return true, nil
	}
	return false, nil
}
