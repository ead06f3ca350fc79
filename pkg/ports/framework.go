package ports

import (
	"context"

	"github.com/aretw0/charter/pkg/domain"
)

// FrameworkLoader supplies the parsed governance framework.
// Validation is not the loader's concern; the governance package compiles and validates.
type FrameworkLoader interface {
	Load(ctx context.Context) (*domain.Framework, error)
}

// CredentialQuery describes a credential a participant must hold.
// SchemaID or CredDefID is set; IssuerID optionally restricts the issuer.
type CredentialQuery struct {
	SchemaID  string
	CredDefID string
	IssuerID  string
}

// CredentialVerifier answers whether a participant holds a credential.
// It backs the schema and cred_def atoms of permission predicates.
type CredentialVerifier interface {
	HoldsCredential(ctx context.Context, participantID string, query CredentialQuery) (bool, error)
}
