package ports

import (
	"context"

	"github.com/aretw0/charter/pkg/domain"
)

// Invocation is the input of a single protocol execution.
type Invocation struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`

	Action            domain.Action `json:"action"`
	ActingParticipant string        `json:"participant"`
	ActingRole        domain.Role   `json:"role"`

	// Counterparty is the participant bound to the leaf's target role, if any.
	Counterparty     string      `json:"counterparty,omitempty"`
	CounterpartyRole domain.Role `json:"counterparty_role,omitempty"`

	// PresentationRef is passed through unchanged (hashlink, URL or registry key).
	PresentationRef string `json:"presentation_ref,omitempty"`
}

// Execution is the output of a protocol execution.
// Artifacts (credential, presentation, connection record) are opaque to the interpreter.
type Execution struct {
	Outcome   domain.Outcome
	Artifacts map[string]any
}

// ProtocolExecutor runs an action over the secure-messaging transport.
// Implementations must honour ctx cancellation; the engine applies per-action deadlines.
type ProtocolExecutor interface {
	Execute(ctx context.Context, inv Invocation) (Execution, error)
}

// ExecutorFunc adapts a function to ProtocolExecutor.
type ExecutorFunc func(ctx context.Context, inv Invocation) (Execution, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, inv Invocation) (Execution, error) {
	return f(ctx, inv)
}
