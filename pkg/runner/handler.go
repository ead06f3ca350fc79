package runner

import (
	"context"
	"time"

	"github.com/aretw0/charter/pkg/domain"
)

// Prompt is what the operator sees for one protocol execution.
type Prompt struct {
	SessionID              string      `json:"session_id"`
	State                  string      `json:"state"`
	Action                 string      `json:"action"`
	Protocol               string      `json:"protocol"`
	Participant            string      `json:"participant"`
	Role                   domain.Role `json:"role"`
	Counterparty           string      `json:"counterparty,omitempty"`
	CounterpartyRole       domain.Role `json:"counterparty_role,omitempty"`
	PresentationDefinition string      `json:"presentation_definition,omitempty"`
	Deadline               *time.Time  `json:"deadline,omitempty"`
}

// Verdict is the operator's answer.
type Verdict struct {
	Outcome   domain.Outcome `json:"outcome"`
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// IOHandler defines the strategy for interacting with the operator.
// This allows switching between Text (CLI) and JSON (Structured) modes.
type IOHandler interface {
	// Ask presents the prompt and blocks until a verdict is read or ctx is done.
	Ask(ctx context.Context, p Prompt) (Verdict, error)
}
