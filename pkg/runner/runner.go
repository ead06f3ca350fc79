package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
)

// Runner is a ports.ProtocolExecutor backed by a human (or scripted) operator.
type Runner struct {
	handler IOHandler
	logger  *slog.Logger
}

// Option configures the runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a runner that asks handler for every verdict.
func New(handler IOHandler, opts ...Option) *Runner {
	r := &Runner{
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute presents the invocation and waits for the operator.
// A deadline on ctx is shown in the prompt; when it passes, ctx.Err() is returned.
func (r *Runner) Execute(ctx context.Context, inv ports.Invocation) (ports.Execution, error) {
	p := Prompt{
		SessionID:              inv.SessionID,
		State:                  inv.State,
		Action:                 inv.Action.Name,
		Protocol:               inv.Action.Protocol,
		Participant:            inv.ActingParticipant,
		Role:                   inv.ActingRole,
		Counterparty:           inv.Counterparty,
		CounterpartyRole:       inv.CounterpartyRole,
		PresentationDefinition: inv.PresentationRef,
	}
	if deadline, ok := ctx.Deadline(); ok {
		p.Deadline = &deadline
	}

	v, err := r.handler.Ask(ctx, p)
	if ctx.Err() != nil {
		return ports.Execution{}, ctx.Err()
	}
	if err != nil {
		return ports.Execution{}, fmt.Errorf("operator did not answer '%s': %w", inv.Action.Name, err)
	}

	switch v.Outcome {
	case domain.OutcomeSuccess, domain.OutcomeFailure:
	default:
		r.logger.Warn("operator gave an unknown outcome, treating it as failure", "action", inv.Action.Name, "outcome", v.Outcome)
		v.Outcome = domain.OutcomeFailure
	}
	r.logger.Debug("operator verdict", "session_id", inv.SessionID, "action", inv.Action.Name, "outcome", v.Outcome)
	return ports.Execution{Outcome: v.Outcome, Artifacts: v.Artifacts}, nil
}
