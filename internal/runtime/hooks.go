package runtime

import (
	"context"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
)

func (e *Engine) base(t domain.EventType, sessionID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now().UTC(), Type: t, SessionID: sessionID}
}

func (e *Engine) emitStateEnter(ctx context.Context, sessionID string, state domain.FlowState) {
	if e.hooks.OnStateEnter != nil {
		e.hooks.OnStateEnter(ctx, &domain.StateEvent{
			EventBase: e.base(domain.EventStateEnter, sessionID),
			State:     state.Name,
			Role:      state.Role,
		})
	}
}

func (e *Engine) emitStateLeave(ctx context.Context, sessionID string, state domain.FlowState) {
	if e.hooks.OnStateLeave != nil {
		e.hooks.OnStateLeave(ctx, &domain.StateEvent{
			EventBase: e.base(domain.EventStateLeave, sessionID),
			State:     state.Name,
			Role:      state.Role,
		})
	}
}

func (e *Engine) emitActionCall(ctx context.Context, sessionID, state string, inv ports.Invocation) {
	if e.hooks.OnActionCall != nil {
		e.hooks.OnActionCall(ctx, &domain.ActionEvent{
			EventBase:   e.base(domain.EventActionCall, sessionID),
			State:       state,
			Action:      inv.Action.Name,
			Participant: inv.ActingParticipant,
			Role:        inv.ActingRole,
		})
	}
}

func (e *Engine) emitActionReturn(ctx context.Context, sessionID, state string, inv ports.Invocation, rec domain.ActionRecord) {
	if e.hooks.OnActionReturn != nil {
		e.hooks.OnActionReturn(ctx, &domain.ActionEvent{
			EventBase:   e.base(domain.EventActionReturn, sessionID),
			State:       state,
			Action:      inv.Action.Name,
			Participant: inv.ActingParticipant,
			Role:        inv.ActingRole,
			Outcome:     rec.Outcome,
			Duration:    rec.Duration,
			TimedOut:    rec.TimedOut,
		})
	}
}

func (e *Engine) emitDecision(ctx context.Context, sessionID string, d domain.Decision) {
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(ctx, &domain.DecisionEvent{
			EventBase: e.base(domain.EventDecision, sessionID),
			Decision:  d,
		})
	}
}

func (e *Engine) emitSessionEnd(ctx context.Context, session *domain.Session) {
	if e.hooks.OnSessionEnd != nil {
		e.hooks.OnSessionEnd(ctx, &domain.SessionEvent{
			EventBase: e.base(domain.EventSessionEnd, session.ID),
			Status:    session.Status,
			Reason:    session.Reason,
		})
	}
}
