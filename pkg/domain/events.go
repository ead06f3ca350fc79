package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter   EventType = "state_enter"
	EventStateLeave   EventType = "state_leave"
	EventActionCall   EventType = "action_call"
	EventActionReturn EventType = "action_return"
	EventDecision     EventType = "decision"
	EventSessionEnd   EventType = "session_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// StateEvent represents entry into or exit from a flow state.
type StateEvent struct {
	EventBase
	State string `json:"state"`
	Role  Role   `json:"role"`
}

// ActionEvent represents a protocol execution.
type ActionEvent struct {
	EventBase
	State       string        `json:"state"`
	Action      string        `json:"action"`
	Participant string        `json:"participant"`
	Role        Role          `json:"role"`
	Outcome     Outcome       `json:"outcome,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	TimedOut    bool          `json:"timed_out,omitempty"`
}

// DecisionEvent carries an authorization verdict.
type DecisionEvent struct {
	EventBase
	Decision Decision `json:"decision"`
}

// SessionEvent reports the end of a session.
type SessionEvent struct {
	EventBase
	Status SessionStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for interpreter observability.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateLeave   func(context.Context, *StateEvent)
	OnActionCall   func(context.Context, *ActionEvent)
	OnActionReturn func(context.Context, *ActionEvent)
	OnDecision     func(context.Context, *DecisionEvent)
	OnSessionEnd   func(context.Context, *SessionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter:   chain(h.OnStateEnter, other.OnStateEnter),
		OnStateLeave:   chain(h.OnStateLeave, other.OnStateLeave),
		OnActionCall:   chain(h.OnActionCall, other.OnActionCall),
		OnActionReturn: chain(h.OnActionReturn, other.OnActionReturn),
		OnDecision:     chain(h.OnDecision, other.OnDecision),
		OnSessionEnd:   chain(h.OnSessionEnd, other.OnSessionEnd),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e T) {
		a(ctx, e)
		b(ctx, e)
	}
}
