package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminated is returned when advancing a completed or aborted session.
	ErrSessionTerminated = errors.New("session is terminated")

	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("invalid governance framework")

	// ErrUnauthorized matches every UnauthorizedError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPreconditionNotMet matches every PreconditionError.
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrUnknownAction matches every UnknownActionError.
	ErrUnknownAction = errors.New("unknown action")

	// ErrAmbiguousPresentationDefinition matches every AmbiguousPresentationDefinitionError.
	ErrAmbiguousPresentationDefinition = errors.New("ambiguous presentation definition")

	// ErrProtocolTimeout matches every ProtocolTimeoutError.
	ErrProtocolTimeout = errors.New("protocol execution timed out")

	// ErrUnknownFlowState is returned when a session points at a state the framework does not declare.
	ErrUnknownFlowState = errors.New("unknown flow state")
)

// ValidationError lists everything wrong with a framework document. It is fatal at load time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Issues), strings.Join(e.Issues, "\n- "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnauthorizedKind distinguishes a rejected flow entry from a rejected step.
type UnauthorizedKind string

const (
	UnauthorizedFlowEntry UnauthorizedKind = "flow_entry"
	UnauthorizedAction    UnauthorizedKind = "action"
)

// UnauthorizedError is returned when privilege evaluation denies a flow entry or an action.
type UnauthorizedError struct {
	Kind      UnauthorizedKind
	State     string
	Decisions []Decision

	// Records lists the protocol executions that already ran in the refused step.
	// Only a flow_entry refusal carries them; the session itself is left untouched.
	Records []ActionRecord
}

func (e *UnauthorizedError) Error() string {
	parts := make([]string, 0, len(e.Decisions))
	for _, d := range e.Decisions {
		if !d.Allowed {
			parts = append(parts, d.Explain())
		}
	}
	return fmt.Sprintf("unauthorized %s at state '%s': %s", e.Kind, e.State, strings.Join(parts, " | "))
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// PreconditionError is returned when a flow state's condition does not hold.
type PreconditionError struct {
	State     string
	Condition Condition
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("state '%s' precondition %s(%s) not met: %s", e.State, e.Condition.Type, e.Condition.Target, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionNotMet }

// UnknownActionError is returned by catalog lookups for undeclared actions.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action '%s' is not declared", e.Action)
}

func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }

// AmbiguousPresentationDefinitionError is returned when a per-role presentation definition has no
// entry for the acting role.
type AmbiguousPresentationDefinitionError struct {
	Action    string
	Role      Role
	Available []Role
}

func (e *AmbiguousPresentationDefinitionError) Error() string {
	return fmt.Sprintf("action '%s' has no presentation definition for role '%s' (declared for %v)", e.Action, e.Role, e.Available)
}

func (e *AmbiguousPresentationDefinitionError) Is(target error) bool {
	return target == ErrAmbiguousPresentationDefinition
}

// ProtocolTimeoutError records an executor call that exceeded its deadline.
// The engine maps it to a failure outcome instead of returning it.
type ProtocolTimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *ProtocolTimeoutError) Error() string {
	return fmt.Sprintf("action '%s' did not complete within %s", e.Action, e.Timeout)
}

func (e *ProtocolTimeoutError) Is(target error) bool { return target == ErrProtocolTimeout }
