package dsl

import "github.com/aretw0/charter/pkg/domain"

// StateBuilder provides a fluent API for configuring a flow state.
type StateBuilder struct {
	state   domain.FlowState
	builder *Builder
}

// Role sets the role that owns the state.
func (s *StateBuilder) Role(r domain.Role) *StateBuilder {
	s.builder.declare(r)
	s.state.Role = r
	return s
}

// Initial marks the state as a flow entry point.
func (s *StateBuilder) Initial() *StateBuilder {
	s.state.Initial = true
	return s
}

// RequireConnection adds a precondition: the owner must already be connected to target.
func (s *StateBuilder) RequireConnection(target domain.Role) *StateBuilder {
	s.state.Conditions = append(s.state.Conditions, domain.Condition{Type: domain.ConditionConnection, Target: target})
	return s
}

// Do sets the action expression the owner runs.
func (s *StateBuilder) Do(expr domain.ActionExpr) *StateBuilder {
	s.state.Actions = expr
	return s
}

// Go adds success transitions, in priority order.
func (s *StateBuilder) Go(targets ...string) *StateBuilder {
	s.state.Next.Success = append(s.state.Next.Success, targets...)
	return s
}

// OnFailure adds failure transitions, in priority order.
func (s *StateBuilder) OnFailure(targets ...string) *StateBuilder {
	s.state.Next.Failure = append(s.state.Next.Failure, targets...)
	return s
}

// Fallback sets the state entered when a precondition is not met.
func (s *StateBuilder) Fallback(target string) *StateBuilder {
	s.state.Fallback = target
	return s
}

// Terminal marks the state as a sink (end of the flow).
func (s *StateBuilder) Terminal() *StateBuilder {
	s.state.Next = domain.Transitions{}
	return s
}

// Build returns the underlying domain.FlowState.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StateBuilder) Build() domain.FlowState {
	return s.state
}

// With is a leaf run against a counterparty role.
func With(action string, target domain.Role) domain.ActionExpr {
	e := domain.Leaf(action)
	e.Target = target
	return e
}

// Then routes the flow to next when the expression wins its OR branch.
func Then(expr domain.ActionExpr, next string) domain.ActionExpr {
	expr.Next = next
	return expr
}
