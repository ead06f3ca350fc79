package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/charter/pkg/domain"
)

// AdvanceOption tunes a single Advance call.
type AdvanceOption func(*advanceConfig)

type advanceConfig struct {
	prefer string
}

// PreferBranch makes every OR group try first the branch that contains the named action.
// The remaining branches keep their declared order.
func PreferBranch(action string) AdvanceOption {
	return func(c *advanceConfig) {
		c.prefer = action
	}
}

// step is everything resolved before any side effect happens.
type step struct {
	action domain.Action
	ref    string
}

// Advance runs the current state of the session and moves it along its transitions.
// It returns a new session value; on error the input session is left as it was.
func (e *Engine) Advance(ctx context.Context, session *domain.Session, opts ...AdvanceOption) (*domain.Session, *domain.StepResult, error) {
	if session == nil {
		return nil, nil, fmt.Errorf("advance: nil session")
	}
	if session.IsTerminal() {
		return nil, nil, fmt.Errorf("session '%s' is %s: %w", session.ID, session.Status, domain.ErrSessionTerminated)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	state, ok := e.model.FlowState(session.CurrentState)
	if !ok {
		return nil, nil, fmt.Errorf("session '%s' at '%s': %w", session.ID, session.CurrentState, domain.ErrUnknownFlowState)
	}

	cfg := advanceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// 1. Preconditions
	if cond, reason, ok := e.checkConditions(session, state); !ok {
		if state.Fallback != "" {
			e.logger.Debug("precondition not met, entering fallback",
				"session_id", session.ID, "state", state.Name, "fallback", state.Fallback, "reason", reason)
			next := session.Clone()
			e.moveTo(ctx, next, state, state.Fallback)
			return next, &domain.StepResult{
				From:     state.Name,
				To:       state.Fallback,
				Outcome:  domain.OutcomeFailure,
				Status:   next.Status,
				Fallback: true,
			}, nil
		}
		return nil, nil, &domain.PreconditionError{State: state.Name, Condition: cond, Reason: reason}
	}

	// 2. Authorization and catalog resolution, before any side effect
	owner := session.Bindings[state.Role]
	decisions, allowed := e.authorizeEntry(ctx, session.ID, state, session.Bindings)
	if !allowed {
		var denied []domain.Decision
		for _, d := range decisions {
			if !d.Allowed {
				denied = append(denied, d)
			}
		}
		return nil, nil, &domain.UnauthorizedError{Kind: domain.UnauthorizedAction, State: state.Name, Decisions: denied}
	}

	plan := make(map[string]step)
	for _, leaf := range state.Actions.Leaves() {
		if _, done := plan[leaf.Action]; done {
			continue
		}
		action, err := e.model.Catalog().Resolve(leaf.Action)
		if err != nil {
			return nil, nil, fmt.Errorf("state '%s': %w", state.Name, err)
		}
		ref, err := e.model.Catalog().ResolvePresentationDefinition(leaf.Action, state.Role)
		if err != nil {
			return nil, nil, fmt.Errorf("state '%s': %w", state.Name, err)
		}
		plan[leaf.Action] = step{action: action, ref: ref}
	}

	// 3. Evaluate the action tree
	next := session.Clone()
	next.Steps++
	run := &evaluation{
		engine:  e,
		ctx:     ctx,
		session: next,
		state:   state,
		owner:   owner,
		plan:    plan,
		prefer:  cfg.prefer,
	}
	outcome, trace, route := run.eval(state.Actions)
	if run.cancelled != nil {
		e.logger.Debug("step cancelled", "session_id", session.ID, "state", state.Name, "err", run.cancelled)
		return nil, nil, run.cancelled
	}

	result := &domain.StepResult{
		From:    state.Name,
		Outcome: outcome,
		Trace:   &trace,
		Records: run.records,
		Errors:  run.errors,
	}
	if outcome == domain.OutcomeSuccess {
		result.Branch = run.succeeded
		result.Target = route
	}

	// 4. Transition
	candidates := state.Next.For(outcome)
	if route != "" {
		candidates = []string{route}
	}

	if len(candidates) == 0 {
		result.To = state.Name
		switch {
		case outcome == domain.OutcomeSuccess:
			next.Status = domain.StatusCompleted
			next.Reason = fmt.Sprintf("flow completed at '%s'", state.Name)
		case e.failurePolicy == FailureRetry:
			next.Reason = fmt.Sprintf("step failed at '%s', retry allowed", state.Name)
		default:
			next.Status = domain.StatusAborted
			next.Reason = fmt.Sprintf("step failed at '%s' with no failure transition", state.Name)
		}
		next.UpdatedAt = e.now().UTC()
		if next.IsTerminal() {
			e.emitStateLeave(ctx, next.ID, state)
			e.emitSessionEnd(ctx, next)
		}
		result.Status = next.Status
		e.logger.Debug("step finished in place", "session_id", next.ID, "state", state.Name, "outcome", outcome, "status", next.Status)
		return next, result, nil
	}

	target, decisions, ok := e.selectTarget(ctx, next, candidates)
	if !ok {
		return nil, nil, &domain.UnauthorizedError{
			Kind:      domain.UnauthorizedFlowEntry,
			State:     strings.Join(candidates, ", "),
			Decisions: decisions,
			Records:   run.records,
		}
	}
	e.moveTo(ctx, next, state, target)
	result.To = target
	result.Status = next.Status
	e.logger.Debug("transition", "session_id", next.ID, "from", state.Name, "to", target, "outcome", outcome)
	return next, result, nil
}

// checkConditions returns the first condition that does not hold.
// Unsupported condition types never hold.
func (e *Engine) checkConditions(session *domain.Session, state domain.FlowState) (domain.Condition, string, bool) {
	for _, c := range state.Conditions {
		switch c.Type {
		case domain.ConditionConnection:
			if !session.HasConnection(state.Role, c.Target) {
				return c, fmt.Sprintf("no connection between '%s' and '%s'", state.Role, c.Target), false
			}
		default:
			e.logger.Warn("unsupported condition type does not hold", "state", state.Name, "type", c.Type)
			return c, fmt.Sprintf("unsupported condition type '%s'", c.Type), false
		}
	}
	return domain.Condition{}, "", true
}

// selectTarget picks the next state. A single candidate is taken as is; among several,
// the first whose entry is authorized for its bound owner wins (list order is priority).
func (e *Engine) selectTarget(ctx context.Context, session *domain.Session, candidates []string) (string, []domain.Decision, bool) {
	if len(candidates) == 1 {
		return candidates[0], nil, true
	}

	var decisions []domain.Decision
	for _, name := range candidates {
		state, ok := e.model.FlowState(name)
		if !ok {
			continue
		}
		ds, ok := e.authorizeEntry(ctx, session.ID, state, session.Bindings)
		decisions = append(decisions, ds...)
		if ok {
			return name, decisions, true
		}
	}
	return "", decisions, false
}

func (e *Engine) moveTo(ctx context.Context, session *domain.Session, from domain.FlowState, target string) {
	e.emitStateLeave(ctx, session.ID, from)
	session.CurrentState = target
	session.History = append(session.History, target)
	session.UpdatedAt = e.now().UTC()
	if to, ok := e.model.FlowState(target); ok {
		e.emitStateEnter(ctx, session.ID, to)
	}
}
