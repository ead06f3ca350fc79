package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
)

// evaluation runs one state's action tree against a cloned session.
type evaluation struct {
	engine  *Engine
	ctx     context.Context
	session *domain.Session
	state   domain.FlowState
	owner   string
	plan    map[string]step
	prefer  string

	records   []domain.ActionRecord
	succeeded []string
	errors    []error
	cancelled error
}

// eval returns the outcome of e, its trace, and the state a winning branch routes to.
// And stops at the first failing child; Or stops at the first succeeding child.
func (r *evaluation) eval(e domain.ActionExpr) (domain.Outcome, domain.BranchTrace, string) {
	trace := domain.BranchTrace{Kind: e.Kind, Action: e.Action, Next: e.Next}
	if r.cancelled != nil {
		return domain.OutcomeFailure, skeleton(e), ""
	}

	switch e.Kind {
	case domain.ExprLeaf:
		if e.Action == "" {
			trace.Outcome = domain.OutcomeSuccess
			return domain.OutcomeSuccess, trace, e.Next
		}
		trace.Invoked = true
		trace.Outcome = r.execute(e)
		if trace.Outcome == domain.OutcomeSuccess {
			return domain.OutcomeSuccess, trace, e.Next
		}
		return domain.OutcomeFailure, trace, ""

	case domain.ExprOr:
		if len(e.Children) == 0 {
			trace.Outcome = domain.OutcomeSuccess
			return domain.OutcomeSuccess, trace, e.Next
		}
		trace.Children = make([]domain.BranchTrace, len(e.Children))
		for i, c := range e.Children {
			trace.Children[i] = skeleton(c)
		}
		for _, i := range r.order(e.Children) {
			outcome, child, route := r.eval(e.Children[i])
			trace.Children[i] = child
			trace.Invoked = true
			if r.cancelled != nil {
				break
			}
			if outcome == domain.OutcomeSuccess {
				trace.Outcome = domain.OutcomeSuccess
				return domain.OutcomeSuccess, trace, firstNonEmpty(e.Next, route)
			}
		}
		trace.Outcome = domain.OutcomeFailure
		return domain.OutcomeFailure, trace, ""

	default:
		// And, and the zero expression of a pass-through state.
		trace.Children = make([]domain.BranchTrace, len(e.Children))
		for i, c := range e.Children {
			trace.Children[i] = skeleton(c)
		}
		route := ""
		for i, c := range e.Children {
			outcome, child, childRoute := r.eval(c)
			trace.Children[i] = child
			trace.Invoked = trace.Invoked || child.Invoked
			if outcome != domain.OutcomeSuccess {
				trace.Outcome = domain.OutcomeFailure
				return domain.OutcomeFailure, trace, ""
			}
			if route == "" {
				route = childRoute
			}
		}
		trace.Outcome = domain.OutcomeSuccess
		return domain.OutcomeSuccess, trace, firstNonEmpty(e.Next, route)
	}
}

// order returns child indexes with the preferred branch, if any, moved to the front.
func (r *evaluation) order(children []domain.ActionExpr) []int {
	out := make([]int, 0, len(children))
	if r.prefer != "" {
		for i, c := range children {
			if c.Contains(r.prefer) {
				out = append(out, i)
			}
		}
	}
	for i, c := range children {
		if r.prefer == "" || !c.Contains(r.prefer) {
			out = append(out, i)
		}
	}
	return out
}

// execute calls the protocol executor for one leaf and records the result on the session.
func (r *evaluation) execute(leaf domain.ActionExpr) domain.Outcome {
	e := r.engine
	p := r.plan[leaf.Action]

	counterparty := ""
	if leaf.Target != "" {
		counterparty = r.session.Bindings[leaf.Target]
	}
	inv := ports.Invocation{
		SessionID:         r.session.ID,
		State:             r.state.Name,
		Action:            p.action.Clone(),
		ActingParticipant: r.owner,
		ActingRole:        r.state.Role,
		Counterparty:      counterparty,
		CounterpartyRole:  leaf.Target,
		PresentationRef:   p.ref,
	}

	timeout := e.timeoutFor(p.action)
	callCtx, cancel := r.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(r.ctx, timeout)
	}

	e.emitActionCall(r.ctx, r.session.ID, r.state.Name, inv)
	start := e.now()
	exec, err := e.executor.Execute(callCtx, inv)
	deadlineHit := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	elapsed := e.now().Sub(start)

	record := domain.ActionRecord{
		Step:         r.session.Steps,
		State:        r.state.Name,
		Action:       leaf.Action,
		Participant:  r.owner,
		Role:         r.state.Role,
		Counterparty: counterparty,
		Duration:     elapsed,
	}

	outcome := domain.OutcomeFailure
	switch {
	case deadlineHit && r.ctx.Err() == nil:
		// Past the action deadline the executor's answer no longer counts.
		terr := &domain.ProtocolTimeoutError{Action: leaf.Action, Timeout: timeout}
		record.TimedOut = true
		record.Error = terr.Error()
		r.errors = append(r.errors, terr)
		e.logger.Warn("protocol execution timed out", "session_id", r.session.ID, "action", leaf.Action, "timeout", timeout)
	case err == nil:
		outcome = exec.Outcome
		if outcome != domain.OutcomeSuccess && outcome != domain.OutcomeFailure {
			e.logger.Warn("executor returned an unknown outcome, treating as failure",
				"action", leaf.Action, "outcome", exec.Outcome)
			outcome = domain.OutcomeFailure
		}
		record.Artifacts = exec.Artifacts
	case r.ctx.Err() != nil:
		// The caller gave up: the whole step is discarded.
		r.cancelled = r.ctx.Err()
		return domain.OutcomeFailure
	default:
		record.Error = err.Error()
		r.errors = append(r.errors, err)
		e.logger.Warn("protocol execution failed", "session_id", r.session.ID, "action", leaf.Action, "err", err)
	}
	record.Outcome = outcome

	if outcome == domain.OutcomeSuccess {
		r.succeeded = append(r.succeeded, leaf.Action)
		if p.action.EstablishesConnection() && leaf.Target != "" && !r.session.HasConnection(r.state.Role, leaf.Target) {
			r.session.Connections = append(r.session.Connections, domain.Connection{From: r.state.Role, To: leaf.Target})
		}
	}
	r.session.Records = append(r.session.Records, record)
	r.records = append(r.records, record)

	e.emitActionReturn(r.ctx, r.session.ID, r.state.Name, inv, record)
	return outcome
}

// timeoutFor applies, in order: engine override, the action's own timeout, the engine default.
func (e *Engine) timeoutFor(action domain.Action) time.Duration {
	if d, ok := e.timeouts[action.Name]; ok {
		return d
	}
	if action.Timeout > 0 {
		return action.Timeout
	}
	return e.defaultTimeout
}

// skeleton mirrors an expression that was never evaluated.
func skeleton(e domain.ActionExpr) domain.BranchTrace {
	t := domain.BranchTrace{Kind: e.Kind, Action: e.Action, Next: e.Next}
	for _, c := range e.Children {
		t.Children = append(t.Children, skeleton(c))
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
