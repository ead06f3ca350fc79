package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/google/uuid"
)

// DefaultActionTimeout bounds an executor call when neither the action nor the engine says otherwise.
const DefaultActionTimeout = 2 * time.Minute

// FailurePolicy decides what happens when a step fails and the state declares no failure transition.
type FailurePolicy string

const (
	// FailureAbort ends the session in StatusAborted.
	FailureAbort FailurePolicy = "abort"
	// FailureRetry keeps the session active in the same state.
	FailureRetry FailurePolicy = "retry"
)

// Engine drives flow sessions over a compiled governance model.
// It holds no per-session state: every call takes a session and returns a new one.
type Engine struct {
	model    *governance.Model
	executor ports.ProtocolExecutor
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	defaultTimeout time.Duration
	timeouts       map[string]time.Duration
	failurePolicy  FailurePolicy
	newID          func() string
	now            func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithActionTimeout sets the deadline used for actions that declare none. Zero disables it.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.defaultTimeout = d
	}
}

// WithActionTimeouts overrides deadlines per action name, ahead of the document's own timeouts.
func WithActionTimeouts(timeouts map[string]time.Duration) Option {
	return func(e *Engine) {
		for k, v := range timeouts {
			e.timeouts[k] = v
		}
	}
}

// WithFailurePolicy sets the policy for failures without a failure transition.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Engine) {
		e.failurePolicy = p
	}
}

// WithIDGenerator replaces the session ID generator (UUIDv4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates an engine for the model. The executor carries out protocol actions.
func NewEngine(model *governance.Model, executor ports.ProtocolExecutor, opts ...Option) *Engine {
	e := &Engine{
		model:          model,
		executor:       executor,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultTimeout: DefaultActionTimeout,
		timeouts:       make(map[string]time.Duration),
		failurePolicy:  FailureAbort,
		newID:          uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the governance model the engine evaluates against.
func (e *Engine) Model() *governance.Model {
	return e.model
}

// Start opens a session at the first initial state, in document order, whose entry is authorized
// for the bound participants. Every role the flow can reach from there must be bound.
func (e *Engine) Start(ctx context.Context, bindings map[domain.Role]string) (*domain.Session, error) {
	initial := e.model.InitialStates()
	if len(initial) == 0 {
		return nil, fmt.Errorf("framework '%s' declares no initial state: %w", e.model.Name(), domain.ErrUnknownFlowState)
	}

	var decisions []domain.Decision
	names := make([]string, 0, len(initial))
	for _, state := range initial {
		names = append(names, state.Name)

		if missing := e.unboundRoles(state.Name, bindings); len(missing) > 0 {
			for _, r := range missing {
				decisions = append(decisions, domain.Decision{
					As:     r,
					Reason: fmt.Sprintf("no participant bound to role '%s'", r),
				})
			}
			e.logger.Debug("initial state skipped", "state", state.Name, "unbound", missing)
			continue
		}

		ds, ok := e.authorizeEntry(ctx, "", state, bindings)
		decisions = append(decisions, ds...)
		if !ok {
			e.logger.Debug("initial state not authorized", "state", state.Name)
			continue
		}

		session := domain.NewSession(e.newID(), e.model.Name(), state.Name, bindings)
		session.CreatedAt = e.now().UTC()
		session.UpdatedAt = session.CreatedAt
		e.logger.Debug("session started", "session_id", session.ID, "state", state.Name)
		e.emitStateEnter(ctx, session.ID, state)
		return session, nil
	}

	return nil, &domain.UnauthorizedError{
		Kind:      domain.UnauthorizedFlowEntry,
		State:     strings.Join(names, ", "),
		Decisions: decisions,
	}
}

// CurrentState returns the name of the state the session is positioned at.
func (e *Engine) CurrentState(session *domain.Session) string {
	return session.CurrentState
}

// IsTerminal reports whether the session completed or was aborted.
// A state without transitions is not terminal on entry: its actions still run once,
// and the outcome of that run ends the session.
func (e *Engine) IsTerminal(session *domain.Session) bool {
	return session.IsTerminal()
}

// Abort ends an active session. The input session is not modified.
func (e *Engine) Abort(ctx context.Context, session *domain.Session, reason string) (*domain.Session, error) {
	if session.IsTerminal() {
		return nil, fmt.Errorf("session '%s': %w", session.ID, domain.ErrSessionTerminated)
	}
	next := session.Clone()
	next.Status = domain.StatusAborted
	next.Reason = reason
	next.UpdatedAt = e.now().UTC()

	if state, ok := e.model.FlowState(next.CurrentState); ok {
		e.emitStateLeave(ctx, next.ID, state)
	}
	e.emitSessionEnd(ctx, next)
	return next, nil
}

// unboundRoles lists the roles reachable from start that have no participant.
func (e *Engine) unboundRoles(start string, bindings map[domain.Role]string) []domain.Role {
	var missing []domain.Role
	for _, r := range e.model.RequiredRoles(start) {
		if bindings[r] == "" {
			missing = append(missing, r)
		}
	}
	return missing
}

// authorizeEntry checks that the owner of state may perform every action of the state.
// A state without actions only requires the owner to hold its role.
func (e *Engine) authorizeEntry(ctx context.Context, sessionID string, state domain.FlowState, bindings map[domain.Role]string) ([]domain.Decision, bool) {
	owner := bindings[state.Role]
	leaves := state.Actions.Leaves()

	if len(leaves) == 0 {
		if e.model.HoldsRole(ctx, owner, state.Role) {
			return nil, true
		}
		d := domain.Decision{
			Participant: owner,
			As:          state.Role,
			Roles:       e.model.RolesOf(ctx, owner),
			Reason:      fmt.Sprintf("participant does not hold role '%s'", state.Role),
		}
		e.emitDecision(ctx, sessionID, d)
		return []domain.Decision{d}, false
	}

	ok := true
	var decisions []domain.Decision
	seen := make(map[string]bool, len(leaves))
	for _, leaf := range leaves {
		if seen[leaf.Action] {
			continue
		}
		seen[leaf.Action] = true

		d := e.model.AuthorizeAs(ctx, owner, state.Role, leaf.Action)
		e.emitDecision(ctx, sessionID, d)
		decisions = append(decisions, d)
		ok = ok && d.Allowed
	}
	return decisions, ok
}
