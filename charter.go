package charter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/charter/internal/runtime"
	"github.com/aretw0/charter/pkg/adapters/file"
	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/governance"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/aretw0/charter/pkg/session"
)

// Version is the interpreter release.
const Version = "0.4.0"

// DefaultMaxSteps bounds Run so that a cyclic flow cannot spin forever.
const DefaultMaxSteps = 256

// ErrNoExecutor is reported by the default executor, which refuses every protocol action.
var ErrNoExecutor = errors.New("no protocol executor configured")

// ErrStepLimit is returned by Run when the session is still active after the step limit.
var ErrStepLimit = errors.New("step limit reached")

type (
	// AdvanceOption tunes a single Advance.
	AdvanceOption = runtime.AdvanceOption
	// FailurePolicy decides what happens to a failed step without a failure transition.
	FailurePolicy = runtime.FailurePolicy
)

const (
	FailureAbort = runtime.FailureAbort
	FailureRetry = runtime.FailureRetry
)

// PreferBranch tries the OR branch containing action first.
func PreferBranch(action string) AdvanceOption {
	return runtime.PreferBranch(action)
}

// Interpreter answers governance questions about one framework and drives its flows.
// It is safe for concurrent use; sessions are serialized by the session manager.
type Interpreter struct {
	Name string

	model    *governance.Model
	engine   *runtime.Engine
	sessions *session.Manager

	loader   ports.FrameworkLoader
	executor ports.ProtocolExecutor
	verifier ports.CredentialVerifier
	store    ports.SessionStore
	locker   ports.DistributedLocker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int

	runtimeOpts []runtime.Option
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLoader injects a FrameworkLoader. The path given to New is then only a label.
func WithLoader(l ports.FrameworkLoader) Option {
	return func(i *Interpreter) {
		i.loader = l
	}
}

// WithExecutor sets the protocol executor that carries out flow actions.
func WithExecutor(e ports.ProtocolExecutor) Option {
	return func(i *Interpreter) {
		i.executor = e
	}
}

// WithCredentialVerifier enables credential atoms in permission predicates.
func WithCredentialVerifier(v ports.CredentialVerifier) Option {
	return func(i *Interpreter) {
		i.verifier = v
	}
}

// WithSessionStore persists sessions somewhere other than memory.
func WithSessionStore(s ports.SessionStore) Option {
	return func(i *Interpreter) {
		i.store = s
	}
}

// WithLocker adds a distributed lock around every session mutation.
func WithLocker(l ports.DistributedLocker) Option {
	return func(i *Interpreter) {
		i.locker = l
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(i *Interpreter) {
		i.hooks = i.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithActionTimeout sets the deadline for actions whose document declares none.
func WithActionTimeout(d time.Duration) Option {
	return func(i *Interpreter) {
		i.runtimeOpts = append(i.runtimeOpts, runtime.WithActionTimeout(d))
	}
}

// WithActionTimeouts overrides deadlines per action name.
func WithActionTimeouts(timeouts map[string]time.Duration) Option {
	return func(i *Interpreter) {
		i.runtimeOpts = append(i.runtimeOpts, runtime.WithActionTimeouts(timeouts))
	}
}

// WithFailurePolicy sets what happens to failures without a failure transition.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(i *Interpreter) {
		i.runtimeOpts = append(i.runtimeOpts, runtime.WithFailurePolicy(p))
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(i *Interpreter) {
		i.runtimeOpts = append(i.runtimeOpts, runtime.WithIDGenerator(fn))
	}
}

// WithMaxSteps bounds the number of steps a single Run may take.
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) {
		i.maxSteps = n
	}
}

// New loads, validates and compiles a governance framework.
// By default the document at path (JSON or YAML) is read from disk.
// If WithLoader is provided, path may be empty.
func New(path string, opts ...Option) (*Interpreter, error) {
	return NewContext(context.Background(), path, opts...)
}

// NewContext is New with a context for the framework load.
func NewContext(ctx context.Context, path string, opts ...Option) (*Interpreter, error) {
	it := &Interpreter{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(it)
	}

	if it.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		it.loader = file.NewLoader(abs)
	}
	if path != "" {
		it.Name = filepath.Base(path)
	}

	if it.logger == nil {
		it.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if it.executor == nil {
		it.executor = ports.ExecutorFunc(func(ctx context.Context, inv ports.Invocation) (ports.Execution, error) {
			return ports.Execution{}, fmt.Errorf("action '%s': %w", inv.Action.Name, ErrNoExecutor)
		})
	}
	if it.store == nil {
		it.store = memory.NewStore()
	}

	fw, err := it.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load framework: %w", err)
	}

	govOpts := []governance.Option{governance.WithLogger(it.logger)}
	if it.verifier != nil {
		govOpts = append(govOpts, governance.WithCredentialVerifier(it.verifier))
	}
	model, err := governance.Compile(fw, govOpts...)
	if err != nil {
		return nil, err
	}
	it.model = model
	if it.Name == "" {
		it.Name = model.Name()
	}
	it.logger = it.logger.With("framework", model.Name())

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(it.logger),
		runtime.WithLifecycleHooks(it.hooks),
	}
	it.engine = runtime.NewEngine(model, it.executor, append(runtimeOpts, it.runtimeOpts...)...)

	sessionOpts := []session.Option{session.WithLogger(it.logger)}
	if it.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(it.locker))
	}
	it.sessions = session.NewManager(it.store, sessionOpts...)

	return it, nil
}

// Model returns the compiled framework.
func (i *Interpreter) Model() *governance.Model {
	return i.model
}

// Framework returns a copy of the framework document.
func (i *Interpreter) Framework() *domain.Framework {
	return i.model.Framework()
}

// Warnings lists the non-fatal findings of validation.
func (i *Interpreter) Warnings() []string {
	return i.model.Warnings()
}

// RolesOf returns the roles a participant holds.
func (i *Interpreter) RolesOf(ctx context.Context, participantID string) []domain.Role {
	return i.model.RolesOf(ctx, participantID)
}

// IsAuthorized reports whether the participant may perform the action under any role it holds.
func (i *Interpreter) IsAuthorized(ctx context.Context, participantID, action string) bool {
	return i.model.IsAuthorized(ctx, participantID, action)
}

// Authorize is IsAuthorized with the audit trail.
func (i *Interpreter) Authorize(ctx context.Context, participantID, action string) domain.Decision {
	return i.model.Authorize(ctx, participantID, action)
}

// AuthorizeAs evaluates the action for the participant acting in one role only.
func (i *Interpreter) AuthorizeAs(ctx context.Context, participantID string, role domain.Role, action string) domain.Decision {
	return i.model.AuthorizeAs(ctx, participantID, role, action)
}

// Action resolves an action by name.
func (i *Interpreter) Action(name string) (domain.Action, error) {
	return i.model.Catalog().Resolve(name)
}

// PresentationDefinition resolves the presentation reference for the acting role.
func (i *Interpreter) PresentationDefinition(action string, role domain.Role) (string, error) {
	return i.model.Catalog().ResolvePresentationDefinition(action, role)
}

// Start opens and persists a new session with the given role bindings.
func (i *Interpreter) Start(ctx context.Context, bindings map[domain.Role]string) (*domain.Session, error) {
	s, err := i.engine.Start(ctx, bindings)
	if err != nil {
		return nil, err
	}
	if err := i.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return s, nil
}

// Advance executes the current state of the session and persists the result.
// On error the stored session is left as it was.
func (i *Interpreter) Advance(ctx context.Context, sessionID string, opts ...AdvanceOption) (*domain.Session, *domain.StepResult, error) {
	var result *domain.StepResult
	s, err := i.sessions.Update(ctx, sessionID, func(current *domain.Session) (*domain.Session, error) {
		next, res, err := i.engine.Advance(ctx, current, opts...)
		if err != nil {
			return nil, err
		}
		result = res
		return next, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s, result, nil
}

// Run advances the session until it terminates, a failed step leaves it in place, or an error occurs.
// The options apply to every step.
func (i *Interpreter) Run(ctx context.Context, sessionID string, opts ...AdvanceOption) (*domain.Session, []*domain.StepResult, error) {
	var steps []*domain.StepResult
	for n := 0; n < i.maxSteps; n++ {
		s, res, err := i.Advance(ctx, sessionID, opts...)
		if err != nil {
			return nil, steps, err
		}
		steps = append(steps, res)
		if s.IsTerminal() {
			return s, steps, nil
		}
		if res.Outcome == domain.OutcomeFailure && res.From == res.To {
			i.logger.Debug("run paused on failed step", "session_id", sessionID, "state", res.From)
			return s, steps, nil
		}
	}
	return nil, steps, fmt.Errorf("session '%s' still active after %d steps: %w", sessionID, i.maxSteps, ErrStepLimit)
}

// Abort ends an active session.
func (i *Interpreter) Abort(ctx context.Context, sessionID, reason string) (*domain.Session, error) {
	return i.sessions.Update(ctx, sessionID, func(current *domain.Session) (*domain.Session, error) {
		return i.engine.Abort(ctx, current, reason)
	})
}

// Session loads a session by id.
func (i *Interpreter) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return i.sessions.Load(ctx, sessionID)
}

// Sessions lists the stored session ids.
func (i *Interpreter) Sessions(ctx context.Context) ([]string, error) {
	return i.sessions.List(ctx)
}

// DeleteSession removes a session from the store.
func (i *Interpreter) DeleteSession(ctx context.Context, sessionID string) error {
	return i.sessions.Delete(ctx, sessionID)
}
