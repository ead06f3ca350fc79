package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
)

// Runner implements ports.ProtocolExecutor by running local processes, one per action.
// Only registered commands run (allow-list); invocation data goes through CHARTER_* environment
// variables and as one JSON object on stdin, never through the command line.
//
// Exit code 0 is a success, any other exit code a failure. A JSON object on stdout becomes the
// execution artifacts; an "outcome" key in it overrides the exit-code verdict.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(registry map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, cfg := range registry {
			cfg.Action = name
			r.registry[name] = cfg
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command for an action (or Wildcard).
func (r *Runner) Register(action string, command string, args ...string) {
	r.registry[action] = ProcessConfig{Action: action, Command: command, Args: args}
}

// Actions lists the registered action names.
func (r *Runner) Actions() []string {
	out := make([]string, 0, len(r.registry))
	for name := range r.registry {
		out = append(out, name)
	}
	return out
}

// Execute runs the command registered for the invocation's action.
// Cancellation and deadlines of ctx kill the process and are returned as ctx.Err().
func (r *Runner) Execute(ctx context.Context, inv ports.Invocation) (ports.Execution, error) {
	proc, ok := r.registry[inv.Action.Name]
	if !ok {
		proc, ok = r.registry[Wildcard]
	}
	if !ok {
		return ports.Execution{}, fmt.Errorf("no process registered for action '%s'", inv.Action.Name)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), environment(inv)...)
	for k, v := range proc.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	payload, err := json.Marshal(inv)
	if err != nil {
		return ports.Execution{}, fmt.Errorf("failed to encode invocation for '%s': %w", inv.Action.Name, err)
	}
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running protocol process", "action", inv.Action.Name, "command", proc.Command)
	err = cmd.Run()
	if ctx.Err() != nil {
		return ports.Execution{}, ctx.Err()
	}

	outcome := domain.OutcomeSuccess
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return ports.Execution{}, fmt.Errorf("failed to start process for '%s': %w", inv.Action.Name, err)
		}
		outcome = domain.OutcomeFailure
	}

	artifacts := parseOutput(stdout.String())
	if s := strings.TrimSpace(stderr.String()); s != "" && outcome == domain.OutcomeFailure {
		artifacts["stderr"] = s
	}
	if v, ok := artifacts["outcome"].(string); ok {
		switch domain.Outcome(v) {
		case domain.OutcomeSuccess, domain.OutcomeFailure:
			outcome = domain.Outcome(v)
		default:
			r.logger.Warn("process reported an unknown outcome, keeping exit-code verdict",
				"action", inv.Action.Name, "outcome", v)
		}
	}

	return ports.Execution{Outcome: outcome, Artifacts: artifacts}, nil
}

// environment renders the invocation as CHARTER_* variables.
func environment(inv ports.Invocation) []string {
	vars := map[string]string{
		"SESSION_ID":        inv.SessionID,
		"STATE":             inv.State,
		"ACTION":            inv.Action.Name,
		"PROTOCOL":          inv.Action.Protocol,
		"START_MESSAGE":     inv.Action.StartMessage,
		"SCHEMA":            inv.Action.Details.Schema,
		"PRESENTATION_REF":  inv.PresentationRef,
		"PARTICIPANT":       inv.ActingParticipant,
		"ROLE":              string(inv.ActingRole),
		"COUNTERPARTY":      inv.Counterparty,
		"COUNTERPARTY_ROLE": string(inv.CounterpartyRole),
	}
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, fmt.Sprintf("CHARTER_%s=%s", k, v))
	}
	return env
}

// parseOutput returns the stdout JSON object, or the raw text under "output".
func parseOutput(out string) map[string]any {
	trimmed := strings.TrimSpace(out)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
	}
	artifacts := map[string]any{}
	if trimmed != "" {
		artifacts["output"] = trimmed
	}
	return artifacts
}
