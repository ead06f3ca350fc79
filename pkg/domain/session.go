package domain

import (
	"time"
)

// SessionStatus defines where a session is in its lifecycle.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"    // Waiting for the next Advance
	StatusCompleted SessionStatus = "completed" // Sink state executed successfully
	StatusAborted   SessionStatus = "aborted"   // Unhandled failure or explicit abort
)

// Connection is an established relationship between the participants playing two roles.
type Connection struct {
	From Role `json:"from"`
	To   Role `json:"to"`
}

// ActionRecord is the outcome of one protocol execution inside a session.
type ActionRecord struct {
	Step         int            `json:"step"`
	State        string         `json:"state"`
	Action       string         `json:"action"`
	Participant  string         `json:"participant"`
	Role         Role           `json:"role"`
	Counterparty string         `json:"counterparty,omitempty"`
	Outcome      Outcome        `json:"outcome"`
	TimedOut     bool           `json:"timed_out,omitempty"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration"`
	Artifacts    map[string]any `json:"artifacts,omitempty"`
}

// Session is the per-execution cursor of one multi-party flow.
// It is owned by a single driver; the engine never mutates a session it was handed.
type Session struct {
	ID           string          `json:"id"`
	Framework    string          `json:"framework"`
	CurrentState string          `json:"current_state"`
	Status       SessionStatus   `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Bindings     map[Role]string `json:"bindings"`
	Connections  []Connection    `json:"connections,omitempty"`
	History      []string        `json:"history"`
	Records      []ActionRecord  `json:"records,omitempty"`
	Steps        int             `json:"steps"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Sealed holds the encrypted session when it went through an encrypting store.
	// Only ID, Framework and Status stay readable next to it.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewSession creates an active session positioned at the given state.
func NewSession(id, framework, start string, bindings map[Role]string) *Session {
	now := time.Now().UTC()
	b := make(map[Role]string, len(bindings))
	for k, v := range bindings {
		b[k] = v
	}
	return &Session{
		ID:           id,
		Framework:    framework,
		CurrentState: start,
		Status:       StatusActive,
		Bindings:     b,
		History:      []string{start},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy safe for mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.Bindings = make(map[Role]string, len(s.Bindings))
	for k, v := range s.Bindings {
		next.Bindings[k] = v
	}
	next.Connections = append([]Connection(nil), s.Connections...)
	next.History = append([]string(nil), s.History...)
	next.Records = append([]ActionRecord(nil), s.Records...)
	return &next
}

// IsTerminal reports whether the session reached Completed or Aborted.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAborted
}

// HasConnection reports whether the participants playing a and b are connected, in either direction.
func (s *Session) HasConnection(a, b Role) bool {
	for _, c := range s.Connections {
		if (c.From == a && c.To == b) || (c.From == b && c.To == a) {
			return true
		}
	}
	return false
}

// Invoked reports whether the action was executed at least once in this session.
func (s *Session) Invoked(action string) bool {
	for _, r := range s.Records {
		if r.Action == action {
			return true
		}
	}
	return false
}

// BranchTrace mirrors an ActionExpr after evaluation: which nodes ran and how they ended.
type BranchTrace struct {
	Kind     ExprKind      `json:"kind"`
	Action   string        `json:"action,omitempty"`
	Invoked  bool          `json:"invoked"`
	Outcome  Outcome       `json:"outcome,omitempty"`
	Next     string        `json:"next,omitempty"`
	Children []BranchTrace `json:"children,omitempty"`
}

// StepResult describes one Advance.
type StepResult struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Outcome  Outcome        `json:"outcome"`
	Status   SessionStatus  `json:"status"`
	Branch   []string       `json:"branch,omitempty"`
	Target   string         `json:"target,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Trace    *BranchTrace   `json:"trace,omitempty"`
	Records  []ActionRecord `json:"records,omitempty"`

	// Errors holds the executor failures mapped to a failure outcome during this step,
	// such as *ProtocolTimeoutError. They are informational: the step itself succeeded.
	Errors []error `json:"-"`
}
