package governance

import (
	"io"
	"log/slog"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/dominikbraun/graph"
	"github.com/samber/lo"
)

// Model is a compiled, validated governance framework.
// It is immutable after Compile and safe for concurrent use by any number of sessions.
type Model struct {
	fw       *domain.Framework
	logger   *slog.Logger
	verifier ports.CredentialVerifier

	participants map[string]int // id and name -> index
	shortIDs     map[string]int // method-specific DID -> index
	roles        map[domain.Role]bool
	flows        map[string]int
	schemas      map[string]string // name or id -> id
	credDefs     map[string]string

	catalog  *Catalog
	graph    graph.Graph[string, string]
	warnings []string
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger used for fail-closed predicates and decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithCredentialVerifier enables `schema` and `cred_def` atoms.
// Without a verifier those atoms evaluate to false.
func WithCredentialVerifier(v ports.CredentialVerifier) Option {
	return func(m *Model) {
		m.verifier = v
	}
}

// Compile validates the framework and builds the read-only indexes used by every evaluation.
// The framework is copied: later changes to fw do not affect the model.
func Compile(fw *domain.Framework, opts ...Option) (*Model, error) {
	report, err := Validate(fw)
	if err != nil {
		return nil, err
	}

	m := &Model{
		fw:           fw.Clone(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		participants: make(map[string]int, len(fw.Participants)*2),
		shortIDs:     make(map[string]int, len(fw.Participants)),
		roles:        make(map[domain.Role]bool, len(fw.Roles)),
		flows:        make(map[string]int, len(fw.Flows)),
		schemas:      make(map[string]string, len(fw.Schemas)*2),
		credDefs:     make(map[string]string, len(fw.CredDefs)*2),
		graph:        report.graph,
		warnings:     report.Warnings,
	}
	for _, opt := range opts {
		opt(m)
	}

	// Names are aliases; ids always win over a colliding name.
	for i, p := range m.fw.Participants {
		if p.Name != "" {
			m.participants[p.Name] = i
		}
	}
	for i, p := range m.fw.Participants {
		m.participants[p.ID] = i
		m.shortIDs[domain.ShortDID(p.ID)] = i
	}
	for _, r := range m.fw.Roles {
		m.roles[r] = true
	}
	for i, s := range m.fw.Flows {
		m.flows[s.Name] = i
	}
	for _, s := range m.fw.Schemas {
		m.schemas[s.Name] = s.ID
		m.schemas[s.ID] = s.ID
	}
	for _, s := range m.fw.CredDefs {
		m.credDefs[s.Name] = s.ID
		m.credDefs[s.ID] = s.ID
	}
	m.catalog = NewCatalog(m.fw.Actions)

	for _, w := range m.warnings {
		m.logger.Warn("governance framework warning", "framework", m.fw.Name, "warning", w)
	}
	return m, nil
}

// Name returns the framework name.
func (m *Model) Name() string { return m.fw.Name }

// Version returns the framework version.
func (m *Model) Version() string { return m.fw.Version }

// Framework returns a copy of the compiled document.
func (m *Model) Framework() *domain.Framework { return m.fw.Clone() }

// Warnings returns non-fatal findings from validation (unreachable states, unknown atom fields).
func (m *Model) Warnings() []string { return append([]string(nil), m.warnings...) }

// Catalog returns the action catalog.
func (m *Model) Catalog() *Catalog { return m.catalog }

// Roles returns the declared roles in document order.
func (m *Model) Roles() []domain.Role { return append([]domain.Role(nil), m.fw.Roles...) }

// HasRole reports whether the role is declared.
func (m *Model) HasRole(r domain.Role) bool { return m.roles[r] }

// Participants returns the declared participants in document order.
func (m *Model) Participants() []domain.Participant {
	return append([]domain.Participant(nil), m.fw.Participants...)
}

// Participant looks a participant up by id, by name, or by the method-specific part of its DID.
func (m *Model) Participant(ref string) (domain.Participant, bool) {
	if i, ok := m.participants[ref]; ok {
		return m.fw.Participants[i], true
	}
	if i, ok := m.shortIDs[domain.ShortDID(ref)]; ok {
		return m.fw.Participants[i], true
	}
	return domain.Participant{}, false
}

// canonicalID maps a name alias or DID variant to the declared participant id.
// Undeclared ids are returned unchanged: predicates may name participants the document does not list.
func (m *Model) canonicalID(ref string) string {
	if p, ok := m.Participant(ref); ok {
		return p.ID
	}
	return ref
}

// Flows returns every flow state in document order.
func (m *Model) Flows() []domain.FlowState {
	return lo.Map(m.fw.Flows, func(s domain.FlowState, _ int) domain.FlowState { return s.Clone() })
}

// FlowState returns the named flow state.
func (m *Model) FlowState(name string) (domain.FlowState, bool) {
	i, ok := m.flows[name]
	if !ok {
		return domain.FlowState{}, false
	}
	return m.fw.Flows[i].Clone(), true
}

// InitialStates returns the entry states in document order.
func (m *Model) InitialStates() []domain.FlowState {
	var out []domain.FlowState
	for _, s := range m.fw.Flows {
		if s.Initial {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Reachable returns the states reachable from start (start included) in breadth-first order.
// An unknown start reaches nothing.
func (m *Model) Reachable(start string) []string {
	var out []string
	if err := graph.BFS(m.graph, start, func(name string) bool {
		out = append(out, name)
		return false
	}); err != nil {
		m.logger.Warn("cannot walk flow graph", "start", start, "err", err)
		return nil
	}
	return out
}

// RequiredRoles returns every role a session entering at start must bind:
// owners of reachable states, leaf targets, and condition targets.
func (m *Model) RequiredRoles(start string) []domain.Role {
	seen := make(map[domain.Role]bool)
	var out []domain.Role
	add := func(r domain.Role) {
		if r != "" && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, name := range m.Reachable(start) {
		s, ok := m.FlowState(name)
		if !ok {
			continue
		}
		add(s.Role)
		for _, l := range s.Actions.Leaves() {
			add(l.Target)
		}
		for _, c := range s.Conditions {
			add(c.Target)
		}
	}
	return out
}
