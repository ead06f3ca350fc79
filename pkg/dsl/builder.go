package dsl

import (
	"fmt"

	"github.com/aretw0/charter/internal/compiler"
	"github.com/aretw0/charter/pkg/adapters/memory"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/governance"
)

// Builder manages the framework construction.
type Builder struct {
	fw      domain.Framework
	actions []*ActionBuilder
	states  []*StateBuilder
	byName  map[string]*StateBuilder
}

// New creates a new framework builder.
func New(name, version string) *Builder {
	return &Builder{
		fw:     domain.Framework{Name: name, Version: version},
		byName: make(map[string]*StateBuilder),
	}
}

// Describe sets the framework description.
func (b *Builder) Describe(description string) *Builder {
	b.fw.Description = description
	return b
}

// Participant adds an ecosystem participant.
func (b *Builder) Participant(id, name string) *Builder {
	b.fw.Participants = append(b.fw.Participants, domain.Participant{ID: id, Name: name})
	return b
}

// Roles declares roles. Roles used by Assign, Allow or State are declared implicitly.
func (b *Builder) Roles(roles ...domain.Role) *Builder {
	for _, r := range roles {
		b.declare(r)
	}
	return b
}

func (b *Builder) declare(r domain.Role) {
	for _, existing := range b.fw.Roles {
		if existing == r {
			return
		}
	}
	b.fw.Roles = append(b.fw.Roles, r)
}

// Assign grants role to the listed participant ids.
func (b *Builder) Assign(role domain.Role, ids ...string) *Builder {
	when := make([]domain.Predicate, 0, len(ids))
	for _, id := range ids {
		when = append(when, domain.Match(domain.FieldID, id))
	}
	return b.AssignWhen(role, domain.Any(when...))
}

// AssignWhen grants role to every participant matching the predicate.
func (b *Builder) AssignWhen(role domain.Role, when domain.Predicate) *Builder {
	b.declare(role)
	b.fw.Permissions = append(b.fw.Permissions, domain.PermissionRule{Grant: []domain.Role{role}, When: when})
	return b
}

// Allow grants the actions to holders of role.
func (b *Builder) Allow(role domain.Role, actions ...string) *Builder {
	b.declare(role)
	return b.AllowWhen(domain.Any(domain.Match(domain.FieldRole, string(role))), actions...)
}

// AllowWhen grants the actions when the predicate holds.
func (b *Builder) AllowWhen(when domain.Predicate, actions ...string) *Builder {
	b.fw.Privileges = append(b.fw.Privileges, domain.PrivilegeRule{Grant: actions, When: when})
	return b
}

// Action adds a protocol-bound action to the catalog.
func (b *Builder) Action(name, protocol string) *ActionBuilder {
	ab := &ActionBuilder{action: domain.Action{Name: name, Protocol: protocol}}
	b.actions = append(b.actions, ab)
	return ab
}

// State creates a flow state.
// If the state already exists, it returns the existing builder.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.byName[name]; ok {
		return sb
	}
	sb := &StateBuilder{state: domain.FlowState{Name: name, Actions: domain.And()}, builder: b}
	b.byName[name] = sb
	b.states = append(b.states, sb)
	return sb
}

// Framework assembles the document without validating it.
func (b *Builder) Framework() *domain.Framework {
	fw := b.fw.Clone()
	fw.Actions = make([]domain.Action, 0, len(b.actions))
	for _, ab := range b.actions {
		fw.Actions = append(fw.Actions, ab.action)
	}
	fw.Flows = make([]domain.FlowState, 0, len(b.states))
	for _, sb := range b.states {
		fw.Flows = append(fw.Flows, sb.state)
	}
	return fw.Clone()
}

// Build validates the framework and compiles it into a memory loader.
func (b *Builder) Build() (*memory.Loader, error) {
	fw := b.Framework()
	if _, err := governance.Validate(fw); err != nil {
		return nil, fmt.Errorf("failed to build framework %q: %w", fw.Name, err)
	}
	return memory.NewLoader(fw), nil
}

// Document validates the framework and encodes it as a YAML governance document.
func (b *Builder) Document() ([]byte, error) {
	fw := b.Framework()
	if _, err := governance.Validate(fw); err != nil {
		return nil, fmt.Errorf("failed to build framework %q: %w", fw.Name, err)
	}
	return compiler.Encode(fw)
}
