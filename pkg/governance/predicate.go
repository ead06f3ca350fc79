package governance

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/samber/lo"
)

// Atom fields each rule family understands. Permission rules look at the participant,
// privilege rules at the roles the participant acts in.
var (
	permissionFields = map[string]bool{domain.FieldID: true, domain.FieldSchema: true, domain.FieldCredDef: true}
	privilegeFields  = map[string]bool{domain.FieldID: true, domain.FieldRole: true}
)

// subject is what a predicate is evaluated against.
type subject struct {
	id     string
	roles  []domain.Role
	fields map[string]bool
}

// evaluate walks the tree left to right, short-circuiting Any on the first true child
// and All on the first false one. Anything it cannot interpret evaluates to false.
func (m *Model) evaluate(ctx context.Context, p domain.Predicate, s subject) bool {
	switch p.Kind {
	case domain.PredicateAtom:
		return m.atom(ctx, p.Atom, s)
	case domain.PredicateAny:
		for _, c := range p.Children {
			if m.evaluate(ctx, c, s) {
				return true
			}
		}
		return false
	case domain.PredicateAll:
		if len(p.Children) == 0 {
			m.logger.Warn("empty 'all' predicate evaluates to false")
			return false
		}
		for _, c := range p.Children {
			if !m.evaluate(ctx, c, s) {
				return false
			}
		}
		return true
	}
	m.logger.Warn("unknown predicate kind evaluates to false", "kind", p.Kind)
	return false
}

func (m *Model) atom(ctx context.Context, a *domain.Atom, s subject) bool {
	if a == nil {
		m.logger.Warn("predicate atom without a condition evaluates to false")
		return false
	}
	if !s.fields[a.Field] {
		m.logger.Warn("unsupported predicate field evaluates to false", "field", a.Field, "value", a.Value)
		return false
	}

	switch a.Field {
	case domain.FieldID:
		return m.sameParticipant(s.id, a.Value)
	case domain.FieldRole:
		return lo.Contains(s.roles, domain.Role(a.Value))
	case domain.FieldSchema, domain.FieldCredDef:
		return m.holdsCredential(ctx, a, s.id)
	}
	return false
}

// sameParticipant compares a participant against a predicate value, which may be
// an id, a participant name, or a DID whose method-specific part matches.
func (m *Model) sameParticipant(id, ref string) bool {
	if id == "" || ref == "" {
		return false
	}
	return id == m.canonicalID(ref) || domain.ShortDID(id) == domain.ShortDID(ref)
}

func (m *Model) holdsCredential(ctx context.Context, a *domain.Atom, participantID string) bool {
	var q ports.CredentialQuery
	switch a.Field {
	case domain.FieldSchema:
		q.SchemaID = lookup(m.schemas, a.Value)
	case domain.FieldCredDef:
		q.CredDefID = lookup(m.credDefs, a.Value)
	}
	if a.Issuer != "" {
		q.IssuerID = m.canonicalID(a.Issuer)
	}

	if m.verifier == nil {
		m.logger.Debug("no credential verifier configured", "participant", participantID, "field", a.Field, "value", a.Value)
		return false
	}
	ok, err := m.verifier.HoldsCredential(ctx, participantID, q)
	if err != nil {
		m.logger.Warn("credential check failed, evaluating to false", "participant", participantID, "field", a.Field, "value", a.Value, "err", err)
		return false
	}
	return ok
}

func lookup(index map[string]string, key string) string {
	if v, ok := index[key]; ok {
		return v
	}
	return key
}

// describe renders a predicate compactly for decision reasons.
func describe(p domain.Predicate) string {
	switch p.Kind {
	case domain.PredicateAtom:
		if p.Atom == nil {
			return "?"
		}
		if p.Atom.Issuer != "" {
			return fmt.Sprintf("%s=%s@%s", p.Atom.Field, p.Atom.Value, p.Atom.Issuer)
		}
		return fmt.Sprintf("%s=%s", p.Atom.Field, p.Atom.Value)
	case domain.PredicateAny, domain.PredicateAll:
		parts := lo.Map(p.Children, func(c domain.Predicate, _ int) string { return describe(c) })
		return fmt.Sprintf("%s(%s)", p.Kind, strings.Join(parts, ", "))
	}
	return string(p.Kind)
}
