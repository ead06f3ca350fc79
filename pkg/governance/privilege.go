package governance

import (
	"context"
	"fmt"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/samber/lo"
)

// IsAuthorized reports whether any role of the participant is granted the action.
func (m *Model) IsAuthorized(ctx context.Context, participantID, action string) bool {
	return m.Authorize(ctx, participantID, action).Allowed
}

// Authorize evaluates every privilege rule granting the action against the participant's roles.
// Actions no rule grants are denied. The decision lists each rule and why it did or did not match.
func (m *Model) Authorize(ctx context.Context, participantID, action string) domain.Decision {
	roles := m.RolesOf(ctx, participantID)
	return m.decide(ctx, participantID, "", roles, roles, action)
}

// AuthorizeAs evaluates the action for a participant acting in one specific role.
// It is denied unless the participant holds that role; privileges then see only that role.
func (m *Model) AuthorizeAs(ctx context.Context, participantID string, role domain.Role, action string) domain.Decision {
	roles := m.RolesOf(ctx, participantID)
	if !lo.Contains(roles, role) {
		d := domain.Decision{
			Participant: participantID,
			Action:      action,
			As:          role,
			Roles:       roles,
			Reason:      fmt.Sprintf("participant holds %v, not '%s'", roles, role),
		}
		m.logger.Debug("authorization decision", "participant", participantID, "action", action, "as", role, "allowed", false)
		return d
	}
	return m.decide(ctx, participantID, role, roles, []domain.Role{role}, action)
}

func (m *Model) decide(ctx context.Context, participantID string, as domain.Role, held, acting []domain.Role, action string) domain.Decision {
	d := domain.Decision{
		Participant: participantID,
		Action:      action,
		As:          as,
		Roles:       held,
	}
	s := subject{id: m.canonicalID(participantID), roles: acting, fields: privilegeFields}

	for i, rule := range m.fw.Privileges {
		if !rule.Grants(action) {
			continue
		}
		matched := m.evaluate(ctx, rule.When, s)
		reason := fmt.Sprintf("requires %s", describe(rule.When))
		if matched {
			reason = fmt.Sprintf("satisfied by %v", acting)
		}
		d.Rules = append(d.Rules, domain.RuleEvaluation{
			Index:   i,
			Grant:   rule.Grant,
			Matched: matched,
			Reason:  reason,
		})
		if matched && !d.Allowed {
			d.Allowed = true
			d.Reason = fmt.Sprintf("granted by privileges[%d]", i)
		}
	}

	if !d.Allowed {
		if len(d.Rules) == 0 {
			d.Reason = fmt.Sprintf("no privilege rule grants '%s' (default deny)", action)
		} else {
			d.Reason = fmt.Sprintf("none of %d privilege rules granting '%s' matched roles %v", len(d.Rules), action, acting)
		}
	}

	m.logger.Debug("authorization decision",
		"participant", participantID,
		"action", action,
		"as", as,
		"allowed", d.Allowed,
		"reason", d.Reason,
	)
	return d
}
