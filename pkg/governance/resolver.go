package governance

import (
	"context"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/samber/lo"
)

// RolesOf returns the roles granted to a participant by the permission rules, in declaration
// order and without duplicates. Unknown participants get an empty set, never an error.
func (m *Model) RolesOf(ctx context.Context, participantID string) []domain.Role {
	s := subject{id: m.canonicalID(participantID), fields: permissionFields}

	roles := []domain.Role{}
	for _, rule := range m.fw.Permissions {
		if !m.evaluate(ctx, rule.When, s) {
			continue
		}
		roles = append(roles, rule.Grant...)
	}
	return lo.Uniq(roles)
}

// HoldsRole reports whether the participant is granted the role.
func (m *Model) HoldsRole(ctx context.Context, participantID string, role domain.Role) bool {
	return lo.Contains(m.RolesOf(ctx, participantID), role)
}
