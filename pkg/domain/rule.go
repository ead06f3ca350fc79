package domain

// PermissionRule grants roles to the participants matching When.
type PermissionRule struct {
	Grant []Role    `json:"grant"`
	When  Predicate `json:"when"`
}

// PrivilegeRule grants actions to the roles matching When.
type PrivilegeRule struct {
	Grant []string  `json:"grant"`
	When  Predicate `json:"when"`
}

// Grants reports whether the rule grants the named action.
func (r PrivilegeRule) Grants(action string) bool {
	for _, a := range r.Grant {
		if a == action {
			return true
		}
	}
	return false
}
