package domain

import (
	"fmt"
	"strings"
)

// RuleEvaluation records how one privilege rule fared during an authorization.
type RuleEvaluation struct {
	Index   int      `json:"index"`
	Grant   []string `json:"grant"`
	Matched bool     `json:"matched"`
	Reason  string   `json:"reason"`
}

// Decision is an authorization verdict with its audit trail.
type Decision struct {
	Participant string           `json:"participant"`
	Action      string           `json:"action"`
	As          Role             `json:"as,omitempty"`
	Roles       []Role           `json:"roles"`
	Allowed     bool             `json:"allowed"`
	Reason      string           `json:"reason"`
	Rules       []RuleEvaluation `json:"rules,omitempty"`
}

// Explain renders the decision for audit logs and error messages.
func (d Decision) Explain() string {
	verdict := "denied"
	if d.Allowed {
		verdict = "allowed"
	}
	subject := d.Participant
	if d.As != "" {
		subject = fmt.Sprintf("%s as %s", d.Participant, d.As)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s for %s: %s", d.Action, verdict, subject, d.Reason)
	for _, r := range d.Rules {
		mark := "no match"
		if r.Matched {
			mark = "match"
		}
		fmt.Fprintf(&sb, "; privileges[%d] grant=%v %s (%s)", r.Index, r.Grant, mark, r.Reason)
	}
	return sb.String()
}
