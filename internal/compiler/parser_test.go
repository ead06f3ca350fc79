package compiler_test

import (
	"testing"
	"time"

	"github.com/aretw0/charter/internal/compiler"
	"github.com/aretw0/charter/internal/testutils"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Aruba(t *testing.T) {
	fw := testutils.LoadAruba(t)

	assert.Equal(t, "Aruba Health and Travel", fw.Name)
	assert.Equal(t, "0.2", fw.Version)
	assert.Equal(t, []string{"ABW"}, fw.Geos)
	require.Len(t, fw.Participants, 3)
	assert.Equal(t, "Aruba", fw.Participants[0].Metadata.Label)
	assert.Len(t, fw.Roles, 6)
	assert.Len(t, fw.Permissions, 5)
	assert.Len(t, fw.Actions, 12)
	assert.Len(t, fw.Privileges, 11)

	t.Run("Flows keep document order", func(t *testing.T) {
		names := make([]string, 0, len(fw.Flows))
		for _, f := range fw.Flows {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{
			"connect-to-health-issuer",
			"health-verify-identity",
			"health-issue-credential",
			"connect-to-travel-issuer",
			"travel-verify-holder",
			"travel-issue-credential",
		}, names)
	})

	t.Run("Single action list collapses to a leaf", func(t *testing.T) {
		connect := fw.Flows[0]
		assert.Equal(t, domain.ExprLeaf, connect.Actions.Kind)
		assert.Equal(t, "connect", connect.Actions.Action)
		assert.Equal(t, domain.Role("health_issuer"), connect.Actions.Target)
		assert.Equal(t, []string{"health-verify-identity"}, connect.Next.Success)
	})

	t.Run("Nested or/and tree", func(t *testing.T) {
		issue := fw.Flows[2]
		require.Equal(t, domain.ExprOr, issue.Actions.Kind)
		require.Len(t, issue.Actions.Children, 3)
		assert.Equal(t, domain.And(domain.Leaf("issue_lab_order"), domain.Leaf("issue_lab_result")), issue.Actions.Children[0])
		assert.Equal(t, domain.Leaf("issue_vaccine"), issue.Actions.Children[1])
	})

	t.Run("Conditions", func(t *testing.T) {
		verify := fw.Flows[1]
		assert.Equal(t, []domain.Condition{{Type: domain.ConditionConnection, Target: "holder"}}, verify.Conditions)
	})

	t.Run("Per-role presentation definition keeps role order", func(t *testing.T) {
		var action domain.Action
		for _, a := range fw.Actions {
			if a.Name == "verify_trusted_traveler" {
				action = a
			}
		}
		require.NotNil(t, action.Details.PresentationDefinition)
		pd := action.Details.PresentationDefinition
		assert.Empty(t, pd.Ref)
		require.Len(t, pd.ByRole, 2)
		assert.Equal(t, domain.Role("travel_verifier"), pd.ByRole[0].Role)
		assert.Equal(t, domain.Role("hospitality_verifier"), pd.ByRole[1].Role)
	})

	t.Run("Empty details", func(t *testing.T) {
		assert.True(t, fw.Actions[0].Details.PresentationDefinition.IsZero())
	})
}

func TestParse_YAMLForms(t *testing.T) {
	doc := `
name: forms
version: "1"
roles: [member, admin]
participants:
  - id: did:sov:abc
    name: Alpha
permissions:
  - grant: member
    when:
      or:
        - id: did:sov:abc
        - schema: s1
          issuer: did:sov:gov
  - grant: [admin]
    when:
      and:
        - role: member
        - cred_def: cd1
  - grant: [admin]
    when:
      favourite_color: blue
actions:
  - name: ping
    protocol: https://didcomm.org/trust-ping/2.0/
    startmessage: ping
    timeout: 45s
  - name: pong
    protocol: https://didcomm.org/trust-ping/2.0/
    startmessage: ping
    timeout: 2
    details:
      presentation_definition:
        admin: ref-admin
        member: ref-member
privileges:
  - grant: [ping]
    when:
      - role: member
flows:
  - name: start
    role: member
    initial: true
    actions: ping
    next:
      success: [end]
      failure: [recover]
  - name: end
    role: admin
    actions:
      - any:
          - name: ping
            next: recover
          - pong
  - name: recover
    role: admin
    fallback: end
`
	fw, err := compiler.Parse([]byte(doc))
	require.NoError(t, err)

	require.Len(t, fw.Permissions, 3)
	assert.Equal(t, []domain.Role{"member"}, fw.Permissions[0].Grant)

	or := fw.Permissions[0].When
	assert.Equal(t, domain.PredicateAny, or.Kind)
	require.Len(t, or.Children, 2)
	assert.Equal(t, &domain.Atom{Field: domain.FieldSchema, Value: "s1", Issuer: "did:sov:gov"}, or.Children[1].Atom)

	assert.Equal(t, domain.PredicateAll, fw.Permissions[1].When.Kind)
	assert.Equal(t, domain.Match("favourite_color", "blue"), fw.Permissions[2].When)

	assert.Equal(t, 45*time.Second, fw.Actions[0].Timeout)
	assert.Equal(t, 2*time.Second, fw.Actions[1].Timeout)
	assert.Equal(t, []domain.RoleReference{
		{Role: "admin", Ref: "ref-admin"},
		{Role: "member", Ref: "ref-member"},
	}, fw.Actions[1].Details.PresentationDefinition.ByRole)

	assert.Equal(t, domain.PredicateAny, fw.Privileges[0].When.Kind, "bare list is a disjunction")

	require.Len(t, fw.Flows, 3)
	assert.Equal(t, domain.Leaf("ping"), fw.Flows[0].Actions)
	assert.Equal(t, []string{"recover"}, fw.Flows[0].Next.Failure)

	or2 := fw.Flows[1].Actions
	assert.Equal(t, domain.ExprOr, or2.Kind)
	assert.Equal(t, "recover", or2.Children[0].Next)
	assert.Equal(t, domain.Leaf("pong"), or2.Children[1])

	assert.True(t, fw.Flows[2].Actions.IsEmpty())
	assert.Equal(t, "end", fw.Flows[2].Fallback)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"Malformed", `{"name": `, "malformed document"},
		{"Missing when", `{"permissions": [{"grant": ["a"]}]}`, "missing 'when'"},
		{"Leaf without name", `{"flows": {"s": {"role": "r", "actions": [{"target": "x"}]}}}`, "without 'name'"},
		{"Unknown leaf key", `{"flows": {"s": {"role": "r", "actions": [{"name": "a", "color": "x"}]}}}`, "color"},
		{"Mixed group", `{"flows": {"s": {"role": "r", "actions": [{"and": [], "or": []}]}}}`, "one group"},
		{"Dangling issuer", `{"permissions": [{"grant": ["a"], "when": {"issuer": "x"}}]}`, "issuer"},
		{"Bad timeout", `{"actions": [{"name": "a", "timeout": "soon"}]}`, "invalid timeout"},
		{"NaN timeout", `{"actions": [{"name": "a", "timeout": "NaN"}]}`, "not a finite number"},
		{"Infinite timeout", `{"actions": [{"name": "a", "timeout": "+Inf"}]}`, "not a finite number"},
		{"Huge timeout", `{"actions": [{"name": "a", "timeout": 1e30}]}`, "out of range"},
		{"Bad presentation definition", `{"actions": [{"name": "a", "details": {"presentation_definition": [{"a": "1", "b": "2"}]}}]}`, "single"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_CollectsEveryIssue(t *testing.T) {
	doc := `{
		"permissions": [{"grant": ["a"]}],
		"privileges": [{"grant": ["b"]}]
	}`
	_, err := compiler.Parse([]byte(doc))
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)
}

func TestEncode_RoundTrip(t *testing.T) {
	fw := testutils.LoadAruba(t)
	fw.Actions[0].Timeout = 90 * time.Second
	fw.Flows[1].Fallback = "connect-to-health-issuer"
	fw.Flows[2].Actions.Children[1].Next = "travel-verify-holder"
	fw.Permissions = append(fw.Permissions, domain.PermissionRule{
		Grant: []domain.Role{"holder"},
		When: domain.All(
			domain.Match(domain.FieldRole, "holder"),
			domain.Predicate{Kind: domain.PredicateAtom, Atom: &domain.Atom{Field: domain.FieldSchema, Value: "s", Issuer: testutils.Government}},
		),
	})

	data, err := compiler.Encode(fw)
	require.NoError(t, err)

	again, err := compiler.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, fw, again)

	// Encoding is stable.
	data2, err := compiler.Encode(again)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(data2))
}

func TestEncode_RootExpressions(t *testing.T) {
	exprs := []domain.ActionExpr{
		domain.Leaf("a"),
		domain.And(domain.Leaf("a"), domain.Leaf("b")),
		domain.And(domain.Leaf("a")),
		domain.Or(domain.Leaf("a"), domain.And(domain.Leaf("b"), domain.Leaf("c"))),
		func() domain.ActionExpr { e := domain.And(domain.Leaf("a"), domain.Leaf("b")); e.Next = "s"; return e }(),
	}

	for _, e := range exprs {
		fw := &domain.Framework{
			Name:    "x",
			Version: "1",
			Flows:   []domain.FlowState{{Name: "s", Role: "r", Initial: true, Actions: e}},
		}
		data, err := compiler.Encode(fw)
		require.NoError(t, err)

		again, err := compiler.Parse(data)
		require.NoError(t, err)
		require.Len(t, again.Flows, 1)
		assert.Equal(t, e, again.Flows[0].Actions, string(data))
	}
}
