package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestActionExpr_String(t *testing.T) {
	connect := domain.ActionExpr{Kind: domain.ExprLeaf, Action: "connect", Target: "health_issuer"}
	assert.Equal(t, "connect->health_issuer", connect.String())

	vaccine := domain.Leaf("issue_vaccine")
	vaccine.Next = "travel"
	expr := domain.Or(domain.And(domain.Leaf("issue_lab_order"), domain.Leaf("issue_lab_result")), vaccine)
	assert.Equal(t, "(issue_lab_order AND issue_lab_result) OR issue_vaccine=>travel", expr.String())

	assert.Equal(t, []string{"issue_lab_order", "issue_lab_result", "issue_vaccine"}, actionNames(expr.Leaves()))
	assert.True(t, expr.Contains("issue_vaccine"))
	assert.False(t, expr.Contains("connect"))
}

func actionNames(leaves []domain.ActionExpr) []string {
	out := make([]string, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, l.Action)
	}
	return out
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := domain.NewSession("s-1", "aruba", "start", map[domain.Role]string{"holder": "did:example:traveler"})
	c := s.Clone()
	c.Bindings["holder"] = "did:example:other"
	c.History = append(c.History, "next")
	c.Connections = append(c.Connections, domain.Connection{From: "holder", To: "issuer"})

	assert.Equal(t, "did:example:traveler", s.Bindings["holder"])
	assert.Equal(t, []string{"start"}, s.History)
	assert.False(t, s.HasConnection("issuer", "holder"))
	assert.True(t, c.HasConnection("issuer", "holder"))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{&domain.ValidationError{Issues: []string{"x"}}, domain.ErrValidation},
		{&domain.UnauthorizedError{Kind: domain.UnauthorizedAction}, domain.ErrUnauthorized},
		{&domain.PreconditionError{State: "s"}, domain.ErrPreconditionNotMet},
		{&domain.UnknownActionError{Action: "a"}, domain.ErrUnknownAction},
		{&domain.AmbiguousPresentationDefinitionError{Action: "a"}, domain.ErrAmbiguousPresentationDefinition},
		{&domain.ProtocolTimeoutError{Action: "a"}, domain.ErrProtocolTimeout},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.target)
		assert.False(t, errors.Is(tt.err, context.Canceled))
	}
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnStateEnter: func(context.Context, *domain.StateEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnStateEnter: func(context.Context, *domain.StateEvent) { calls = append(calls, "b") }}

	merged := a.Merge(b).Merge(domain.LifecycleHooks{})
	merged.OnStateEnter(context.Background(), &domain.StateEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, merged.OnSessionEnd)
}
