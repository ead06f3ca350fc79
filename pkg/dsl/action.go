package dsl

import (
	"time"

	"github.com/aretw0/charter/pkg/domain"
)

// ActionBuilder provides a fluent API for configuring an action.
type ActionBuilder struct {
	action domain.Action
}

// StartMessage sets the protocol message that opens the exchange.
func (a *ActionBuilder) StartMessage(msg string) *ActionBuilder {
	a.action.StartMessage = msg
	return a
}

// Schema sets the credential schema the action issues or requests.
func (a *ActionBuilder) Schema(id string) *ActionBuilder {
	a.action.Details.Schema = id
	return a
}

// Presentation sets a presentation definition shared by every role.
func (a *ActionBuilder) Presentation(ref string) *ActionBuilder {
	a.action.Details.PresentationDefinition = &domain.PresentationDefinition{Ref: ref}
	return a
}

// PresentationFor adds a role-specific presentation definition.
func (a *ActionBuilder) PresentationFor(role domain.Role, ref string) *ActionBuilder {
	pd := a.action.Details.PresentationDefinition
	if pd == nil {
		pd = &domain.PresentationDefinition{}
		a.action.Details.PresentationDefinition = pd
	}
	pd.ByRole = append(pd.ByRole, domain.RoleReference{Role: role, Ref: ref})
	return a
}

// Timeout bounds a single execution of the action.
func (a *ActionBuilder) Timeout(d time.Duration) *ActionBuilder {
	a.action.Timeout = d
	return a
}

// Build returns the underlying domain.Action.
func (a *ActionBuilder) Build() domain.Action {
	return a.action
}
