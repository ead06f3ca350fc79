package domain

import (
	"strings"
	"time"
)

// Protocol families whose successful completion establishes a connection between two roles.
var connectionProtocols = []string{
	"https://didcomm.org/connections/",
	"https://didcomm.org/didexchange/",
	"https://didcomm.org/out-of-band/",
}

// RoleReference binds a presentation definition reference to the role that uses it.
type RoleReference struct {
	Role Role   `json:"role"`
	Ref  string `json:"ref"`
}

// PresentationDefinition is either a single reference or a per-role variant list.
// Exactly one of Ref or ByRole is set on a non-empty definition.
type PresentationDefinition struct {
	Ref    string          `json:"ref,omitempty"`
	ByRole []RoleReference `json:"by_role,omitempty"`
}

// IsZero reports whether no presentation definition was declared.
func (p *PresentationDefinition) IsZero() bool {
	return p == nil || (p.Ref == "" && len(p.ByRole) == 0)
}

// ActionDetails holds the protocol parameters of an action.
type ActionDetails struct {
	Schema                 string                  `json:"schema,omitempty"`
	PresentationDefinition *PresentationDefinition `json:"presentation_definition,omitempty"`
}

// Action is a named, protocol-bound operation.
type Action struct {
	Name         string        `json:"name"`
	Protocol     string        `json:"protocol"`
	StartMessage string        `json:"startmessage"`
	Details      ActionDetails `json:"details"`

	// Timeout bounds a single protocol execution of this action. Zero means the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// EstablishesConnection reports whether the action runs a connection protocol.
func (a Action) EstablishesConnection() bool {
	for _, prefix := range connectionProtocols {
		if strings.HasPrefix(a.Protocol, prefix) {
			return true
		}
	}
	return false
}
