package domain

import "strings"

// Role is a capability label declared by the framework.
type Role string

// ParticipantMetadata is the human-facing description of a participant.
type ParticipantMetadata struct {
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Sublabel string `json:"sublabel,omitempty" yaml:"sublabel,omitempty"`
	Website  string `json:"website,omitempty" yaml:"website,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Participant is an identified actor of the ecosystem (government, hospital, business).
type Participant struct {
	ID       string              `json:"id" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Metadata ParticipantMetadata `json:"describe" yaml:"describe"`
}

// Schema names a credential schema (or credential definition) by id.
type Schema struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ShortDID returns the method-specific identifier of a DID ("did:sov:X" -> "X").
// Plain identifiers are returned unchanged.
func ShortDID(id string) string {
	if !strings.HasPrefix(id, "did:") {
		return id
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}
