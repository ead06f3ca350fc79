package compiler

import (
	"fmt"

	"github.com/aretw0/charter/pkg/domain"
	"gopkg.in/yaml.v3"
)

// document is the wire shape of a governance framework. JSON documents are
// valid YAML flow documents, so a single decoder handles both.
type document struct {
	Context       stringList `yaml:"@context"`
	Name          string     `yaml:"name"`
	Version       string     `yaml:"version"`
	Format        string     `yaml:"format"`
	ID            string     `yaml:"id"`
	Description   string     `yaml:"description"`
	LastUpdated   string     `yaml:"last_updated"`
	DocsURI       string     `yaml:"docs_uri"`
	DataURI       string     `yaml:"data_uri"`
	Topics        stringList `yaml:"topics"`
	Jurisdictions stringList `yaml:"jurisdictions"`
	Geos          stringList `yaml:"geos"`

	Schemas      []domain.Schema      `yaml:"schemas"`
	CredDefs     []domain.Schema      `yaml:"cred_defs"`
	Participants []domain.Participant `yaml:"participants"`
	Roles        []domain.Role        `yaml:"roles"`
	Permissions  []ruleDoc            `yaml:"permissions"`
	Actions      []actionDoc          `yaml:"actions"`
	Privileges   []ruleDoc            `yaml:"privileges"`
	Flows        flowsDoc             `yaml:"flows"`
}

type ruleDoc struct {
	Grant stringList `yaml:"grant"`
	When  any        `yaml:"when"`
}

type actionDoc struct {
	Name         string     `yaml:"name"`
	Protocol     string     `yaml:"protocol"`
	StartMessage string     `yaml:"startmessage"`
	Details      detailsDoc `yaml:"details"`
	Timeout      string     `yaml:"timeout"`
}

type detailsDoc struct {
	Schema string `yaml:"schema"`
	// Either a reference string, a list of single-key {role: ref} maps or a {role: ref} mapping.
	PresentationDefinition yaml.Node `yaml:"presentation_definition"`
}

type flowDoc struct {
	Name       string             `yaml:"name"`
	Role       domain.Role        `yaml:"role"`
	Initial    bool               `yaml:"initial"`
	Conditions []domain.Condition `yaml:"conditions"`
	Actions    any                `yaml:"actions"`
	Next       nextDoc            `yaml:"next"`
	Fallback   stateRef           `yaml:"fallback"`
}

type nextDoc struct {
	Success []stateRef `yaml:"success"`
	Failure []stateRef `yaml:"failure"`
}

// stateRef accepts both `"state-name"` and `{"name": "state-name"}`.
type stateRef struct {
	Name string
}

func (r *stateRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag != "!!null" {
			r.Name = value.Value
		}
		return nil
	}
	var aux struct {
		Name string `yaml:"name"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	r.Name = aux.Name
	return nil
}

func refNames(refs []stateRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = stringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}

// flowsDoc keeps flow states in document order. The canonical form is a
// mapping keyed by state name; a list of states carrying a name is also accepted.
type flowsDoc []flowDoc

func (f *flowsDoc) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		out := make(flowsDoc, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			var state flowDoc
			if err := value.Content[i+1].Decode(&state); err != nil {
				return fmt.Errorf("flow '%s': %w", value.Content[i].Value, err)
			}
			state.Name = value.Content[i].Value
			out = append(out, state)
		}
		*f = out
		return nil
	case yaml.SequenceNode:
		var out []flowDoc
		if err := value.Decode(&out); err != nil {
			return err
		}
		*f = out
		return nil
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*f = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: flows must be a mapping of state name to state", value.Line)
}
