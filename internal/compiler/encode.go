package compiler

import (
	"fmt"

	"github.com/aretw0/charter/pkg/domain"
	"gopkg.in/yaml.v3"
)

type encDocument struct {
	Context       []string `yaml:"@context,omitempty"`
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Format        string   `yaml:"format,omitempty"`
	ID            string   `yaml:"id,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	LastUpdated   string   `yaml:"last_updated,omitempty"`
	DocsURI       string   `yaml:"docs_uri,omitempty"`
	DataURI       string   `yaml:"data_uri,omitempty"`
	Topics        []string `yaml:"topics,omitempty"`
	Jurisdictions []string `yaml:"jurisdictions,omitempty"`
	Geos          []string `yaml:"geos,omitempty"`

	Schemas      []domain.Schema      `yaml:"schemas,omitempty"`
	CredDefs     []domain.Schema      `yaml:"cred_defs,omitempty"`
	Participants []domain.Participant `yaml:"participants,omitempty"`
	Roles        []domain.Role        `yaml:"roles,omitempty"`
	Permissions  []encRule            `yaml:"permissions,omitempty"`
	Actions      []encAction          `yaml:"actions,omitempty"`
	Privileges   []encRule            `yaml:"privileges,omitempty"`
	Flows        encFlows             `yaml:"flows,omitempty"`
}

type encRule struct {
	Grant []string `yaml:"grant"`
	When  any      `yaml:"when"`
}

type encAction struct {
	Name         string     `yaml:"name"`
	Protocol     string     `yaml:"protocol"`
	StartMessage string     `yaml:"startmessage"`
	Details      encDetails `yaml:"details"`
	Timeout      string     `yaml:"timeout,omitempty"`
}

type encDetails struct {
	Schema                 string `yaml:"schema,omitempty"`
	PresentationDefinition any    `yaml:"presentation_definition,omitempty"`
}

type encFlow struct {
	Role       domain.Role        `yaml:"role"`
	Initial    bool               `yaml:"initial,omitempty"`
	Conditions []domain.Condition `yaml:"conditions,omitempty"`
	Actions    []any              `yaml:"actions,omitempty"`
	Next       encNext            `yaml:"next,omitempty"`
	Fallback   string             `yaml:"fallback,omitempty"`
}

type encNext struct {
	Success []string `yaml:"success,omitempty"`
	Failure []string `yaml:"failure,omitempty"`
}

type encLeaf struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target,omitempty"`
	Next   string `yaml:"next,omitempty"`
}

type namedFlow struct {
	Name  string
	State encFlow
}

// encFlows serializes as a mapping keyed by state name, in declaration order.
type encFlows []namedFlow

func (f encFlows) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, nf := range f {
		var value yaml.Node
		if err := value.Encode(nf.State); err != nil {
			return nil, fmt.Errorf("flow '%s': %w", nf.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: nf.Name},
			&value,
		)
	}
	return node, nil
}

// Encode serializes a framework back to YAML. Parse(Encode(fw)) yields a framework
// equal to fw: declaration order, per-role presentation definitions and action trees are kept.
func Encode(fw *domain.Framework) ([]byte, error) {
	doc := encDocument{
		Context:       fw.Context,
		Name:          fw.Name,
		Version:       fw.Version,
		Format:        fw.Format,
		ID:            fw.ID,
		Description:   fw.Description,
		LastUpdated:   fw.LastUpdated,
		DocsURI:       fw.DocsURI,
		DataURI:       fw.DataURI,
		Topics:        fw.Topics,
		Jurisdictions: fw.Jurisdictions,
		Geos:          fw.Geos,
		Schemas:       fw.Schemas,
		CredDefs:      fw.CredDefs,
		Participants:  fw.Participants,
		Roles:         fw.Roles,
	}

	for _, r := range fw.Permissions {
		grant := make([]string, 0, len(r.Grant))
		for _, g := range r.Grant {
			grant = append(grant, string(g))
		}
		doc.Permissions = append(doc.Permissions, encRule{Grant: grant, When: encodePredicate(r.When)})
	}
	for _, r := range fw.Privileges {
		doc.Privileges = append(doc.Privileges, encRule{Grant: r.Grant, When: encodePredicate(r.When)})
	}
	for _, a := range fw.Actions {
		doc.Actions = append(doc.Actions, encodeAction(a))
	}
	for _, s := range fw.Flows {
		doc.Flows = append(doc.Flows, namedFlow{
			Name: s.Name,
			State: encFlow{
				Role:       s.Role,
				Initial:    s.Initial,
				Conditions: s.Conditions,
				Actions:    encodeRootExpr(s.Actions),
				Next:       encNext{Success: s.Next.Success, Failure: s.Next.Failure},
				Fallback:   s.Fallback,
			},
		})
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode framework: %w", err)
	}
	return out, nil
}

func encodeAction(a domain.Action) encAction {
	out := encAction{
		Name:         a.Name,
		Protocol:     a.Protocol,
		StartMessage: a.StartMessage,
		Details:      encDetails{Schema: a.Details.Schema},
	}
	if pd := a.Details.PresentationDefinition; !pd.IsZero() {
		if pd.Ref != "" {
			out.Details.PresentationDefinition = pd.Ref
		} else {
			entries := make([]map[string]string, 0, len(pd.ByRole))
			for _, rr := range pd.ByRole {
				entries = append(entries, map[string]string{string(rr.Role): rr.Ref})
			}
			out.Details.PresentationDefinition = entries
		}
	}
	if a.Timeout > 0 {
		out.Timeout = a.Timeout.String()
	}
	return out
}

func encodePredicate(p domain.Predicate) any {
	switch p.Kind {
	case domain.PredicateAtom:
		if p.Atom == nil {
			return nil
		}
		m := map[string]string{p.Atom.Field: p.Atom.Value}
		if p.Atom.Issuer != "" {
			m["issuer"] = p.Atom.Issuer
		}
		return m
	case domain.PredicateAny, domain.PredicateAll:
		children := make([]any, 0, len(p.Children))
		for _, c := range p.Children {
			children = append(children, encodePredicate(c))
		}
		return map[string]any{string(p.Kind): children}
	}
	return nil
}

// encodeRootExpr writes the state's action list. A list is read back as an implicit
// conjunction, so only a plain multi-child And can be flattened into it.
func encodeRootExpr(e domain.ActionExpr) []any {
	if e.Kind == "" {
		return nil
	}
	if e.Kind == domain.ExprAnd && e.Next == "" && len(e.Children) != 1 {
		if len(e.Children) == 0 {
			return nil
		}
		out := make([]any, 0, len(e.Children))
		for _, c := range e.Children {
			out = append(out, encodeExpr(c))
		}
		return out
	}
	return []any{encodeExpr(e)}
}

func encodeExpr(e domain.ActionExpr) any {
	if e.Kind == domain.ExprLeaf {
		return encLeaf{Name: e.Action, Target: string(e.Target), Next: e.Next}
	}
	children := make([]any, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, encodeExpr(c))
	}
	m := map[string]any{string(e.Kind): children}
	if e.Next != "" {
		m["next"] = e.Next
	}
	return m
}
