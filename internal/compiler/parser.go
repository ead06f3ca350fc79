package compiler

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Combinator keys accepted in predicates and action expressions.
// "and"/"or" and "all"/"any" are synonyms.
var (
	anyKeys = map[string]bool{"any": true, "or": true}
	allKeys = map[string]bool{"all": true, "and": true}
)

// atomDoc is the mapstructure view of a predicate leaf.
type atomDoc struct {
	ID      string `mapstructure:"id"`
	Role    string `mapstructure:"role"`
	Schema  string `mapstructure:"schema"`
	CredDef string `mapstructure:"cred_def"`
	Issuer  string `mapstructure:"issuer"`
}

// leafDoc is the mapstructure view of an action leaf.
type leafDoc struct {
	Name   string `mapstructure:"name"`
	Target string `mapstructure:"target"`
	Next   string `mapstructure:"next"`
}

// Parse decodes a governance framework document (JSON or YAML) into the domain model.
// Structural problems are collected and returned together as a *domain.ValidationError.
// Cross-reference checks (unknown roles, dangling states) belong to the governance model.
func Parse(data []byte) (*domain.Framework, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.ValidationError{Issues: []string{fmt.Sprintf("malformed document: %v", err)}}
	}

	p := &parser{}
	fw := p.framework(&doc)
	if len(p.issues) > 0 {
		return nil, &domain.ValidationError{Issues: p.issues}
	}
	return fw, nil
}

type parser struct {
	issues []string
}

func (p *parser) fail(format string, args ...any) {
	p.issues = append(p.issues, fmt.Sprintf(format, args...))
}

func (p *parser) framework(doc *document) *domain.Framework {
	fw := &domain.Framework{
		Context:       doc.Context,
		Name:          doc.Name,
		Version:       doc.Version,
		Format:        doc.Format,
		ID:            doc.ID,
		Description:   doc.Description,
		LastUpdated:   doc.LastUpdated,
		DocsURI:       doc.DocsURI,
		DataURI:       doc.DataURI,
		Topics:        doc.Topics,
		Jurisdictions: doc.Jurisdictions,
		Geos:          doc.Geos,
		Schemas:       doc.Schemas,
		CredDefs:      doc.CredDefs,
		Participants:  doc.Participants,
		Roles:         doc.Roles,
	}

	for i, r := range doc.Permissions {
		when, ok := p.rulePredicate(fmt.Sprintf("permissions[%d]", i), r.When)
		if !ok {
			continue
		}
		grant := make([]domain.Role, 0, len(r.Grant))
		for _, g := range r.Grant {
			grant = append(grant, domain.Role(g))
		}
		fw.Permissions = append(fw.Permissions, domain.PermissionRule{Grant: grant, When: when})
	}

	for i, a := range doc.Actions {
		if action, ok := p.action(i, a); ok {
			fw.Actions = append(fw.Actions, action)
		}
	}

	for i, r := range doc.Privileges {
		when, ok := p.rulePredicate(fmt.Sprintf("privileges[%d]", i), r.When)
		if !ok {
			continue
		}
		fw.Privileges = append(fw.Privileges, domain.PrivilegeRule{Grant: []string(r.Grant), When: when})
	}

	for i, f := range doc.Flows {
		if state, ok := p.flowState(i, f); ok {
			fw.Flows = append(fw.Flows, state)
		}
	}
	return fw
}

func (p *parser) rulePredicate(path string, raw any) (domain.Predicate, bool) {
	if raw == nil {
		p.fail("%s: missing 'when' predicate", path)
		return domain.Predicate{}, false
	}
	pred, err := parsePredicate(raw)
	if err != nil {
		p.fail("%s.when: %v", path, err)
		return domain.Predicate{}, false
	}
	return pred, true
}

func (p *parser) action(i int, a actionDoc) (domain.Action, bool) {
	path := fmt.Sprintf("actions[%d]", i)
	if a.Name != "" {
		path = fmt.Sprintf("action '%s'", a.Name)
	}

	action := domain.Action{
		Name:         a.Name,
		Protocol:     a.Protocol,
		StartMessage: a.StartMessage,
		Details:      domain.ActionDetails{Schema: a.Details.Schema},
	}

	ok := true
	pd, err := parsePresentationDefinition(&a.Details.PresentationDefinition)
	if err != nil {
		p.fail("%s: presentation_definition: %v", path, err)
		ok = false
	}
	action.Details.PresentationDefinition = pd

	if a.Timeout != "" {
		d, err := parseTimeout(a.Timeout)
		if err != nil {
			p.fail("%s: %v", path, err)
			ok = false
		}
		action.Timeout = d
	}
	return action, ok
}

func (p *parser) flowState(i int, f flowDoc) (domain.FlowState, bool) {
	path := fmt.Sprintf("flows[%d]", i)
	if f.Name != "" {
		path = fmt.Sprintf("flow '%s'", f.Name)
	}

	expr, err := parseActionExpr(f.Actions)
	if err != nil {
		p.fail("%s.actions: %v", path, err)
		return domain.FlowState{}, false
	}
	return domain.FlowState{
		Name:       f.Name,
		Role:       f.Role,
		Initial:    f.Initial,
		Conditions: f.Conditions,
		Actions:    expr,
		Next: domain.Transitions{
			Success: refNames(f.Next.Success),
			Failure: refNames(f.Next.Failure),
		},
		Fallback: f.Fallback.Name,
	}, true
}

// parsePredicate turns the polymorphic `when` clause into a Predicate tree.
// A single-key map keyed by a combinator is a group; any other map is a leaf.
// Leaf keys the interpreter does not understand become atoms that never match.
func parsePredicate(raw any) (domain.Predicate, error) {
	switch v := raw.(type) {
	case []any:
		// A bare list reads as a disjunction.
		children, err := parsePredicates(v)
		if err != nil {
			return domain.Predicate{}, err
		}
		return domain.Any(children...), nil
	case map[string]any:
		if len(v) == 1 {
			for k, inner := range v {
				if anyKeys[k] || allKeys[k] {
					children, err := parsePredicates(asList(inner))
					if err != nil {
						return domain.Predicate{}, fmt.Errorf("%s: %w", k, err)
					}
					if anyKeys[k] {
						return domain.Any(children...), nil
					}
					return domain.All(children...), nil
				}
			}
		}
		return parseAtoms(v)
	case nil:
		return domain.Predicate{}, fmt.Errorf("empty predicate")
	}
	return domain.Predicate{}, fmt.Errorf("unsupported predicate of type %T", raw)
}

func parsePredicates(items []any) ([]domain.Predicate, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]domain.Predicate, 0, len(items))
	for i, item := range items {
		pred, err := parsePredicate(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, pred)
	}
	return out, nil
}

func parseAtoms(m map[string]any) (domain.Predicate, error) {
	var doc atomDoc
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.Predicate{}, err
	}
	if err := dec.Decode(m); err != nil {
		return domain.Predicate{}, err
	}

	if doc.Issuer != "" && doc.Schema == "" && doc.CredDef == "" {
		return domain.Predicate{}, fmt.Errorf("'issuer' qualifies a 'schema' or 'cred_def' atom")
	}

	var atoms []domain.Predicate
	if doc.ID != "" {
		atoms = append(atoms, domain.Match(domain.FieldID, doc.ID))
	}
	if doc.Role != "" {
		atoms = append(atoms, domain.Match(domain.FieldRole, doc.Role))
	}
	if doc.Schema != "" {
		atoms = append(atoms, issued(domain.FieldSchema, doc.Schema, doc.Issuer))
	}
	if doc.CredDef != "" {
		atoms = append(atoms, issued(domain.FieldCredDef, doc.CredDef, doc.Issuer))
	}

	unused := append([]string(nil), md.Unused...)
	sort.Strings(unused)
	for _, key := range unused {
		atoms = append(atoms, domain.Match(key, fmt.Sprint(m[key])))
	}

	switch len(atoms) {
	case 0:
		return domain.Predicate{}, fmt.Errorf("empty condition")
	case 1:
		return atoms[0], nil
	}
	return domain.All(atoms...), nil
}

func issued(field, value, issuer string) domain.Predicate {
	p := domain.Match(field, value)
	p.Atom.Issuer = issuer
	return p
}

// parseActionExpr turns the polymorphic `actions` clause into an expression tree.
// A list is an implicit conjunction; a one-element list is its element.
func parseActionExpr(raw any) (domain.ActionExpr, error) {
	switch v := raw.(type) {
	case nil:
		return domain.And(), nil
	case string:
		if v == "" {
			return domain.ActionExpr{}, fmt.Errorf("empty action name")
		}
		return domain.Leaf(v), nil
	case []any:
		children, err := parseActionExprs(v)
		if err != nil {
			return domain.ActionExpr{}, err
		}
		if len(children) == 1 {
			return children[0], nil
		}
		return domain.And(children...), nil
	case map[string]any:
		return parseActionMap(v)
	}
	return domain.ActionExpr{}, fmt.Errorf("unsupported action expression of type %T", raw)
}

func parseActionExprs(items []any) ([]domain.ActionExpr, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]domain.ActionExpr, 0, len(items))
	for i, item := range items {
		e, err := parseActionExpr(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseActionMap(m map[string]any) (domain.ActionExpr, error) {
	var group string
	for k := range m {
		if anyKeys[k] || allKeys[k] {
			if group != "" {
				return domain.ActionExpr{}, fmt.Errorf("both '%s' and '%s' in one group", group, k)
			}
			group = k
		}
	}

	if group != "" {
		next := ""
		for k, v := range m {
			switch {
			case k == group:
			case k == "next":
				next = fmt.Sprint(v)
			default:
				return domain.ActionExpr{}, fmt.Errorf("unexpected key '%s' in '%s' group", k, group)
			}
		}
		children, err := parseActionExprs(asList(m[group]))
		if err != nil {
			return domain.ActionExpr{}, fmt.Errorf("%s: %w", group, err)
		}
		e := domain.And(children...)
		if anyKeys[group] {
			e = domain.Or(children...)
		}
		e.Next = next
		return e, nil
	}

	var leaf leafDoc
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &leaf,
		ErrorUnused: true,
	})
	if err != nil {
		return domain.ActionExpr{}, err
	}
	if err := dec.Decode(m); err != nil {
		return domain.ActionExpr{}, err
	}
	if leaf.Name == "" {
		return domain.ActionExpr{}, fmt.Errorf("action leaf without 'name'")
	}
	e := domain.Leaf(leaf.Name)
	e.Target = domain.Role(leaf.Target)
	e.Next = leaf.Next
	return e, nil
}

// parsePresentationDefinition accepts a reference string, a list of
// single-key {role: ref} maps, or a {role: ref} mapping. Role order is kept.
func parsePresentationDefinition(n *yaml.Node) (*domain.PresentationDefinition, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return nil, nil
		}
		return &domain.PresentationDefinition{Ref: n.Value}, nil
	case yaml.SequenceNode:
		pd := &domain.PresentationDefinition{}
		for i, item := range n.Content {
			if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
				return nil, fmt.Errorf("[%d]: expected a single {role: reference} entry", i)
			}
			pd.ByRole = append(pd.ByRole, domain.RoleReference{
				Role: domain.Role(item.Content[0].Value),
				Ref:  item.Content[1].Value,
			})
		}
		return pd, nil
	case yaml.MappingNode:
		pd := &domain.PresentationDefinition{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			pd.ByRole = append(pd.ByRole, domain.RoleReference{
				Role: domain.Role(n.Content[i].Value),
				Ref:  n.Content[i+1].Value,
			})
		}
		return pd, nil
	}
	return nil, fmt.Errorf("line %d: unsupported form", n.Line)
}

// parseTimeout accepts Go durations ("30s", "2m") or a bare number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0):
			return 0, fmt.Errorf("invalid timeout %q: not a finite number", s)
		case secs < 0:
			return 0, fmt.Errorf("negative timeout %q", s)
		case secs*float64(time.Second) >= math.MaxInt64:
			return 0, fmt.Errorf("timeout %q out of range", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", s)
	}
	return d, nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	}
	return []any{v}
}
