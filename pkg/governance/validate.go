package governance

import (
	"errors"
	"fmt"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/dominikbraun/graph"
	"github.com/samber/lo"
)

// Report is the outcome of a successful validation.
type Report struct {
	// Warnings are findings that do not block loading: unreachable states,
	// predicate fields and condition types the interpreter evaluates as false.
	Warnings []string

	graph graph.Graph[string, string]
}

// Validate checks every cross reference of the framework and returns all problems at once
// as a *domain.ValidationError.
func Validate(fw *domain.Framework) (*Report, error) {
	v := &validation{fw: fw}
	v.run()
	if len(v.errors) > 0 {
		return nil, &domain.ValidationError{Issues: v.errors}
	}
	return &Report{Warnings: v.warnings, graph: v.graph}, nil
}

type validation struct {
	fw       *domain.Framework
	errors   []string
	warnings []string

	roles   map[domain.Role]bool
	actions map[string]bool
	states  map[string]bool
	graph   graph.Graph[string, string]
}

func (v *validation) fail(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validation) warn(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validation) run() {
	v.roles = make(map[domain.Role]bool, len(v.fw.Roles))
	for _, r := range v.fw.Roles {
		if r == "" {
			v.fail("roles: empty role name")
			continue
		}
		if v.roles[r] {
			v.fail("roles: '%s' declared twice", r)
		}
		v.roles[r] = true
	}

	for _, id := range lo.FindDuplicates(lo.Map(v.fw.Participants, func(p domain.Participant, _ int) string { return p.ID })) {
		v.fail("participants: id '%s' declared twice", id)
	}
	for i, p := range v.fw.Participants {
		if p.ID == "" {
			v.fail("participants[%d]: missing id", i)
		}
	}

	v.checkActions()
	v.checkPermissions()
	v.checkPrivileges()
	v.checkFlows()
}

func (v *validation) checkRole(path string, r domain.Role) {
	if !v.roles[r] {
		v.fail("%s: unknown role '%s'", path, r)
	}
}

func (v *validation) checkActions() {
	v.actions = make(map[string]bool, len(v.fw.Actions))
	for i, a := range v.fw.Actions {
		if a.Name == "" {
			v.fail("actions[%d]: missing name", i)
			continue
		}
		if v.actions[a.Name] {
			v.fail("action '%s' declared twice", a.Name)
		}
		v.actions[a.Name] = true

		if pd := a.Details.PresentationDefinition; pd != nil {
			if pd.Ref != "" && len(pd.ByRole) > 0 {
				v.fail("action '%s': presentation_definition is both a reference and a per-role list", a.Name)
			}
			seen := make(map[domain.Role]bool, len(pd.ByRole))
			for _, rr := range pd.ByRole {
				v.checkRole(fmt.Sprintf("action '%s' presentation_definition", a.Name), rr.Role)
				if seen[rr.Role] {
					v.fail("action '%s': presentation_definition lists role '%s' twice", a.Name, rr.Role)
				}
				seen[rr.Role] = true
			}
		}
	}
}

func (v *validation) checkPermissions() {
	for i, rule := range v.fw.Permissions {
		path := fmt.Sprintf("permissions[%d]", i)
		if len(rule.Grant) == 0 {
			v.fail("%s: grants no role", path)
		}
		for _, r := range rule.Grant {
			v.checkRole(path, r)
		}
		v.checkPredicate(path, rule.When, permissionFields)
	}
}

func (v *validation) checkPrivileges() {
	for i, rule := range v.fw.Privileges {
		path := fmt.Sprintf("privileges[%d]", i)
		if len(rule.Grant) == 0 {
			v.fail("%s: grants no action", path)
		}
		for _, a := range rule.Grant {
			if !v.actions[a] {
				v.fail("%s: unknown action '%s'", path, a)
			}
		}
		v.checkPredicate(path, rule.When, privilegeFields)
		for _, atom := range rule.When.Atoms() {
			if atom.Field == domain.FieldRole {
				v.checkRole(path, domain.Role(atom.Value))
			}
		}
	}
}

func (v *validation) checkPredicate(path string, p domain.Predicate, fields map[string]bool) {
	switch p.Kind {
	case domain.PredicateAtom:
		if p.Atom == nil {
			v.fail("%s: atom without a condition", path)
			return
		}
		if !fields[p.Atom.Field] {
			v.warn("%s: field '%s' is not supported here and never matches", path, p.Atom.Field)
		}
	case domain.PredicateAny, domain.PredicateAll:
		if p.Kind == domain.PredicateAll && len(p.Children) == 0 {
			v.warn("%s: empty 'all' never matches", path)
		}
		for i, c := range p.Children {
			v.checkPredicate(fmt.Sprintf("%s.%s[%d]", path, p.Kind, i), c, fields)
		}
	default:
		v.fail("%s: unknown predicate kind '%s'", path, p.Kind)
	}
}

func (v *validation) checkFlows() {
	v.states = make(map[string]bool, len(v.fw.Flows))
	v.graph = graph.New(graph.StringHash, graph.Directed())

	initial := 0
	for i, s := range v.fw.Flows {
		if s.Name == "" {
			v.fail("flows[%d]: missing name", i)
			continue
		}
		if v.states[s.Name] {
			v.fail("flow '%s' declared twice", s.Name)
			continue
		}
		v.states[s.Name] = true
		_ = v.graph.AddVertex(s.Name)
		if s.Initial {
			initial++
		}
	}
	if len(v.fw.Flows) > 0 && initial == 0 {
		v.fail("flows: no initial state")
	}

	for _, s := range v.fw.Flows {
		if s.Name == "" {
			continue
		}
		path := fmt.Sprintf("flow '%s'", s.Name)
		v.checkRole(path, s.Role)

		for _, c := range s.Conditions {
			if c.Type != domain.ConditionConnection {
				v.warn("%s: condition type '%s' is not supported and never holds", path, c.Type)
			} else if c.Target == "" {
				v.fail("%s: connection condition without a target role", path)
			}
			if c.Target != "" {
				v.checkRole(path+" condition", c.Target)
			}
		}

		v.checkExpr(path, s.Actions)

		for _, target := range s.Targets() {
			if !v.states[target] {
				v.fail("%s: transition to unknown state '%s'", path, target)
				continue
			}
			if err := v.graph.AddEdge(s.Name, target); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				v.fail("%s: %v", path, err)
			}
		}
	}

	if len(v.errors) > 0 {
		return
	}

	reached := make(map[string]bool, len(v.states))
	for _, s := range v.fw.Flows {
		if !s.Initial {
			continue
		}
		_ = graph.BFS(v.graph, s.Name, func(name string) bool {
			reached[name] = true
			return false
		})
	}
	for _, s := range v.fw.Flows {
		if !reached[s.Name] {
			v.warn("flow '%s' is unreachable from any initial state", s.Name)
		}
	}
}

func (v *validation) checkExpr(path string, e domain.ActionExpr) {
	switch e.Kind {
	case "":
		if e.Action != "" || len(e.Children) > 0 {
			v.fail("%s: action expression without a kind", path)
		}
	case domain.ExprLeaf:
		if e.Action == "" {
			v.fail("%s: action leaf without a name", path)
			return
		}
		if !v.actions[e.Action] {
			v.fail("%s: unknown action '%s'", path, e.Action)
		}
		if e.Target != "" {
			v.checkRole(fmt.Sprintf("%s action '%s' target", path, e.Action), e.Target)
		}
	case domain.ExprAnd, domain.ExprOr:
		for _, c := range e.Children {
			v.checkExpr(path, c)
		}
	default:
		v.fail("%s: unknown action expression kind '%s'", path, e.Kind)
	}
}
