package domain

import "strings"

// Outcome is the result of executing an action expression.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ConditionConnection requires an existing connection between the owner role and Target.
const ConditionConnection = "connection"

// Condition is a precondition evaluated before a flow state runs its actions.
type Condition struct {
	Type   string `json:"type" yaml:"type"`
	Target Role   `json:"target,omitempty" yaml:"target,omitempty"`
}

// ExprKind tags the variant held by an ActionExpr.
type ExprKind string

const (
	ExprLeaf ExprKind = "leaf"
	ExprAnd  ExprKind = "and"
	ExprOr   ExprKind = "or"
)

// ActionExpr is a Leaf/And/Or tree of actions.
// Next, when set on an Or branch, routes the flow to that state if the branch wins.
type ActionExpr struct {
	Kind     ExprKind     `json:"kind"`
	Action   string       `json:"action,omitempty"`
	Target   Role         `json:"target,omitempty"`
	Next     string       `json:"next,omitempty"`
	Children []ActionExpr `json:"children,omitempty"`
}

// Leaf builds a single-action expression.
func Leaf(action string) ActionExpr {
	return ActionExpr{Kind: ExprLeaf, Action: action}
}

// And builds a conjunction of actions.
func And(children ...ActionExpr) ActionExpr {
	return ActionExpr{Kind: ExprAnd, Children: children}
}

// Or builds a disjunction of actions.
func Or(children ...ActionExpr) ActionExpr {
	return ActionExpr{Kind: ExprOr, Children: children}
}

// IsEmpty reports whether the expression contains no action at all (pass-through state).
func (e ActionExpr) IsEmpty() bool {
	switch e.Kind {
	case ExprLeaf:
		return e.Action == ""
	case ExprAnd, ExprOr:
		for _, c := range e.Children {
			if !c.IsEmpty() {
				return false
			}
		}
		return true
	}
	return true
}

// Leaves returns the leaf expressions in evaluation order.
func (e ActionExpr) Leaves() []ActionExpr {
	if e.Kind == ExprLeaf {
		if e.Action == "" {
			return nil
		}
		return []ActionExpr{e}
	}
	var out []ActionExpr
	for _, c := range e.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Contains reports whether the named action appears anywhere in the expression.
func (e ActionExpr) Contains(action string) bool {
	for _, l := range e.Leaves() {
		if l.Action == action {
			return true
		}
	}
	return false
}

// String renders the expression in infix form, e.g. "(issue_lab_order AND issue_lab_result) OR issue_vaccine".
// Leaf targets and routes are shown as "connect->health_issuer" and "issue_vaccine=>travel".
func (e ActionExpr) String() string {
	switch e.Kind {
	case ExprLeaf:
		s := e.Action
		if e.Target != "" {
			s += "->" + string(e.Target)
		}
		if e.Next != "" {
			s += "=>" + e.Next
		}
		return s
	case ExprAnd, ExprOr:
		sep := " AND "
		if e.Kind == ExprOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(e.Children))
		for _, c := range e.Children {
			p := c.String()
			if c.Kind != ExprLeaf && len(c.Children) > 1 {
				p = "(" + p + ")"
			}
			parts = append(parts, p)
		}
		s := strings.Join(parts, sep)
		if e.Next != "" {
			s = "(" + s + ")=>" + e.Next
		}
		return s
	}
	return ""
}

// Transitions lists candidate next states per outcome, in priority order.
type Transitions struct {
	Success []string `json:"success,omitempty"`
	Failure []string `json:"failure,omitempty"`
}

// For returns the candidates for an outcome.
func (t Transitions) For(o Outcome) []string {
	if o == OutcomeSuccess {
		return t.Success
	}
	return t.Failure
}

// FlowState is one named step of a flow.
type FlowState struct {
	Name       string      `json:"name"`
	Role       Role        `json:"role"`
	Initial    bool        `json:"initial,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    ActionExpr  `json:"actions"`
	Next       Transitions `json:"next"`

	// Fallback is entered instead of failing when a precondition is not met.
	Fallback string `json:"fallback,omitempty"`
}

// IsSink reports whether the state declares no outgoing transition for either outcome.
func (s FlowState) IsSink() bool {
	return len(s.Next.Success) == 0 && len(s.Next.Failure) == 0
}

// Targets returns every state name this state can route to, branch targets included.
func (s FlowState) Targets() []string {
	var out []string
	out = append(out, s.Next.Success...)
	out = append(out, s.Next.Failure...)
	if s.Fallback != "" {
		out = append(out, s.Fallback)
	}
	var walk func(e ActionExpr)
	walk = func(e ActionExpr) {
		if e.Next != "" {
			out = append(out, e.Next)
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(s.Actions)
	return out
}
