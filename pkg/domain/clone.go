package domain

// Clone returns a deep copy of the predicate tree.
func (p Predicate) Clone() Predicate {
	out := Predicate{Kind: p.Kind}
	if p.Atom != nil {
		a := *p.Atom
		out.Atom = &a
	}
	if p.Children != nil {
		out.Children = make([]Predicate, len(p.Children))
		for i, c := range p.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the expression tree.
func (e ActionExpr) Clone() ActionExpr {
	out := e
	if e.Children != nil {
		out.Children = make([]ActionExpr, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a copy of the action with its own presentation definition.
func (a Action) Clone() Action {
	out := a
	if pd := a.Details.PresentationDefinition; pd != nil {
		cp := PresentationDefinition{Ref: pd.Ref, ByRole: cloneSlice(pd.ByRole)}
		out.Details.PresentationDefinition = &cp
	}
	return out
}

// Clone returns a deep copy of the flow state.
func (s FlowState) Clone() FlowState {
	out := s
	out.Conditions = cloneSlice(s.Conditions)
	out.Actions = s.Actions.Clone()
	out.Next = Transitions{Success: cloneSlice(s.Next.Success), Failure: cloneSlice(s.Next.Failure)}
	return out
}

// Clone returns a deep copy of the framework. Nothing in the copy aliases f.
func (f *Framework) Clone() *Framework {
	if f == nil {
		return nil
	}
	out := *f
	out.Context = cloneSlice(f.Context)
	out.Topics = cloneSlice(f.Topics)
	out.Jurisdictions = cloneSlice(f.Jurisdictions)
	out.Geos = cloneSlice(f.Geos)
	out.Schemas = cloneSlice(f.Schemas)
	out.CredDefs = cloneSlice(f.CredDefs)
	out.Participants = cloneSlice(f.Participants)
	out.Roles = cloneSlice(f.Roles)

	if f.Permissions != nil {
		out.Permissions = make([]PermissionRule, len(f.Permissions))
		for i, r := range f.Permissions {
			out.Permissions[i] = PermissionRule{Grant: cloneSlice(r.Grant), When: r.When.Clone()}
		}
	}
	if f.Privileges != nil {
		out.Privileges = make([]PrivilegeRule, len(f.Privileges))
		for i, r := range f.Privileges {
			out.Privileges[i] = PrivilegeRule{Grant: cloneSlice(r.Grant), When: r.When.Clone()}
		}
	}
	if f.Actions != nil {
		out.Actions = make([]Action, len(f.Actions))
		for i, a := range f.Actions {
			out.Actions[i] = a.Clone()
		}
	}
	if f.Flows != nil {
		out.Flows = make([]FlowState, len(f.Flows))
		for i, s := range f.Flows {
			out.Flows[i] = s.Clone()
		}
	}
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
