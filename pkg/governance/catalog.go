package governance

import (
	"github.com/aretw0/charter/pkg/domain"
	"github.com/samber/lo"
)

// Catalog resolves action names to their protocol definitions.
type Catalog struct {
	actions []domain.Action
	index   map[string]int
}

// NewCatalog indexes a copy of actions by name. On duplicate names the first declaration wins.
func NewCatalog(actions []domain.Action) *Catalog {
	c := &Catalog{
		actions: lo.Map(actions, func(a domain.Action, _ int) domain.Action { return a.Clone() }),
		index:   make(map[string]int, len(actions)),
	}
	for i, a := range actions {
		if _, dup := c.index[a.Name]; !dup {
			c.index[a.Name] = i
		}
	}
	return c
}

// Actions returns every action in declaration order.
func (c *Catalog) Actions() []domain.Action {
	return lo.Map(c.actions, func(a domain.Action, _ int) domain.Action { return a.Clone() })
}

// Resolve returns a copy of the named action or an *domain.UnknownActionError.
func (c *Catalog) Resolve(name string) (domain.Action, error) {
	a, err := c.lookup(name)
	if err != nil {
		return domain.Action{}, err
	}
	return a.Clone(), nil
}

func (c *Catalog) lookup(name string) (domain.Action, error) {
	i, ok := c.index[name]
	if !ok {
		return domain.Action{}, &domain.UnknownActionError{Action: name}
	}
	return c.actions[i], nil
}

// ResolvePresentationDefinition returns the presentation reference the acting role must use.
// A single reference applies to every role; a per-role list must name the role.
// Actions without a presentation definition resolve to "".
func (c *Catalog) ResolvePresentationDefinition(action string, role domain.Role) (string, error) {
	a, err := c.lookup(action)
	if err != nil {
		return "", err
	}

	pd := a.Details.PresentationDefinition
	if pd.IsZero() {
		return "", nil
	}
	if pd.Ref != "" {
		return pd.Ref, nil
	}
	if rr, ok := lo.Find(pd.ByRole, func(rr domain.RoleReference) bool { return rr.Role == role }); ok {
		return rr.Ref, nil
	}
	return "", &domain.AmbiguousPresentationDefinitionError{
		Action:    action,
		Role:      role,
		Available: lo.Map(pd.ByRole, func(rr domain.RoleReference, _ int) domain.Role { return rr.Role }),
	}
}
