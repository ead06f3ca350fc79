package domain

// PredicateKind tags the variant held by a Predicate.
type PredicateKind string

const (
	PredicateAtom PredicateKind = "atom"
	PredicateAny  PredicateKind = "any"
	PredicateAll  PredicateKind = "all"
)

// Atom fields understood by the interpreter. Any other field fails closed.
const (
	FieldID      = "id"
	FieldRole    = "role"
	FieldSchema  = "schema"
	FieldCredDef = "cred_def"
)

// Atom is a single condition such as participant.id == X or role == R.
type Atom struct {
	Field string `json:"field"`
	Value string `json:"value"`
	// Issuer qualifies schema atoms: the credential must come from this participant.
	Issuer string `json:"issuer,omitempty"`
}

// Predicate is a boolean expression tree: Atom | Any(children) | All(children).
type Predicate struct {
	Kind     PredicateKind `json:"kind"`
	Atom     *Atom         `json:"atom,omitempty"`
	Children []Predicate   `json:"children,omitempty"`
}

// Match builds an atomic predicate.
func Match(field, value string) Predicate {
	return Predicate{Kind: PredicateAtom, Atom: &Atom{Field: field, Value: value}}
}

// Any builds a disjunction.
func Any(children ...Predicate) Predicate {
	return Predicate{Kind: PredicateAny, Children: children}
}

// All builds a conjunction.
func All(children ...Predicate) Predicate {
	return Predicate{Kind: PredicateAll, Children: children}
}

// Atoms returns every atom of the tree in declaration order.
func (p Predicate) Atoms() []Atom {
	if p.Kind == PredicateAtom {
		if p.Atom == nil {
			return nil
		}
		return []Atom{*p.Atom}
	}
	var out []Atom
	for _, c := range p.Children {
		out = append(out, c.Atoms()...)
	}
	return out
}
