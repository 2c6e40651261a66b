package search

// Predicate is a node of a compiled filter tree. The set of implementations
// is closed: And, Or and Condition.
type Predicate interface {
	isPredicate()
}

// And holds when every child holds. An empty And matches everything.
type And []Predicate

// Or holds when at least one child holds. An empty Or matches nothing.
type Or []Predicate

func (And) isPredicate()       {}
func (Or) isPredicate()        {}
func (Condition) isPredicate() {}

// Conditions flattens the tree into its leaves in declaration order
func Conditions(p Predicate) []Condition {
	var out []Condition
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case And:
			for _, c := range n {
				walk(c)
			}
		case Or:
			for _, c := range n {
				walk(c)
			}
		case Condition:
			out = append(out, n)
		}
	}
	if p != nil {
		walk(p)
	}
	return out
}
