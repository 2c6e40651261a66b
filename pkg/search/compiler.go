package search

import "strconv"

// CompileFilters resolves and type-checks every condition of the request and
// combines them into one predicate: the group operator inside a group, AND
// across groups. A nil predicate means no filter. Every offending condition
// is reported, not only the first.
func CompileFilters(resolver *Resolver, groups []FilterGroup) (Predicate, []Detail) {
	if len(groups) == 0 {
		return nil, nil
	}

	var details []Detail
	root := make(And, 0, len(groups))
	for gi, group := range groups {
		children := make([]Predicate, 0, len(group.Filters))
		for fi, f := range group.Filters {
			field := f.Field
			if field == "" {
				field = "filterGroups[" + strconv.Itoa(gi) + "].filters[" + strconv.Itoa(fi) + "]"
			}
			prop, err := resolver.Resolve(f.Property)
			if err != nil {
				details = append(details, toDetail(field+".property", err))
				continue
			}
			cond, err := Evaluate(prop, f.Operator, f.Value)
			if err != nil {
				d := toDetail(field+".value", err)
				if d.Code == CodeOperatorTypeMismatch {
					d.Field = field + ".operator"
				}
				details = append(details, d)
				continue
			}
			children = append(children, cond)
		}

		switch {
		case len(children) == 1:
			root = append(root, children[0])
		case group.Operator == GroupOr:
			root = append(root, Or(children))
		default:
			root = append(root, And(children))
		}
	}
	if len(details) > 0 {
		return nil, details
	}
	if len(root) == 1 {
		return root[0], nil
	}
	return root, nil
}
