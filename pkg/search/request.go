package search

import (
	"fmt"
	"strings"
)

// ParseRequest validates the shape of a wire request and converts it into
// strict types. Structural limits are checked first; every other shape
// problem is collected into one VALIDATION_ERROR.
func ParseRequest(raw RawRequest, limits Limits) (*Request, error) {
	if err := checkStructure(raw, limits); err != nil {
		return nil, err
	}

	var details []Detail
	add := func(field, format string, args ...interface{}) {
		details = append(details, Detail{Field: field, Code: CodeValidation, Message: fmt.Sprintf(format, args...)})
	}

	req := &Request{
		Limit:  limits.clamp(raw.Limit),
		After:  strings.TrimSpace(raw.After),
		Search: strings.TrimSpace(raw.Search),
	}

	if raw.EntityType == "" {
		add("entityType", "entityType is required")
	} else if et, ok := ParseEntityType(raw.EntityType); ok {
		req.EntityType = et
	} else {
		add("entityType", "unsupported entity type %q", raw.EntityType)
	}

	for gi, rg := range raw.FilterGroups {
		gfield := fmt.Sprintf("filterGroups[%d]", gi)
		group := FilterGroup{Operator: GroupAnd}
		switch strings.ToUpper(strings.TrimSpace(rg.Operator)) {
		case "", string(GroupAnd):
		case string(GroupOr):
			group.Operator = GroupOr
		default:
			add(gfield+".operator", "group operator must be AND or OR, got %q", rg.Operator)
		}
		if len(rg.Filters) == 0 {
			add(gfield+".filters", "filter group must contain at least one filter")
		}

		for fi, rf := range rg.Filters {
			field := fmt.Sprintf("%s.filters[%d]", gfield, fi)
			cond := FilterCondition{Property: strings.TrimSpace(rf.Property), Field: field}
			if cond.Property == "" {
				add(field+".property", "property is required")
			}

			op := Operator(strings.ToLower(strings.TrimSpace(rf.Operator)))
			family := op.Family()
			switch {
			case rf.Operator == "":
				add(field+".operator", "operator is required")
			case family == FamilyUnknown:
				add(field+".operator", "unsupported operator %q", rf.Operator)
			}
			cond.Operator = op

			val, err := ParseValue(rf.Value)
			if err != nil {
				add(field+".value", "%v", err)
			} else if family != FamilyUnknown {
				if msg := checkArity(op, val); msg != "" {
					add(field+".value", "operator %q: %s", op, msg)
				}
			}
			cond.Value = val
			group.Filters = append(group.Filters, cond)
		}
		req.Groups = append(req.Groups, group)
	}

	for si, rs := range raw.Sorts {
		field := fmt.Sprintf("sorts[%d]", si)
		spec := SortSpec{Property: strings.TrimSpace(rs.Property), Direction: Asc, Field: field}
		if spec.Property == "" {
			add(field+".property", "property is required")
		}
		switch strings.ToLower(strings.TrimSpace(rs.Direction)) {
		case "", string(Asc):
		case string(Desc):
			spec.Direction = Desc
		default:
			add(field+".direction", "direction must be asc or desc, got %q", rs.Direction)
		}
		req.Sorts = append(req.Sorts, spec)
	}

	for pi, p := range raw.Properties {
		p = strings.TrimSpace(p)
		if p == "" {
			add(fmt.Sprintf("properties[%d]", pi), "property must not be empty")
			continue
		}
		req.Properties = append(req.Properties, p)
	}

	if len(details) > 0 {
		return nil, newError(CodeValidation, "invalid search request", details...)
	}
	return req, nil
}

// checkStructure enforces the group and filter count limits
func checkStructure(raw RawRequest, limits Limits) error {
	var details []Detail
	if limits.MaxGroups > 0 && len(raw.FilterGroups) > limits.MaxGroups {
		details = append(details, Detail{
			Field:   "filterGroups",
			Code:    CodeTooManyFilters,
			Message: fmt.Sprintf("at most %d filter groups are allowed, got %d", limits.MaxGroups, len(raw.FilterGroups)),
		})
	}
	for gi, g := range raw.FilterGroups {
		if limits.MaxFiltersPerGroup > 0 && len(g.Filters) > limits.MaxFiltersPerGroup {
			details = append(details, Detail{
				Field:   fmt.Sprintf("filterGroups[%d].filters", gi),
				Code:    CodeTooManyFilters,
				Message: fmt.Sprintf("at most %d filters per group are allowed, got %d", limits.MaxFiltersPerGroup, len(g.Filters)),
			})
		}
	}
	if len(details) > 0 {
		return newError(CodeTooManyFilters, "filter limits exceeded", details...)
	}
	return nil
}

// checkArity validates the operand shape an operator requires
func checkArity(op Operator, v Value) string {
	switch {
	case op.Family() == FamilyNull:
		return ""
	case op == OpIn || op == OpNotIn:
		if v.Kind() != KindList {
			return "value must be an array"
		}
		if len(v.Items()) == 0 {
			return "value must not be empty"
		}
	case op == OpBetween || op == OpDateBetween:
		if v.Kind() != KindList || len(v.Items()) != 2 {
			return "value must be a two-element [low, high] array"
		}
	case op == OpEq || op == OpNe:
		// arrays are valid operands for structured fields; scalar properties
		// reject them once the property type is known
		if v.IsNull() {
			return "value is required"
		}
	default:
		if v.IsNull() {
			return "value is required"
		}
		if v.Kind() == KindList {
			return "value must be a single value, not an array"
		}
	}
	return ""
}
