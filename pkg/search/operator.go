package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Condition is a resolved, type-checked filter. Operand holds the coerced
// value: a scalar for comparisons, a list for set membership and ranges,
// null for nullness checks. Date variants are normalized onto their plain
// comparator.
type Condition struct {
	Property Property
	Op       Operator
	Operand  Value
}

// Evaluate checks an operator against a resolved property and coerces the
// filter value into the operand the store compares against
func Evaluate(prop Property, op Operator, raw Value) (Condition, error) {
	path := prop.Path()
	family := op.Family()
	if family == FamilyUnknown {
		return Condition{}, invalidValue(path, op, "unsupported operator")
	}
	if err := checkApplicable(prop, op); err != nil {
		return Condition{}, err
	}

	cond := Condition{Property: prop, Op: op.Comparator()}
	target := prop.ValueType()

	if cf, ok := prop.(CustomFieldProperty); ok && target == TypeStructured && family == FamilyEquality {
		v, err := coerceStructured(path, op, cf.FieldType, raw)
		if err != nil {
			return Condition{}, err
		}
		cond.Operand = v
		return cond, nil
	}

	switch family {
	case FamilyNull:
		cond.Operand = Null()
		return cond, nil
	case FamilySet:
		items, err := requireList(path, op, raw, 1, -1)
		if err != nil {
			return Condition{}, err
		}
		coerced, err := coerceAll(path, op, items, target)
		if err != nil {
			return Condition{}, err
		}
		cond.Operand = List(coerced...)
		return cond, nil
	case FamilyRange:
		return coerceRange(cond, path, op, raw, target)
	case FamilyDate:
		if cond.Op == OpBetween {
			return coerceRange(cond, path, op, raw, TypeTime)
		}
		v, err := coerceTime(path, op, raw)
		if err != nil {
			return Condition{}, err
		}
		cond.Operand = v
		return cond, nil
	case FamilyString:
		if raw.Kind() != KindString {
			return Condition{}, invalidValue(path, op, "value must be a string, got %s", raw.Kind())
		}
		if raw.Str() == "" {
			return Condition{}, invalidValue(path, op, "value must not be empty")
		}
		cond.Operand = raw
		return cond, nil
	default:
		v, err := coerce(path, op, raw, target)
		if err != nil {
			return Condition{}, err
		}
		cond.Operand = v
		return cond, nil
	}
}

// checkApplicable rejects operator/type combinations instead of coercing them
func checkApplicable(prop Property, op Operator) error {
	path := prop.Path()
	family := op.Family()
	vt := prop.ValueType()

	if family == FamilyNull {
		return nil
	}

	if tax, ok := prop.(TaxonomyProperty); ok {
		if tax.HasTerm() {
			if family == FamilyEquality {
				return nil
			}
			return operatorMismatch(path, op, "a taxonomy term supports eq, ne, is_null and is_not_null")
		}
		if family == FamilyEquality || family == FamilySet {
			return nil
		}
		return operatorMismatch(path, op, "a taxonomy supports eq, ne, in, not_in, is_null and is_not_null")
	}

	if cf, ok := prop.(CustomFieldProperty); ok && vt == TypeStructured {
		if family == FamilyEquality {
			return nil
		}
		if cf.FieldType == FieldMultiSelect && (op == OpContains || op == OpNotContains) {
			return nil
		}
		return operatorMismatch(path, op, "%s fields support only equality and nullness checks", cf.FieldType)
	}

	switch family {
	case FamilyEquality:
		return nil
	case FamilySet:
		if vt == TypeBoolean {
			return operatorMismatch(path, op, "not applicable to %s properties", vt)
		}
	case FamilyOrdering, FamilyRange:
		if vt != TypeNumber && vt != TypeTime {
			return operatorMismatch(path, op, "requires a numeric or date property, %q is %s", path, vt)
		}
	case FamilyString:
		if vt != TypeString {
			return operatorMismatch(path, op, "requires a text property, %q is %s", path, vt)
		}
	case FamilyDate:
		if vt != TypeTime {
			return operatorMismatch(path, op, "requires a date property, %q is %s", path, vt)
		}
	}
	return nil
}

func requireList(path string, op Operator, raw Value, min, exact int) ([]Value, error) {
	if raw.Kind() != KindList {
		return nil, invalidValue(path, op, "value must be an array, got %s", raw.Kind())
	}
	items := raw.Items()
	if exact >= 0 && len(items) != exact {
		return nil, invalidValue(path, op, "value must have exactly %d elements, got %d", exact, len(items))
	}
	if len(items) < min {
		return nil, invalidValue(path, op, "value must have at least %d element", min)
	}
	return items, nil
}

func coerceRange(cond Condition, path string, op Operator, raw Value, target ValueType) (Condition, error) {
	items, err := requireList(path, op, raw, 2, 2)
	if err != nil {
		return Condition{}, err
	}
	bounds, err := coerceAll(path, op, items, target)
	if err != nil {
		return Condition{}, err
	}
	cond.Operand = List(bounds...)
	return cond, nil
}

// coerceStructured builds the equality operand of a structured custom field.
// A multiselect compares as a set: the operand is its distinct options in
// sorted order, and a single string is a one-option set. Other structured
// fields compare by JSON value, so the operand is the value's JSON text.
func coerceStructured(path string, op Operator, ft FieldType, raw Value) (Value, error) {
	if raw.IsNull() {
		return Value{}, invalidValue(path, op, "value is required; use is_null to match missing values")
	}
	if ft != FieldMultiSelect {
		text, err := json.Marshal(raw)
		if err != nil {
			return Value{}, invalidValue(path, op, "value cannot be encoded as JSON: %v", err)
		}
		return String(string(text)), nil
	}

	items := []Value{raw}
	if raw.Kind() == KindList {
		items = raw.Items()
	}
	seen := make(map[string]bool, len(items))
	options := make([]Value, 0, len(items))
	for _, item := range items {
		if item.Kind() != KindString {
			return Value{}, invalidValue(path, op, "multiselect options must be strings, got %s", describe(item))
		}
		if seen[item.Str()] {
			continue
		}
		seen[item.Str()] = true
		options = append(options, item)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Str() < options[j].Str() })
	return List(options...), nil
}

func coerceAll(path string, op Operator, items []Value, target ValueType) ([]Value, error) {
	out := make([]Value, len(items))
	for i, item := range items {
		v, err := coerce(path, op, item, target)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// coerce converts a scalar to the comparison type of the property.
// Only lossless conversions are accepted: numeric strings and ISO-8601
// strings.
func coerce(path string, op Operator, v Value, target ValueType) (Value, error) {
	switch v.Kind() {
	case KindNull:
		return Value{}, invalidValue(path, op, "value is required; use is_null to match missing values")
	case KindList:
		return Value{}, invalidValue(path, op, "value must be a single %s", target)
	}

	switch target {
	case TypeNumber:
		switch v.Kind() {
		case KindNumber:
			return v, nil
		case KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
			if err == nil {
				return Number(f), nil
			}
		}
		return Value{}, invalidValue(path, op, "value %s is not a number", describe(v))
	case TypeBoolean:
		switch v.Kind() {
		case KindBool:
			return v, nil
		case KindString:
			b, err := strconv.ParseBool(v.Str())
			if err == nil {
				return Bool(b), nil
			}
		}
		return Value{}, invalidValue(path, op, "value %s is not a boolean", describe(v))
	case TypeTime:
		return coerceTime(path, op, v)
	case TypeString:
		if v.Kind() == KindString {
			return v, nil
		}
		return Value{}, invalidValue(path, op, "value %s is not a string", describe(v))
	default:
		return Value{}, invalidValue(path, op, "values cannot be compared against %s properties", target)
	}
}

func coerceTime(path string, op Operator, v Value) (Value, error) {
	switch v.Kind() {
	case KindTime:
		return v, nil
	case KindString:
		t, err := parseTimestamp(v.Str())
		if err != nil {
			return Value{}, invalidValue(path, op, "%v", err)
		}
		return Time(t), nil
	}
	return Value{}, invalidValue(path, op, "value %s is not an ISO-8601 timestamp", describe(v))
}

func describe(v Value) string {
	switch v.Kind() {
	case KindString:
		return strconv.Quote(v.Str())
	case KindNumber:
		return strconv.FormatFloat(v.Num(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.BoolVal())
	default:
		return fmt.Sprintf("of type %s", v.Kind())
	}
}
