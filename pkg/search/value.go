package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "timestamp"
	case KindList:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a filter operand or sort key parsed once from JSON.
// Lists hold scalar values only.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a timestamp value normalized to UTC
func Time(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// List returns a list value
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind returns the variant tag
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload
func (v Value) Str() string { return v.str }

// Num returns the numeric payload
func (v Value) Num() float64 { return v.num }

// BoolVal returns the boolean payload
func (v Value) BoolVal() bool { return v.b }

// TimeVal returns the timestamp payload
func (v Value) TimeVal() time.Time { return v.t }

// Items returns the list payload
func (v Value) Items() []Value { return v.list }

// Interface returns the payload as a plain Go value suitable for JSON output
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes timestamps as RFC 3339 strings and everything else natively
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	case KindList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON decodes a JSON scalar or an array of scalars.
// Timestamps arrive as strings and are coerced later against the property type.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes raw JSON into a Value. Objects and nested arrays are rejected.
func ParseValue(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Null(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return Value{}, fmt.Errorf("invalid JSON value: %w", err)
	}
	return fromGeneric(generic, true)
}

func fromGeneric(in interface{}, allowList bool) (Value, error) {
	switch x := in.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", x.String())
		}
		return Number(f), nil
	case []interface{}:
		if !allowList {
			return Value{}, fmt.Errorf("nested arrays are not supported")
		}
		items := make([]Value, 0, len(x))
		for _, item := range x {
			val, err := fromGeneric(item, false)
			if err != nil {
				return Value{}, err
			}
			items = append(items, val)
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("objects are not supported as filter values")
	}
}

// Compare orders two scalar values of the same kind.
// Null sorts before every non-null value.
func Compare(a, b Value) int {
	if a.kind == KindNull || b.kind == KindNull {
		switch {
		case a.kind == b.kind:
			return 0
		case a.kind == KindNull:
			return -1
		default:
			return 1
		}
	}
	switch a.kind {
	case KindNumber:
		return compareOrdered(a.num, b.num)
	case KindTime:
		return a.t.Compare(b.t)
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	default:
		return compareOrdered(a.str, b.str)
	}
}

func compareOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// parseTimestamp accepts RFC 3339 timestamps and plain dates
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 timestamp", s)
}
