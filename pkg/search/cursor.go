package search

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const cursorVersion = 1

// Cursor is a decoded resume point. Values align with the keys of the sort
// plan it was issued for; the last value is the tiebreaker id.
type Cursor struct {
	EntityType EntityType
	Values     []Value
}

type cursorPayload struct {
	Version     int               `json:"v"`
	Entity      EntityType        `json:"e"`
	Fingerprint string            `json:"f"`
	Keys        []json.RawMessage `json:"k"`
	Tiebreaker  string            `json:"t"`
}

// CursorCodec encodes and verifies opaque pagination tokens. With a secret
// configured tokens are HMAC-signed and unsigned tokens are rejected.
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec creates a codec. An empty secret disables signing.
func NewCursorCodec(secret string) *CursorCodec {
	c := &CursorCodec{}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c
}

// Encode produces the token resuming after a record with the given sort values
func (c *CursorCodec) Encode(plan *SortPlan, values []Value) (string, error) {
	if len(values) != len(plan.Keys) {
		return "", fmt.Errorf("cursor needs %d sort values, got %d", len(plan.Keys), len(values))
	}
	last := len(values) - 1
	payload := cursorPayload{
		Version:     cursorVersion,
		Entity:      plan.Entity,
		Fingerprint: plan.Fingerprint(),
		Keys:        make([]json.RawMessage, 0, last),
		Tiebreaker:  values[last].Str(),
	}
	for _, v := range values[:last] {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode cursor key: %w", err)
		}
		payload.Keys = append(payload.Keys, raw)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(body)
	if c.secret != nil {
		token += "." + base64.RawURLEncoding.EncodeToString(c.sign(token))
	}
	return token, nil
}

// Decode verifies a token against the current sort plan and coerces its
// values to the plan's column types. Any failure is INVALID_CURSOR.
func (c *CursorCodec) Decode(token string, plan *SortPlan) (*Cursor, error) {
	body, sig, signed := strings.Cut(token, ".")
	if c.secret != nil {
		if !signed {
			return nil, invalidCursor("cursor is not signed")
		}
		mac, err := base64.RawURLEncoding.DecodeString(sig)
		if err != nil || !hmac.Equal(mac, c.sign(body)) {
			return nil, invalidCursor("cursor signature mismatch")
		}
	} else if signed {
		return nil, invalidCursor("malformed cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, invalidCursor("malformed cursor")
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, invalidCursor("malformed cursor")
	}
	if payload.Version != cursorVersion {
		return nil, invalidCursor("unsupported cursor version")
	}
	if payload.Entity != plan.Entity {
		return nil, invalidCursor(fmt.Sprintf("cursor was issued for %s, not %s", payload.Entity, plan.Entity))
	}
	if payload.Fingerprint != plan.Fingerprint() {
		return nil, invalidCursor("cursor was issued for a different sort order")
	}
	if len(payload.Keys) != len(plan.Keys)-1 || payload.Tiebreaker == "" {
		return nil, invalidCursor("cursor does not match the sort order")
	}

	cur := &Cursor{EntityType: payload.Entity, Values: make([]Value, 0, len(plan.Keys))}
	for i, rawKey := range payload.Keys {
		v, err := decodeKey(rawKey, plan.Keys[i].Column)
		if err != nil {
			return nil, invalidCursor(fmt.Sprintf("cursor key %q: %v", plan.Keys[i].Column.Name, err))
		}
		cur.Values = append(cur.Values, v)
	}
	cur.Values = append(cur.Values, String(payload.Tiebreaker))
	return cur, nil
}

func (c *CursorCodec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}

func decodeKey(raw json.RawMessage, col Column) (Value, error) {
	v, err := ParseValue(raw)
	if err != nil {
		return Value{}, err
	}
	if v.IsNull() {
		if !col.Nullable {
			return Value{}, fmt.Errorf("unexpected null")
		}
		return v, nil
	}
	switch col.Type {
	case TypeTime:
		if v.Kind() != KindString {
			return Value{}, fmt.Errorf("expected timestamp")
		}
		t, err := parseTimestamp(v.Str())
		if err != nil {
			return Value{}, err
		}
		return Time(t), nil
	case TypeNumber:
		if v.Kind() != KindNumber {
			return Value{}, fmt.Errorf("expected number")
		}
	case TypeBoolean:
		if v.Kind() != KindBool {
			return Value{}, fmt.Errorf("expected boolean")
		}
	case TypeString:
		if v.Kind() != KindString {
			return Value{}, fmt.Errorf("expected string")
		}
	default:
		return Value{}, fmt.Errorf("column is not sortable")
	}
	return v, nil
}

func invalidCursor(message string) *Error {
	return newError(CodeInvalidCursor, message, Detail{Field: "after", Code: CodeInvalidCursor, Message: message})
}
