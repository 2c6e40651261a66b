package search

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes exposed to API consumers
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidProperty      = "INVALID_PROPERTY"
	CodeOperatorTypeMismatch = "OPERATOR_TYPE_MISMATCH"
	CodeTooManyFilters       = "TOO_MANY_FILTERS"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidCursor        = "INVALID_CURSOR"
	CodeStorage              = "STORAGE_ERROR"
)

var (
	// ErrValidation signals a malformed request shape.
	ErrValidation = errors.New("validation error")
	// ErrInvalidProperty signals an unresolvable property path.
	ErrInvalidProperty = errors.New("invalid property")
	// ErrOperatorTypeMismatch signals an operator not applicable to the property type.
	ErrOperatorTypeMismatch = errors.New("operator type mismatch")
	// ErrTooManyFilters signals a structural limit was exceeded.
	ErrTooManyFilters = errors.New("too many filters")
	// ErrForbidden signals missing scopes.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCursor signals a cursor that failed to decode or verify.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrStorage signals a backing store failure.
	ErrStorage = errors.New("storage error")
)

var kindByCode = map[string]error{
	CodeValidation:           ErrValidation,
	CodeInvalidProperty:      ErrInvalidProperty,
	CodeOperatorTypeMismatch: ErrOperatorTypeMismatch,
	CodeTooManyFilters:       ErrTooManyFilters,
	CodeForbidden:            ErrForbidden,
	CodeInvalidCursor:        ErrInvalidCursor,
	CodeStorage:              ErrStorage,
}

// Detail identifies one offending field of a request
type Detail struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the single error type returned by the engine
type Error struct {
	Code    string
	Message string
	Details []Detail
	cause   error
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = d.Field + ": " + d.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(msgs, "; "))
}

// Unwrap exposes both the error kind and the underlying cause to errors.Is
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if kind, ok := kindByCode[e.Code]; ok {
		out = append(out, kind)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func newError(code, message string, details ...Detail) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// storageError wraps a collaborator failure. The cause is kept for logging only.
func storageError(cause error) *Error {
	return &Error{Code: CodeStorage, Message: "search could not be completed", cause: cause}
}

// aggregate builds one error from the collected details.
// The top-level code is shared by every detail, otherwise VALIDATION_ERROR.
func aggregate(message string, details []Detail) *Error {
	if len(details) == 0 {
		return nil
	}
	code := details[0].Code
	for _, d := range details[1:] {
		if d.Code != code {
			code = CodeValidation
			break
		}
	}
	return newError(code, message, details...)
}

// detailErr is a Detail carried as an error through resolution helpers
type detailErr Detail

func (d *detailErr) Error() string { return d.Message }

func invalidProperty(path, format string, args ...interface{}) error {
	return &detailErr{Code: CodeInvalidProperty, Message: fmt.Sprintf("property %q: ", path) + fmt.Sprintf(format, args...)}
}

func operatorMismatch(path string, op Operator, format string, args ...interface{}) error {
	return &detailErr{Code: CodeOperatorTypeMismatch, Message: fmt.Sprintf("operator %q on property %q: ", op, path) + fmt.Sprintf(format, args...)}
}

func invalidValue(path string, op Operator, format string, args ...interface{}) error {
	return &detailErr{Code: CodeValidation, Message: fmt.Sprintf("operator %q on property %q: ", op, path) + fmt.Sprintf(format, args...)}
}

// toDetail attaches a request field location to a resolution error
func toDetail(field string, err error) Detail {
	var de *detailErr
	if errors.As(err, &de) {
		return Detail{Field: field, Code: de.Code, Message: de.Message}
	}
	return Detail{Field: field, Code: CodeValidation, Message: err.Error()}
}

// AsError extracts an engine error from err
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
