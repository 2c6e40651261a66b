package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
)

// ErrBodyTooLarge is returned when the body exceeds the MaxBytesMiddleware limit
var ErrBodyTooLarge = errors.New("request body too large")

// ParseJSON decodes a single JSON object from the request body into dest.
// Unknown fields and trailing data are rejected.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("invalid JSON: empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("invalid JSON: empty body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON: unexpected data after object")
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			WritePayloadTooLarge(w, err.Error())
		} else {
			WriteBadRequest(w, err.Error())
		}
		return false
	}
	return true
}

// IsJSON reports whether the request declares a JSON body. A missing
// Content-Type is accepted.
func IsJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}

// ParseQueryInt reads an integer query parameter, returning defaultValue when
// it is absent. Values outside [min, max] are rejected.
func ParseQueryInt(r *http.Request, key string, defaultValue, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", key)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, min, max)
	}
	return v, nil
}
