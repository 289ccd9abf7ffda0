package catalogue

import (
	"errors"
	"fmt"
)

var (
	// ErrMissing marks an element that is structurally absent from the page.
	ErrMissing = errors.New("element missing")
	// ErrMalformed marks an element that is present but cannot be read.
	ErrMalformed = errors.New("element malformed")
)

// FieldResult is the outcome of extracting a single field.
type FieldResult struct {
	Value string
	Err   error
}

// Found wraps a successfully extracted value.
func Found(value string) FieldResult {
	return FieldResult{Value: value}
}

// Missing reports a structurally absent element.
func Missing(what string) FieldResult {
	return FieldResult{Err: fmt.Errorf("%s: %w", what, ErrMissing)}
}

// Malformed reports an element that exists but is unusable.
func Malformed(what string) FieldResult {
	return FieldResult{Err: fmt.Errorf("%s: %w", what, ErrMalformed)}
}

// OK reports whether a value was extracted.
func (r FieldResult) OK() bool {
	return r.Err == nil
}

// OrPlaceholder substitutes placeholder for a missing element. Malformed
// results keep their error.
func (r FieldResult) OrPlaceholder(placeholder string) (string, error) {
	switch {
	case r.Err == nil:
		return r.Value, nil
	case errors.Is(r.Err, ErrMissing):
		return placeholder, nil
	default:
		return "", r.Err
	}
}
