package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNameSpaceExhausted = errors.New("fragment name space exhausted")
	ErrFragmentNotFound   = errors.New("fragment file not found")
	ErrDigestMismatch     = errors.New("fragment digest mismatch")
)

// MissingHeaderFieldError reports a required key-file header field that was
// absent during parsing.
func MissingHeaderFieldError(field string) error {
	return fmt.Errorf("key file header is missing required field %q", field)
}

// MalformedLineError reports a key-file body line with the wrong field count.
func MalformedLineError(line int, fields int) error {
	return fmt.Errorf("key file line %d is malformed: expected 6 fields, got %d", line, fields)
}

// UnknownSchemeError reports a body line tagged with a scheme code this
// implementation does not understand.
func UnknownSchemeError(scheme string) error {
	return fmt.Errorf("unknown scheme code %q", scheme)
}
