package envelope

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyContent     = errors.New("envelope: content cannot be empty")
	ErrMicroblogTooLong = errors.New("envelope: microblog posts must be 280 characters or less")
	ErrInvalidVariant   = errors.New("envelope: invalid variant")
	ErrMalformed        = errors.New("envelope: malformed record")
	ErrUnknownVariant   = errors.New("envelope: unknown variant")
	ErrUnrepresentable  = errors.New("envelope: unrepresentable value")
)

// ValidationError reports which rule an envelope broke.
type ValidationError struct {
	Variant Variant
	Length  int
	Err     error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrMicroblogTooLong) {
		return fmt.Sprintf("%v (got %d)", e.Err, e.Length)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError reports a record that could not be turned into an Envelope.
// Field is empty when the fault is not tied to one field.
type DecodeError struct {
	Field string
	Err   error
	Cause error
}

func (e *DecodeError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q", msg, e.Field)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }
