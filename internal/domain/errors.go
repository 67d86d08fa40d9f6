package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrUnauthorized   = errors.New("invalid signature")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrAmountMismatch = errors.New("paid amount does not match checkout total")
	ErrNotFound       = errors.New("not found")
)

// ValidationError is a form-level failure. Fields maps a field name to the
// message shown next to it.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = msg
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// TransportError wraps a network or upstream failure during payment or
// order submission. Status is the upstream HTTP status, 0 when none.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
