package survey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmitInFlight is returned when a submit arrives while another one
	// for the same session has not finished.
	ErrSubmitInFlight = errors.New("submission already in progress")
	// ErrIncomplete wraps the validation errors that block a submit.
	ErrIncomplete = errors.New("response is not ready for submission")
)

// FieldError rejects a single change event. The response is left untouched.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (%v): %s", e.Field, e.Value, e.Reason)
}

type ValidationKind int

const (
	SectionTotalMismatch ValidationKind = iota + 1
	MissingDemographic
)

// ValidationError describes one reason a response cannot be submitted.
type ValidationError struct {
	Kind    ValidationKind
	Section string
	Total   int
	Fields  []string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case SectionTotalMismatch:
		return fmt.Sprintf("section %s totals %d, want 100", e.Section, e.Total)
	case MissingDemographic:
		return "missing demographics: " + strings.Join(e.Fields, ", ")
	}
	return "invalid response"
}

// GatewayError carries an append failure from the row store verbatim.
type GatewayError struct {
	Gateway string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Gateway == "" {
		return "append row: " + e.Err.Error()
	}
	return fmt.Sprintf("append row to %s: %v", e.Gateway, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
