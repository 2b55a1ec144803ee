package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCartEmpty           = errors.New("cart is empty")
	ErrSubmissionInFlight  = errors.New("order submission already in progress")
	ErrSubmissionAbandoned = errors.New("order submission abandoned by caller")
)

// ValidationError carries the field-keyed problems that blocked a submission
// before any request was made.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "checkout validation failed: " + strings.Join(keys, ", ")
}

// SubmitError wraps a failure returned by the order API or the transport.
// The cart and the draft are left intact.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit order: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Fields returns server-side field errors when the order API reported any.
func (e *SubmitError) Fields() FieldErrors {
	var fe interface{ FieldErrors() map[string]string }
	if !errors.As(e.Err, &fe) {
		return nil
	}
	fields := fe.FieldErrors()
	if len(fields) == 0 {
		return nil
	}
	out := make(FieldErrors, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
