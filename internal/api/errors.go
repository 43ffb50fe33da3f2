package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when the upstream rejects the forwarded session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404 responses, e.g. no default organization.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the field-level messages of a rejected create call.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, "; ")
}

// FieldErrors groups messages by the field they name. Upstream messages lead
// with the property name ("name should not be empty").
func (e *ValidationError) FieldErrors() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for _, msg := range e.Fields {
		field, _, _ := strings.Cut(strings.TrimSpace(msg), " ")
		if field == "" {
			field = "_"
		}
		out[field] = append(out[field], msg)
	}
	return out
}

// TransientError is any other request failure: network errors, 5xx and
// unexpected statuses.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
