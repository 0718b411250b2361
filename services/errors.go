// Package services holds the storefront's business operations: validation,
// mapping onto the repositories, upload orchestration and page revalidation.
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrIncorrectPassword = errors.New("Incorrect password")
	ErrSignupsDisabled   = errors.New("Signups are currently disabled")
)

// ErrNoAccount is the login failure for an unknown email.
var ErrNoAccount error = &Error{Kind: ErrNotFound, Message: "No account found with this email"}

// Error carries a caller-safe message for one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool { return target == e.Kind }

func notFoundf(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports bad input field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records the first message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Message returns the caller-safe text of a service error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrIncorrectPassword):
		return ErrIncorrectPassword.Error()
	case errors.Is(err, ErrSignupsDisabled):
		return ErrSignupsDisabled.Error()
	}
	return "Something went wrong, please try again"
}
