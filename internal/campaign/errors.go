package campaign

import "fmt"

// The error kinds every caller-facing operation may return. Each kind
// aborts the operation before any write for that unit of work; the HTTP
// surface maps them onto status codes with errors.As.

// ValidationError reports a malformed or missing submission field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// PermissionError reports that the actor is not the assigned evaluator or
// an administrator for the record.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

// PreconditionError reports a state-machine guard rejection, e.g. closing an
// administration that is not ongoing.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// NotFoundError reports an id that does not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ConflictError reports a uniqueness violation, e.g. generating assignments
// for an evaluee that already has a result under the administration.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

func permissionf(format string, args ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, args...)}
}
