package task

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrVersionMismatch  = errors.New("task version changed since it was read")
	ErrEmptyTitle       = errors.New("task title cannot be empty")
	ErrReservedTitle    = errors.New("task title cannot match a column name")
	ErrDuplicateTitle   = errors.New("task title must be unique")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidPriority  = errors.New("invalid task priority")
	ErrUnknownField     = errors.New("unknown task field")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownAssignee  = errors.New("assignee is not a registered user")
	ErrNoChanges        = errors.New("no fields to update")
)

// Validation rules reported to clients.
const (
	RuleRequired  = "required"
	RuleReserved  = "reserved"
	RuleUnique    = "unique"
	RuleEnum      = "enum"
	RuleUnknown   = "unknown"
	RuleMalformed = "malformed"
	RuleReference = "reference"
)

// ValidationError names the field and rule a proposed change violated.
type ValidationError struct {
	Field string
	Rule  string
	Err   error
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, rule string, err error) *ValidationError {
	return &ValidationError{Field: field, Rule: rule, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
