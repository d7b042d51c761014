package realtime

import (
	"errors"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
)

// Error codes sent to clients.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeNoEligibleUsers = "NO_ELIGIBLE_USERS"
	CodeStoreError      = "STORE_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
)

var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrConflict     = errors.New("task was changed by someone else")
	ErrUnknownEvent = errors.New("unknown event")
)

// WireError is the error half of an envelope.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

// ToWireError maps an error to its client code. Anything unrecognised is a
// store error, and its text is not leaked.
func ToWireError(err error) *WireError {
	if err == nil {
		return nil
	}

	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		return &WireError{Code: CodeValidation, Message: verr.Err.Error(), Field: verr.Field, Rule: verr.Rule}
	case errors.Is(err, task.ErrTaskNotFound), errors.Is(err, user.ErrUserNotFound):
		return &WireError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, auth.ErrUnauthenticated):
		return &WireError{Code: CodeUnauthenticated, Message: err.Error()}
	case errors.Is(err, ErrConflict):
		return &WireError{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, services.ErrNoEligibleUsers):
		return &WireError{Code: CodeNoEligibleUsers, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return &WireError{Code: CodeRateLimited, Message: err.Error()}
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, services.ErrInvalidResolution):
		return &WireError{Code: CodeValidation, Message: err.Error(), Rule: task.RuleUnknown}
	default:
		return &WireError{Code: CodeStoreError, Message: "the board store is unavailable"}
	}
}
