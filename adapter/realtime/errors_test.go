package realtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWireError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  string
		field string
		rule  string
	}{
		{"validation", task.NewValidationError("title", task.RuleUnique, task.ErrDuplicateTitle), CodeValidation, "title", task.RuleUnique},
		{"wrapped validation", fmt.Errorf("update: %w", task.NewValidationError("status", task.RuleEnum, task.ErrInvalidStatus)), CodeValidation, "status", task.RuleEnum},
		{"task not found", fmt.Errorf("find: %w", task.ErrTaskNotFound), CodeNotFound, "", ""},
		{"user not found", user.ErrUserNotFound, CodeNotFound, "", ""},
		{"unauthenticated", auth.ErrUnauthenticated, CodeUnauthenticated, "", ""},
		{"conflict", ErrConflict, CodeConflict, "", ""},
		{"no eligible users", services.ErrNoEligibleUsers, CodeNoEligibleUsers, "", ""},
		{"rate limited", ErrRateLimited, CodeRateLimited, "", ""},
		{"unknown event", ErrUnknownEvent, CodeValidation, "", task.RuleUnknown},
		{"bad resolution", services.ErrInvalidResolution, CodeValidation, "", task.RuleUnknown},
		{"anything else", errors.New("disk I/O error"), CodeStoreError, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToWireError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.field, got.Field)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestToWireError_StoreErrorHidesCause(t *testing.T) {
	got := ToWireError(errors.New("pq: password authentication failed"))
	assert.NotContains(t, got.Message, "password")
	assert.Nil(t, ToWireError(nil))
}
