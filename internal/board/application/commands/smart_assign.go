package commands

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/google/uuid"
)

// SmartAssignCommand assigns a task to the least loaded user.
type SmartAssignCommand struct {
	TaskID      uuid.UUID
	PerformedBy uuid.UUID
}

// SmartAssignHandler handles the SmartAssignCommand.
type SmartAssignHandler struct {
	balancer *services.AssignmentBalancer
}

// NewSmartAssignHandler creates a new SmartAssignHandler.
func NewSmartAssignHandler(balancer *services.AssignmentBalancer) *SmartAssignHandler {
	return &SmartAssignHandler{balancer: balancer}
}

// Handle executes the SmartAssignCommand.
func (h *SmartAssignHandler) Handle(ctx context.Context, cmd SmartAssignCommand) (*services.UpdateOutcome, error) {
	return h.balancer.SmartAssign(ctx, cmd.TaskID, cmd.PerformedBy)
}
