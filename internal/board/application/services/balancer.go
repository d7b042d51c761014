package services

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// Candidate is a user and their current load.
type Candidate struct {
	User          *user.User
	OpenTaskCount int
}

// AssignmentBalancer picks the least loaded user. It holds no state of its own.
type AssignmentBalancer struct {
	tasks    task.Repository
	users    user.Directory
	resolver *ConflictResolver
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewAssignmentBalancer creates a balancer that applies assignments through resolver.
func NewAssignmentBalancer(tasks task.Repository, users user.Directory, resolver *ConflictResolver, metrics observability.Metrics, logger *slog.Logger) *AssignmentBalancer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &AssignmentBalancer{
		tasks:    tasks,
		users:    users,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Candidates returns every user with their open task count, in registration order.
func (b *AssignmentBalancer) Candidates(ctx context.Context) ([]Candidate, error) {
	users, err := b.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoEligibleUsers
	}

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	counts, err := b.tasks.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, len(users))
	for i, u := range users {
		out[i] = Candidate{User: u, OpenTaskCount: counts[u.ID]}
	}
	return out, nil
}

// SelectAssignee returns the user with the fewest open tasks. Ties go to the
// earliest registered user.
func (b *AssignmentBalancer) SelectAssignee(ctx context.Context, taskID uuid.UUID) (*user.User, error) {
	if _, err := b.tasks.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	candidates, err := b.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	return LeastLoaded(candidates).User, nil
}

// LeastLoaded returns the first candidate with the minimal count. candidates
// must not be empty.
func LeastLoaded(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.OpenTaskCount < best.OpenTaskCount {
			best = c
		}
	}
	return best
}

// SmartAssign selects an assignee and writes it without a baseline check.
func (b *AssignmentBalancer) SmartAssign(ctx context.Context, taskID, performedBy uuid.UUID) (*UpdateOutcome, error) {
	current, err := b.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	selected, err := b.SelectAssignee(ctx, taskID)
	if err != nil {
		return nil, err
	}

	oldName := ""
	if prev := current.AssignedTo(); prev != nil {
		oldName = prev.String()
		if u, err := b.users.FindByID(ctx, *prev); err == nil {
			oldName = u.Name
		}
	}

	assignee := selected.ID
	outcome, err := b.resolver.Update(ctx, UpdateRequest{
		TaskID:      taskID,
		Fields:      task.Fields{AssignedTo: &assignee},
		PerformedBy: performedBy,
		Action:      activity.ActionSmartAssigned,
		Details:     activity.AssignmentDetails(oldName, selected.Name, true),
		Change:      &activity.Change{Field: task.FieldAssignedTo, OldValue: optName(oldName), NewValue: strPtr(selected.Name)},
	})
	if err != nil {
		return nil, err
	}

	b.metrics.Counter(observability.MetricSmartAssignments, 1)
	b.logger.InfoContext(ctx, "task smart assigned",
		"task_id", taskID,
		"assignee", selected.ID,
		"previous", oldName,
	)
	return outcome, nil
}
