// Package services holds the collaboration core: versioned updates with
// conflict detection, presence tracking and load-balanced assignment.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	sharedApplication "github.com/felixgeelhaar/taskboard/internal/shared/application"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// UpdateRequest is one proposed change to a task.
type UpdateRequest struct {
	TaskID      uuid.UUID
	Fields      task.Fields
	PerformedBy uuid.UUID
	// Baseline is the version the client last saw. Nil means the write may
	// proceed against whatever version is current.
	Baseline *int

	// Audit overrides; zero values let the resolver classify the change.
	Action  activity.Action
	Details string
	Change  *activity.Change

	// Strategy is set when the update settles a conflict.
	Strategy Strategy
}

// Conflict describes why a baseline update was refused.
type Conflict struct {
	Conflicts      map[string]task.FieldConflict
	Current        *task.Task
	Proposed       task.Fields
	CurrentVersion int
}

// UpdateOutcome is the result of an update or resolution. Exactly one of
// Applied and Conflict is meaningful; a discarded resolution has neither and
// Task holds the current record.
type UpdateOutcome struct {
	Task     *task.Task
	Previous *task.Task
	Applied  bool
	Conflict *Conflict
}

// IsConflict reports whether the update was refused.
func (o *UpdateOutcome) IsConflict() bool {
	return o != nil && o.Conflict != nil
}

// ResolverConfig bounds retries of writes without a baseline.
type ResolverConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultResolverConfig returns the defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{MaxRetries: 5, InitialInterval: 5 * time.Millisecond, MaxInterval: 100 * time.Millisecond}
}

// ConflictResolver applies versioned updates. The read, the conditional
// write, the audit entry and the outbox messages share one transaction.
type ConflictResolver struct {
	tasks    task.Repository
	users    user.Directory
	activity activity.Repository
	outbox   outbox.Repository
	uow      sharedApplication.UnitOfWork
	config   ResolverConfig
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewConflictResolver creates a resolver.
func NewConflictResolver(
	tasks task.Repository,
	users user.Directory,
	activityRepo activity.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	config ResolverConfig,
	metrics observability.Metrics,
	logger *slog.Logger,
) *ConflictResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.MaxRetries == 0 {
		config = DefaultResolverConfig()
	}
	return &ConflictResolver{
		tasks:    tasks,
		users:    users,
		activity: activityRepo,
		outbox:   outboxRepo,
		uow:      uow,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// Update applies req. A stale baseline yields a Conflict outcome and writes
// nothing. Without a baseline a lost race is retried against the new
// version, a bounded number of times.
func (r *ConflictResolver) Update(ctx context.Context, req UpdateRequest) (*UpdateOutcome, error) {
	if req.Fields.IsEmpty() {
		return nil, task.NewValidationError("", task.RuleRequired, task.ErrNoChanges)
	}

	var outcome *UpdateOutcome
	attempt := 0
	op := func() error {
		attempt++
		out, err := r.attempt(ctx, req)
		if err == nil {
			outcome = out
			return nil
		}
		if errors.Is(err, task.ErrVersionMismatch) && req.Baseline == nil {
			r.metrics.Counter(observability.MetricUpdateRetries, 1)
			r.logger.DebugContext(ctx, "retrying update after concurrent write",
				"task_id", req.TaskID, "attempt", attempt)
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval
	b.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.config.MaxRetries), ctx))
	if err == nil {
		return outcome, nil
	}

	// The row moved between our read and our write. With a baseline that is
	// a conflict against the record as it is now.
	if errors.Is(err, task.ErrVersionMismatch) && req.Baseline != nil {
		current, ferr := r.tasks.FindByID(ctx, req.TaskID)
		if ferr != nil {
			return nil, ferr
		}
		return r.conflict(ctx, current, req), nil
	}
	return nil, err
}

func (r *ConflictResolver) attempt(ctx context.Context, req UpdateRequest) (*UpdateOutcome, error) {
	return sharedApplication.InUnitOfWork(ctx, r.uow, func(txCtx context.Context) (*UpdateOutcome, error) {
		current, err := r.tasks.FindByID(txCtx, req.TaskID)
		if err != nil {
			return nil, err
		}
		if req.Baseline != nil && *req.Baseline != current.Version() {
			return r.conflict(ctx, current, req), nil
		}

		next, err := current.Apply(req.Fields, req.PerformedBy)
		if err != nil {
			return nil, err
		}
		if err := r.validate(txCtx, next, req.Fields); err != nil {
			return nil, err
		}
		if req.Strategy != "" {
			next.MarkResolved(string(req.Strategy), req.PerformedBy)
		}

		if err := r.tasks.ConditionalUpdate(txCtx, next); err != nil {
			return nil, err
		}

		entry, err := r.auditEntry(txCtx, current, next, req)
		if err != nil {
			return nil, err
		}
		if err := r.activity.Record(txCtx, entry); err != nil {
			return nil, err
		}
		if err := r.flushEvents(ctx, txCtx, next, req.PerformedBy); err != nil {
			return nil, err
		}

		r.metrics.Counter(observability.MetricUpdatesApplied, 1, observability.T("action", string(entry.Action)))
		r.logger.InfoContext(ctx, "task updated",
			"task_id", next.ID(),
			"version", next.Version(),
			"action", entry.Action,
			"performed_by", req.PerformedBy,
		)
		return &UpdateOutcome{Task: next, Previous: current, Applied: true}, nil
	})
}

func (r *ConflictResolver) conflict(ctx context.Context, current *task.Task, req UpdateRequest) *UpdateOutcome {
	r.metrics.Counter(observability.MetricUpdateConflicts, 1)
	r.logger.InfoContext(ctx, "conflict detected",
		"task_id", current.ID(),
		"baseline", *req.Baseline,
		"current", current.Version(),
		"performed_by", req.PerformedBy,
	)
	return &UpdateOutcome{
		Task: current,
		Conflict: &Conflict{
			Conflicts:      task.Diff(current, req.Fields),
			Current:        current,
			Proposed:       req.Fields,
			CurrentVersion: current.Version(),
		},
	}
}

// validate runs the checks that need the store.
func (r *ConflictResolver) validate(ctx context.Context, next *task.Task, fields task.Fields) error {
	if fields.Title != nil {
		taken, err := r.tasks.ExistsWithTitle(ctx, next.Title(), next.ID())
		if err != nil {
			return err
		}
		if taken {
			return task.NewValidationError(task.FieldTitle, task.RuleUnique, task.ErrDuplicateTitle)
		}
	}
	if fields.AssignedTo != nil && !fields.Unassign {
		if _, err := r.users.FindByID(ctx, *fields.AssignedTo); err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return task.NewValidationError(task.FieldAssignedTo, task.RuleReference, task.ErrUnknownAssignee)
			}
			return err
		}
	}
	return nil
}

func (r *ConflictResolver) flushEvents(ctx, txCtx context.Context, t *task.Task, actor uuid.UUID) error {
	events := t.DomainEvents()
	sharedApplication.ApplyEventMetadata(events,
		sharedApplication.NewEventMetadata(actor, observability.CorrelationUUID(ctx)))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := r.outbox.SaveBatch(txCtx, msgs); err != nil {
		return fmt.Errorf("save outbox messages: %w", err)
	}
	t.ClearDomainEvents()
	return nil
}

// auditEntry classifies the change: a pure status move, a pure assignee
// change, or a general update. Callers may override the classification.
func (r *ConflictResolver) auditEntry(ctx context.Context, before, after *task.Task, req UpdateRequest) (*activity.Entry, error) {
	names := req.Fields.Names()
	entry := activity.NewEntry(after.ID(), activity.ActionUpdated, req.PerformedBy, "").WithSnapshots(before, after)

	switch {
	case req.Action != "":
		entry.Action = req.Action
		entry.Details = req.Details
		entry.Change = req.Change
	case len(names) == 1 && names[0] == task.FieldStatus:
		entry.Action = activity.ActionStatusChanged
		entry.Details = activity.StatusDetails(before.Status(), after.Status())
		entry.WithChange(task.FieldStatus, strPtr(string(before.Status())), strPtr(string(after.Status())))
	case len(names) == 1 && names[0] == task.FieldAssignedTo:
		oldName := r.displayName(ctx, before.AssignedTo())
		newName := r.displayName(ctx, after.AssignedTo())
		entry.Action = activity.ActionAssigned
		if after.AssignedTo() == nil {
			entry.Action = activity.ActionUnassigned
		}
		entry.Details = activity.AssignmentDetails(oldName, newName, false)
		entry.WithChange(task.FieldAssignedTo, optName(oldName), optName(newName))
	default:
		oldJSON, err := fieldValues(before, names)
		if err != nil {
			return nil, err
		}
		newJSON, err := fieldValues(after, names)
		if err != nil {
			return nil, err
		}
		entry.Details = activity.UpdatedDetails(names)
		entry.WithChange(joinNames(names), &oldJSON, &newJSON)
	}
	return entry, nil
}

// displayName resolves a user for audit text. Unknown users show as their id.
func (r *ConflictResolver) displayName(ctx context.Context, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	u, err := r.users.FindByID(ctx, *id)
	if err != nil {
		return id.String()
	}
	return u.Name
}

func fieldValues(t *task.Task, names []string) (string, error) {
	values := make(map[string]any, len(names))
	for _, name := range names {
		switch name {
		case task.FieldTitle:
			values[name] = t.Title()
		case task.FieldDescription:
			values[name] = t.Description()
		case task.FieldStatus:
			values[name] = t.Status()
		case task.FieldPriority:
			values[name] = t.Priority()
		case task.FieldAssignedTo:
			values[name] = t.AssignedTo()
		}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode audit values: %w", err)
	}
	return string(b), nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func optName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

func strPtr(s string) *string { return &s }
