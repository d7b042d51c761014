package queries

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/google/uuid"
)

// TaskHistoryQuery lists the audit trail of one task.
type TaskHistoryQuery struct {
	TaskID uuid.UUID
	Limit  int
}

// UserActivityQuery lists what one user has done.
type UserActivityQuery struct {
	UserID uuid.UUID
	Limit  int
}

// RecentActivityQuery lists the newest changes on the board.
type RecentActivityQuery struct {
	Limit int
}

// ActivityHandler serves the audit queries. Results are newest first.
type ActivityHandler struct {
	activityRepo activity.Repository
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityRepo activity.Repository) *ActivityHandler {
	return &ActivityHandler{activityRepo: activityRepo}
}

// TaskHistory executes the TaskHistoryQuery.
func (h *ActivityHandler) TaskHistory(ctx context.Context, query TaskHistoryQuery) ([]*activity.Entry, error) {
	return h.activityRepo.History(ctx, query.TaskID, limitOr(query.Limit, activity.DefaultHistoryLimit))
}

// UserActivity executes the UserActivityQuery.
func (h *ActivityHandler) UserActivity(ctx context.Context, query UserActivityQuery) ([]*activity.Entry, error) {
	return h.activityRepo.ByActor(ctx, query.UserID, limitOr(query.Limit, activity.DefaultHistoryLimit))
}

// RecentActivity executes the RecentActivityQuery.
func (h *ActivityHandler) RecentActivity(ctx context.Context, query RecentActivityQuery) ([]*activity.Entry, error) {
	return h.activityRepo.Recent(ctx, limitOr(query.Limit, activity.DefaultRecentLimit))
}

func limitOr(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
