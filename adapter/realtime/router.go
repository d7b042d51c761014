package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/taskboard/internal/board/application/commands"
	"github.com/felixgeelhaar/taskboard/internal/board/application/queries"
	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// RouterDeps are the application handlers the router dispatches to.
type RouterDeps struct {
	CreateTask      *commands.CreateTaskHandler
	UpdateTask      *commands.UpdateTaskHandler
	ResolveConflict *commands.ResolveConflictHandler
	UpdateStatus    *commands.UpdateTaskStatusHandler
	SmartAssign     *commands.SmartAssignHandler
	DeleteTask      *commands.DeleteTaskHandler
	Tracker         *services.PresenceTracker
	Tasks           task.Repository
	Users           user.Directory
}

type handlerFunc func(ctx context.Context, c *Client, in InboundFrame)

// Router dispatches inbound frames and pushes results through the hub.
type Router struct {
	deps     RouterDeps
	hub      *Hub
	handlers map[string]handlerFunc
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewRouter creates a router.
func NewRouter(deps RouterDeps, hub *Hub, metrics observability.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	r := &Router{deps: deps, hub: hub, metrics: metrics, logger: logger}
	r.handlers = map[string]handlerFunc{
		EventCreateTask:       r.createTask,
		EventUpdateTask:       r.updateTask,
		EventResolveConflict:  r.resolveConflict,
		EventUpdateTaskStatus: r.updateTaskStatus,
		EventSmartAssign:      r.smartAssign,
		EventDeleteTask:       r.deleteTask,
		EventStartEditingTask: r.startEditing,
		EventEndEditingTask:   r.endEditing,
		EventHeartbeat:        r.heartbeat,
	}
	return r
}

// replyEvents names the event a failure is reported under.
var replyEvents = map[string]string{
	EventCreateTask:       EventTaskCreated,
	EventUpdateTask:       EventTaskUpdated,
	EventResolveConflict:  EventConflictResolved,
	EventUpdateTaskStatus: EventTaskStatusUpdated,
	EventSmartAssign:      EventTaskAssigned,
	EventDeleteTask:       EventTaskDeleted,
	EventStartEditingTask: EventAck,
	EventEndEditingTask:   EventAck,
}

func replyEvent(inbound string) string {
	if e, ok := replyEvents[inbound]; ok {
		return e
	}
	return EventError
}

// Handle runs one inbound frame to completion. A panic in a handler is
// reported to the originator as a store error.
func (r *Router) Handle(ctx context.Context, c *Client, in InboundFrame) {
	ctx = observability.WithCorrelationID(ctx, uuid.NewString())
	ctx = observability.WithUserID(ctx, c.UserID().String())
	if in.ID != "" {
		ctx = observability.WithRequestID(ctx, in.ID)
	}

	watch := observability.StartStopwatch(r.metrics, observability.MetricWSMessageDuration, observability.T("event", in.Event))
	outcome := "ok"
	defer func() {
		if p := recover(); p != nil {
			outcome = "panic"
			r.logger.ErrorContext(ctx, "message handler panicked", "event", in.Event, "panic", p)
			r.hub.Reply(ctx, c, in.ID, replyEvent(in.Event), Fail(fmt.Errorf("handler panic: %v", p)))
		}
		watch.Stop(outcome)
	}()

	h, ok := r.handlers[in.Event]
	if !ok {
		outcome = "unknown"
		r.hub.Reply(ctx, c, in.ID, EventError, Fail(task.NewValidationError("event", task.RuleUnknown, ErrUnknownEvent)))
		return
	}
	r.metrics.Counter(observability.MetricWSMessages, 1, observability.T("event", in.Event))
	h(ctx, c, in)
}

func (r *Router) rejectRateLimited(ctx context.Context, c *Client, in InboundFrame) {
	r.metrics.Counter(observability.MetricWSRateLimited, 1)
	r.hub.Reply(ctx, c, in.ID, replyEvent(in.Event), Fail(ErrRateLimited))
}

// fail reports err to the originator only.
func (r *Router) fail(ctx context.Context, c *Client, in InboundFrame, err error) {
	wire := ToWireError(err)
	if wire.Code == CodeStoreError {
		r.logger.ErrorContext(ctx, "message failed", "event", in.Event, "error", err)
	} else {
		r.logger.InfoContext(ctx, "message rejected", "event", in.Event, "code", wire.Code, "error", err)
	}
	r.hub.Reply(ctx, c, in.ID, replyEvent(in.Event), Envelope{Error: wire})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return task.NewValidationError("data", task.RuleRequired, task.ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return task.NewValidationError("data", task.RuleMalformed, task.ErrMalformedPayload)
	}
	return nil
}

func (r *Router) createTask(ctx context.Context, c *Client, in InboundFrame) {
	var p createTaskPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	t, err := r.deps.CreateTask.Handle(ctx, commands.CreateTaskCommand{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		CreatedBy:   c.UserID(),
	})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	r.hub.Broadcast(ctx, Global(), EventTaskCreated, OK(r.taskDTO(ctx, t)))
}

func (r *Router) updateTask(ctx context.Context, c *Client, in InboundFrame) {
	var p updateTaskPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	fields, err := task.DecodeFields(p.Updates)
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	out, err := r.deps.UpdateTask.Handle(ctx, commands.UpdateTaskCommand{
		TaskID:        p.TaskID,
		Fields:        fields,
		ClientVersion: p.ClientVersion,
		PerformedBy:   c.UserID(),
	})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	if out.IsConflict() {
		r.hub.Reply(ctx, c, in.ID, EventConflictDetected, Envelope{
			Data: ConflictData{
				TaskID:          p.TaskID,
				Conflicts:       out.Conflict.Conflicts,
				CurrentTask:     r.taskDTO(ctx, out.Conflict.Current),
				ProposedChanges: out.Conflict.Proposed,
				CurrentVersion:  out.Conflict.CurrentVersion,
			},
			Error: ToWireError(ErrConflict),
		})
		return
	}
	r.hub.Broadcast(ctx, Global(), EventTaskUpdated, OK(r.taskDTO(ctx, out.Task)))
}

func (r *Router) resolveConflict(ctx context.Context, c *Client, in InboundFrame) {
	var p resolveConflictPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	strategy, err := services.ParseStrategy(p.Resolution.Type)
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	raw := p.Resolution.Updates
	if len(raw) == 0 {
		raw = p.Resolution.MergedFields
	}
	fields, err := task.DecodeFields(raw)
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}

	out, err := r.deps.ResolveConflict.Handle(ctx, commands.ResolveConflictCommand{
		TaskID:      p.TaskID,
		Resolution:  services.Resolution{Strategy: strategy, Fields: fields, Choices: p.Resolution.Choices},
		PerformedBy: c.UserID(),
	})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}

	data := ConflictResolvedData{
		Task:       r.taskDTO(ctx, out.Task),
		ResolvedBy: r.userRef(ctx, c.UserID()),
		Strategy:   string(strategy),
	}
	if !out.Applied {
		// Nothing was written, so nobody else needs to hear about it.
		r.hub.Reply(ctx, c, in.ID, EventConflictResolved, OK(data))
		return
	}
	r.hub.Broadcast(ctx, Global(), EventConflictResolved, OK(data))
	r.hub.Broadcast(ctx, Global(), EventTaskUpdated, OK(data.Task))
}

func (r *Router) updateTaskStatus(ctx context.Context, c *Client, in InboundFrame) {
	var p updateStatusPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	out, err := r.deps.UpdateStatus.Handle(ctx, commands.UpdateTaskStatusCommand{
		TaskID:      p.TaskID,
		Status:      p.NewStatus,
		PerformedBy: c.UserID(),
	})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	r.hub.Broadcast(ctx, Global(), EventTaskStatusUpdated, OK(r.taskDTO(ctx, out.Task)))
}

func (r *Router) smartAssign(ctx context.Context, c *Client, in InboundFrame) {
	var p taskRefPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	out, err := r.deps.SmartAssign.Handle(ctx, commands.SmartAssignCommand{TaskID: p.TaskID, PerformedBy: c.UserID()})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	r.hub.Broadcast(ctx, Global(), EventTaskAssigned, OK(r.taskDTO(ctx, out.Task)))
}

func (r *Router) deleteTask(ctx context.Context, c *Client, in InboundFrame) {
	var p taskRefPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	res, err := r.deps.DeleteTask.Handle(ctx, commands.DeleteTaskCommand{TaskID: p.TaskID, PerformedBy: c.UserID()})
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	r.hub.Close(ctx, p.TaskID, EventTaskDeleted, OK(TaskDeletedData{
		TaskID:    res.Task.ID(),
		DeletedBy: r.userRef(ctx, c.UserID()),
	}))
}

// startEditing stores the session first, then joins the channel, so a
// member of a task channel always has a session.
func (r *Router) startEditing(ctx context.Context, c *Client, in InboundFrame) {
	var p taskRefPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	if _, err := r.deps.Tasks.FindByID(ctx, p.TaskID); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	roster, err := r.deps.Tracker.StartSession(ctx, p.TaskID, c.UserID())
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	c.markTouched(p.TaskID, r.deps.Tracker.Now())
	r.hub.JoinTask(p.TaskID, c)
	r.metrics.Gauge(observability.MetricPresenceEditors, float64(roster.Count), observability.T("task_id", p.TaskID.String()))

	r.hub.Broadcast(ctx, TaskChannel(p.TaskID, c), EventUserStartedEditing, OK(PresenceData{
		TaskID:   p.TaskID,
		UserID:   c.UserID(),
		UserName: c.Identity().Name,
		Editors:  roster,
	}))
	r.hub.Reply(ctx, c, in.ID, EventAck, OK(roster))
}

// endEditing leaves the channel with every connection of the user, matching
// the single session the user had.
func (r *Router) endEditing(ctx context.Context, c *Client, in InboundFrame) {
	var p taskRefPayload
	if err := decode(in.Data, &p); err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	roster, err := r.deps.Tracker.EndSession(ctx, p.TaskID, c.UserID())
	if err != nil {
		r.fail(ctx, c, in, err)
		return
	}
	r.hub.Leave(ctx, p.TaskID, c.UserID(), OK(PresenceData{
		TaskID:   p.TaskID,
		UserID:   c.UserID(),
		UserName: c.Identity().Name,
		Editors:  roster,
	}))
	r.hub.Reply(ctx, c, in.ID, EventAck, OK(roster))
}

// heartbeat has no reply. It refreshes the caller and reclaims whoever went
// quiet on the same task. Heartbeats for a task that does not exist are
// dropped.
func (r *Router) heartbeat(ctx context.Context, c *Client, in InboundFrame) {
	var p heartbeatPayload
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &p); err != nil {
			r.logger.DebugContext(ctx, "ignoring malformed heartbeat", "error", err)
			return
		}
	}
	if p.EditingTaskID == nil {
		return
	}
	taskID := *p.EditingTaskID

	if _, err := r.deps.Tasks.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			r.logger.DebugContext(ctx, "ignoring heartbeat for unknown task", "task_id", taskID)
		} else {
			r.logger.WarnContext(ctx, "heartbeat task lookup failed", "task_id", taskID, "error", err)
		}
		return
	}
	removed, err := r.deps.Tracker.Heartbeat(ctx, taskID, c.UserID())
	if err != nil {
		r.logger.WarnContext(ctx, "heartbeat failed", "task_id", taskID, "error", err)
		return
	}
	c.markTouched(taskID, r.deps.Tracker.Now())
	r.hub.JoinTask(taskID, c)
	r.PresenceSwept(ctx, taskID, removed)
}

// PresenceSwept removes swept users from the task channel and tells the
// remaining editors. It matches services.SweepFunc.
func (r *Router) PresenceSwept(ctx context.Context, taskID uuid.UUID, removed []uuid.UUID) {
	if len(removed) == 0 {
		return
	}
	roster, err := r.deps.Tracker.Roster(ctx, taskID)
	if err != nil {
		r.logger.WarnContext(ctx, "read roster after sweep", "task_id", taskID, "error", err)
	}
	for _, userID := range removed {
		r.hub.Leave(ctx, taskID, userID, OK(PresenceData{
			TaskID:   taskID,
			UserID:   userID,
			UserName: r.userRef(ctx, userID).Name,
			Editors:  roster,
		}))
	}
}

// Disconnected ends the sessions a closed connection held alone on this node.
// A session refreshed after this connection last touched it belongs to a
// connection on another node and is kept.
func (r *Router) Disconnected(ctx context.Context, c *Client, tasks []uuid.UUID) {
	for _, taskID := range tasks {
		roster, ended, err := r.deps.Tracker.ReleaseSession(ctx, taskID, c.UserID(), c.lastTouched(taskID))
		if err != nil {
			r.logger.WarnContext(ctx, "end session on disconnect", "task_id", taskID, "error", err)
			continue
		}
		if !ended {
			continue
		}
		r.hub.Leave(ctx, taskID, c.UserID(), OK(PresenceData{
			TaskID:   taskID,
			UserID:   c.UserID(),
			UserName: c.Identity().Name,
			Editors:  roster,
		}))
	}
}

func (r *Router) userRef(ctx context.Context, id uuid.UUID) queries.UserRefDTO {
	ref := queries.UserRefDTO{ID: id}
	if r.deps.Users == nil {
		return ref
	}
	u, err := r.deps.Users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			r.logger.DebugContext(ctx, "resolve user name", "user_id", id, "error", err)
		}
		return ref
	}
	ref.Name = u.Name
	return ref
}

func (r *Router) taskDTO(ctx context.Context, t *task.Task) queries.TaskDTO {
	names := make(map[uuid.UUID]string, 3)
	add := func(id *uuid.UUID) {
		if id == nil {
			return
		}
		if _, ok := names[*id]; ok {
			return
		}
		names[*id] = r.userRef(ctx, *id).Name
	}
	createdBy := t.CreatedBy()
	add(&createdBy)
	add(t.AssignedTo())
	add(t.LastUpdatedBy())

	dto := queries.ToTaskDTO(t, names)
	if roster, err := r.deps.Tracker.Roster(ctx, t.ID()); err == nil {
		dto.Editors = roster.UserIDs
	}
	return dto
}

func (r *Router) rejectMalformed(ctx context.Context, c *Client) {
	r.hub.Reply(ctx, c, "", EventError, Fail(task.NewValidationError("frame", task.RuleMalformed, task.ErrMalformedPayload)))
}
