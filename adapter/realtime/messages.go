// Package realtime is the websocket surface of the board: the session
// gateway, the broadcast hub and the message handlers between them.
package realtime

import (
	"encoding/json"

	"github.com/felixgeelhaar/taskboard/internal/board/application/queries"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
)

// Inbound events.
const (
	EventCreateTask       = "createTask"
	EventUpdateTask       = "updateTaskWithConflictCheck"
	EventResolveConflict  = "resolveConflict"
	EventUpdateTaskStatus = "updateTaskStatus"
	EventSmartAssign      = "smartAssign"
	EventDeleteTask       = "deleteTask"
	EventStartEditingTask = "startEditingTask"
	EventEndEditingTask   = "endEditingTask"
	EventHeartbeat        = "heartbeat"
)

// Outbound events.
const (
	EventTaskCreated        = "taskCreated"
	EventTaskUpdated        = "taskUpdated"
	EventConflictDetected   = "conflictDetected"
	EventConflictResolved   = "conflictResolved"
	EventTaskStatusUpdated  = "taskStatusUpdated"
	EventTaskAssigned       = "taskAssigned"
	EventTaskDeleted        = "taskDeleted"
	EventUserStartedEditing = "userStartedEditing"
	EventUserStoppedEditing = "userStoppedEditing"
	EventAck                = "ack"
	EventError              = "error"
	EventConnected          = "connected"
)

// InboundFrame is a client message. ID is echoed as replyTo on direct replies.
type InboundFrame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is a server message.
type OutboundFrame struct {
	Event   string   `json:"event"`
	ReplyTo string   `json:"replyTo,omitempty"`
	Payload Envelope `json:"payload"`
}

// Envelope lets clients tell a business failure from a transport failure.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *WireError `json:"error"`
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail wraps err in a failed envelope.
func Fail(err error) Envelope {
	return Envelope{Success: false, Error: ToWireError(err)}
}

type createTaskPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateTaskPayload struct {
	TaskID        uuid.UUID                  `json:"taskId"`
	Updates       map[string]json.RawMessage `json:"updates"`
	ClientVersion *int                       `json:"clientVersion"`
}

// resolutionPayload accepts {type, updates, choices}. mergedFields is an
// alias of updates for a merge.
type resolutionPayload struct {
	Type         string                     `json:"type"`
	Updates      map[string]json.RawMessage `json:"updates"`
	MergedFields map[string]json.RawMessage `json:"mergedFields"`
	Choices      map[string]string          `json:"choices"`
}

type resolveConflictPayload struct {
	TaskID     uuid.UUID         `json:"taskId"`
	Resolution resolutionPayload `json:"resolution"`
}

type updateStatusPayload struct {
	TaskID    uuid.UUID `json:"taskId"`
	NewStatus string    `json:"newStatus"`
}

type taskRefPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

type heartbeatPayload struct {
	EditingTaskID *uuid.UUID `json:"editingTaskId"`
}

// ConflictData is sent to the originator of a stale update.
type ConflictData struct {
	TaskID          uuid.UUID                     `json:"taskId"`
	Conflicts       map[string]task.FieldConflict `json:"conflicts"`
	CurrentTask     queries.TaskDTO               `json:"currentTask"`
	ProposedChanges task.Fields                   `json:"proposedChanges"`
	CurrentVersion  int                           `json:"currentVersion"`
}

// ConflictResolvedData names who settled a conflict and how.
type ConflictResolvedData struct {
	Task       queries.TaskDTO    `json:"task"`
	ResolvedBy queries.UserRefDTO `json:"resolvedBy"`
	Strategy   string             `json:"strategy"`
}

// PresenceData announces a change in who is editing a task.
type PresenceData struct {
	TaskID   uuid.UUID       `json:"taskId"`
	UserID   uuid.UUID       `json:"userId"`
	UserName string          `json:"userName,omitempty"`
	Editors  presence.Roster `json:"editors"`
}

// TaskDeletedData identifies a removed task.
type TaskDeletedData struct {
	TaskID    uuid.UUID          `json:"taskId"`
	DeletedBy queries.UserRefDTO `json:"deletedBy"`
}

// ConnectedData is the first frame on a new connection.
type ConnectedData struct {
	UserID       uuid.UUID `json:"userId"`
	Name         string    `json:"name"`
	ConnectionID string    `json:"connectionId"`
}
