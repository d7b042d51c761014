package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// ScopeKind selects who receives a broadcast.
type ScopeKind string

const (
	ScopeGlobal     ScopeKind = "global"
	ScopeTask       ScopeKind = "task"
	ScopeUser       ScopeKind = "user"
	ScopeOriginator ScopeKind = "originator"
)

// Scope is a broadcast audience.
type Scope struct {
	Kind   ScopeKind
	TaskID uuid.UUID
	UserID uuid.UUID
	// Origin is the connection that caused the event. It receives Originator
	// broadcasts and is skipped by task channel broadcasts.
	Origin *Client
}

// Global reaches every connection.
func Global() Scope { return Scope{Kind: ScopeGlobal} }

// TaskChannel reaches the editors of a task except origin.
func TaskChannel(taskID uuid.UUID, origin *Client) Scope {
	return Scope{Kind: ScopeTask, TaskID: taskID, Origin: origin}
}

// UserChannel reaches every connection of a user.
func UserChannel(userID uuid.UUID) Scope { return Scope{Kind: ScopeUser, UserID: userID} }

// Originator reaches only the connection that caused the event.
func Originator(c *Client) Scope { return Scope{Kind: ScopeOriginator, Origin: c} }

// Broadcaster turns a state change into outbound frames.
type Broadcaster interface {
	Broadcast(ctx context.Context, scope Scope, event string, payload Envelope)
	Reply(ctx context.Context, c *Client, replyTo, event string, payload Envelope)
}

// Relay forwards broadcasts to other nodes.
type Relay interface {
	Publish(ctx context.Context, msg RelayMessage) error
}

// RelayMessage is a broadcast crossing nodes. Frame is already encoded.
// Leaving and Closed carry membership changes the receiving hub applies
// before delivery.
type RelayMessage struct {
	Node    string          `json:"node"`
	Kind    ScopeKind       `json:"kind"`
	TaskID  uuid.UUID       `json:"taskId,omitempty"`
	UserID  uuid.UUID       `json:"userId,omitempty"`
	Leaving uuid.UUID       `json:"leaving,omitempty"`
	Closed  uuid.UUID       `json:"closed,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

// Hub tracks live connections and their channel membership.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[uuid.UUID]map[*Client]struct{}
	tasks   map[uuid.UUID]map[*Client]struct{}

	relay   Relay
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(metrics observability.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		users:   make(map[uuid.UUID]map[*Client]struct{}),
		tasks:   make(map[uuid.UUID]map[*Client]struct{}),
		metrics: metrics,
		logger:  logger,
	}
}

// SetRelay makes broadcasts reach other nodes. Call before serving.
func (h *Hub) SetRelay(r Relay) { h.relay = r }

// Register adds a connection and joins its private user channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	addMember(h.users, c.UserID(), c)
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.Gauge(observability.MetricWSConnections, float64(n))
}

// Unregister removes a connection from every channel and returns the tasks
// where it was the last connection of its user.
func (h *Hub) Unregister(c *Client) []uuid.UUID {
	h.mu.Lock()
	delete(h.clients, c)
	removeMember(h.users, c.UserID(), c)

	var orphaned []uuid.UUID
	for taskID, members := range h.tasks {
		if _, ok := members[c]; !ok {
			continue
		}
		removeMember(h.tasks, taskID, c)
		if !h.userInTaskLocked(taskID, c.UserID()) {
			orphaned = append(orphaned, taskID)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.Gauge(observability.MetricWSConnections, float64(n))
	return orphaned
}

// JoinTask subscribes c to the task channel.
func (h *Hub) JoinTask(taskID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	addMember(h.tasks, taskID, c)
}

// LeaveTask removes every connection of userID from the task channel.
func (h *Hub) LeaveTask(taskID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.tasks[taskID] {
		if c.UserID() == userID {
			removeMember(h.tasks, taskID, c)
		}
	}
}

// CloseTask drops the whole task channel.
func (h *Hub) CloseTask(taskID uuid.UUID) {
	h.mu.Lock()
	delete(h.tasks, taskID)
	h.mu.Unlock()
}

// TaskMembers returns the connections subscribed to a task.
func (h *Hub) TaskMembers(taskID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.tasks[taskID]))
	for c := range h.tasks[taskID] {
		out = append(out, c)
	}
	return out
}

// Connections returns the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes the frame once and queues it for every recipient.
// Recipients with a full send buffer miss the frame.
func (h *Hub) Broadcast(ctx context.Context, scope Scope, event string, payload Envelope) {
	h.publish(ctx, scope, event, payload, RelayMessage{})
}

// Leave removes every connection of userID from the task channel on all
// nodes and tells the remaining members that the user stopped editing.
func (h *Hub) Leave(ctx context.Context, taskID, userID uuid.UUID, payload Envelope) {
	h.LeaveTask(taskID, userID)
	h.publish(ctx, TaskChannel(taskID, nil), EventUserStoppedEditing, payload, RelayMessage{Leaving: userID})
}

// Close drops the task channel on all nodes and broadcasts event globally.
func (h *Hub) Close(ctx context.Context, taskID uuid.UUID, event string, payload Envelope) {
	h.CloseTask(taskID)
	h.publish(ctx, Global(), event, payload, RelayMessage{Closed: taskID})
}

func (h *Hub) publish(ctx context.Context, scope Scope, event string, payload Envelope, msg RelayMessage) {
	frame, err := json.Marshal(OutboundFrame{Event: event, Payload: payload})
	if err != nil {
		h.logger.ErrorContext(ctx, "encode broadcast", "event", event, "error", err)
		return
	}
	h.metrics.Counter(observability.MetricBroadcasts, 1, observability.T("scope", string(scope.Kind)))

	h.deliver(scope, frame)

	if h.relay != nil && scope.Kind != ScopeOriginator {
		msg.Kind, msg.TaskID, msg.UserID, msg.Frame = scope.Kind, scope.TaskID, scope.UserID, frame
		if err := h.relay.Publish(ctx, msg); err != nil {
			h.logger.WarnContext(ctx, "relay broadcast", "event", event, "error", err)
		}
	}
}

// Reply sends a direct answer to c.
func (h *Hub) Reply(ctx context.Context, c *Client, replyTo, event string, payload Envelope) {
	frame, err := json.Marshal(OutboundFrame{Event: event, ReplyTo: replyTo, Payload: payload})
	if err != nil {
		h.logger.ErrorContext(ctx, "encode reply", "event", event, "error", err)
		return
	}
	h.send(c, frame)
}

// DeliverRemote hands a broadcast from another node to local connections.
func (h *Hub) DeliverRemote(msg RelayMessage) {
	if msg.Closed != uuid.Nil {
		h.CloseTask(msg.Closed)
	}
	if msg.Leaving != uuid.Nil {
		h.LeaveTask(msg.TaskID, msg.Leaving)
	}
	h.deliver(Scope{Kind: msg.Kind, TaskID: msg.TaskID, UserID: msg.UserID}, msg.Frame)
}

func (h *Hub) deliver(scope Scope, frame []byte) {
	for _, c := range h.recipients(scope) {
		h.send(c, frame)
	}
}

func (h *Hub) recipients(scope Scope) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var set map[*Client]struct{}
	switch scope.Kind {
	case ScopeGlobal:
		set = h.clients
	case ScopeTask:
		set = h.tasks[scope.TaskID]
	case ScopeUser:
		set = h.users[scope.UserID]
	case ScopeOriginator:
		if scope.Origin == nil {
			return nil
		}
		return []*Client{scope.Origin}
	}

	out := make([]*Client, 0, len(set))
	for c := range set {
		if scope.Kind == ScopeTask && c == scope.Origin {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (h *Hub) send(c *Client, frame []byte) {
	if !c.enqueue(frame) {
		h.metrics.Counter(observability.MetricWSDropped, 1)
		h.logger.Warn("dropped frame for slow connection", "connection_id", c.ID(), "user_id", c.UserID())
	}
}

func (h *Hub) userInTaskLocked(taskID, userID uuid.UUID) bool {
	for c := range h.tasks[taskID] {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

func addMember(index map[uuid.UUID]map[*Client]struct{}, key uuid.UUID, c *Client) {
	members, ok := index[key]
	if !ok {
		members = make(map[*Client]struct{})
		index[key] = members
	}
	members[c] = struct{}{}
}

func removeMember(index map[uuid.UUID]map[*Client]struct{}, key uuid.UUID, c *Client) {
	members, ok := index[key]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(index, key)
	}
}

var _ Broadcaster = (*Hub)(nil)
