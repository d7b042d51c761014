package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the pub/sub channel nodes share.
const DefaultRelayChannel = "taskboard:broadcast"

var errSubscriptionClosed = errors.New("relay subscription closed")

// RedisRelay fans broadcasts out to the other nodes through Redis pub/sub
// and hands theirs to the local hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	node    string
	hub     *Hub
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisRelay creates a relay with a random node id.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		node:    uuid.NewString(),
		hub:     hub,
		logger:  logger.With("component", "relay"),
	}
}

// Node returns the id stamped on this node's messages.
func (r *RedisRelay) Node() string { return r.node }

// Publish sends msg to every subscribed node.
func (r *RedisRelay) Publish(ctx context.Context, msg RelayMessage) error {
	msg.Node = r.node
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish relay message: %w", err)
	}
	return nil
}

// Start subscribes in the background until Stop or ctx is done.
func (r *RedisRelay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	r.logger.Info("relay started", "channel", r.channel, "node", r.node)
}

// Stop ends the subscription and waits for the loop.
func (r *RedisRelay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("relay stopped")
}

func (r *RedisRelay) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	retry := backoff.WithContext(b, ctx)

	for {
		err := r.listen(ctx, retry.Reset)
		if ctx.Err() != nil {
			return
		}
		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		r.logger.Warn("relay subscription lost", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// listen runs one subscription. subscribed is called once Redis confirms it.
func (r *RedisRelay) listen(ctx context.Context, subscribed func()) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	subscribed()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errSubscriptionClosed
			}
			r.deliver(m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var msg RelayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("dropping malformed relay message", "error", err)
		return
	}
	if msg.Node == r.node {
		return
	}
	r.hub.DeliverRemote(msg)
}
