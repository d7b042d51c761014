package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Registry dispatches events to every handler with a matching pattern.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds h.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Patterns returns the distinct patterns of all registered handlers.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, h := range r.handlers {
		for _, p := range h.Patterns() {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Dispatch delivers event to every matching handler. All handlers run even if
// one fails; the joined errors are returned.
func (r *Registry) Dispatch(ctx context.Context, event *Event) error {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		for _, p := range h.Patterns() {
			if MatchTopic(p, event.RoutingKey) {
				handlers = append(handlers, h)
				break
			}
		}
	}
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("no handlers for event", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			r.logger.Error("event handler failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MatchTopic reports whether key matches an AMQP topic pattern.
func MatchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
