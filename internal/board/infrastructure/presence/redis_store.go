package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "taskboard:presence:"
	activeKey = keyPrefix + "active"
)

// RedisStore shares sessions between nodes. Each task has a sorted set of
// users scored by last activity (unix milliseconds) and a hash of start times;
// a set tracks the tasks that currently have editors.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Removals and the active-set bookkeeping run as scripts so a Touch from
// another node cannot land between the read and the write.
var (
	// KEYS: task zset, started hash, active set. ARGV: member, task id.
	removeScript = redis.NewScript(`
local n = redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
if redis.call('ZCARD', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[3], ARGV[2])
end
return n
`)

	// KEYS: task zset, started hash, active set. ARGV: score upper bound, task id.
	sweepScript = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #stale > 0 then
	redis.call('ZREM', KEYS[1], unpack(stale))
	redis.call('HDEL', KEYS[2], unpack(stale))
end
if redis.call('ZCARD', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[3], ARGV[2])
end
return stale
`)
)

func taskKey(taskID uuid.UUID) string    { return keyPrefix + "task:" + taskID.String() }
func startedKey(taskID uuid.UUID) string { return taskKey(taskID) + ":started" }

func (s *RedisStore) Touch(ctx context.Context, taskID, userID uuid.UUID, now time.Time) error {
	member := userID.String()
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, taskKey(taskID), redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.HSetNX(ctx, startedKey(taskID), member, strconv.FormatInt(now.UnixMilli(), 10))
	pipe.SAdd(ctx, activeKey, taskID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, taskID, userID uuid.UUID) (bool, error) {
	keys := []string{taskKey(taskID), startedKey(taskID), activeKey}
	n, err := removeScript.Run(ctx, s.client, keys, userID.String(), taskID.String()).Int64()
	if err != nil {
		return false, fmt.Errorf("remove presence: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Sweep(ctx context.Context, taskID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	// Exclusive upper bound: a session exactly at the cutoff survives.
	return s.sweep(ctx, taskID, "("+strconv.FormatInt(cutoff.UnixMilli(), 10))
}

func (s *RedisStore) Clear(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	return s.sweep(ctx, taskID, "+inf")
}

func (s *RedisStore) sweep(ctx context.Context, taskID uuid.UUID, upper string) ([]uuid.UUID, error) {
	keys := []string{taskKey(taskID), startedKey(taskID), activeKey}
	members, err := sweepScript.Run(ctx, s.client, keys, upper, taskID.String()).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("sweep presence: %w", err)
	}
	removed := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if id, err := uuid.Parse(m); err == nil {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (s *RedisStore) Roster(ctx context.Context, taskID uuid.UUID) ([]presence.Session, error) {
	entries, err := s.client.ZRangeWithScores(ctx, taskKey(taskID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	started, err := s.client.HGetAll(ctx, startedKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence starts: %w", err)
	}

	out := make([]presence.Session, 0, len(entries))
	for _, z := range entries {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		last := time.UnixMilli(int64(z.Score)).UTC()
		start := last
		if ms, err := strconv.ParseInt(started[member], 10, 64); err == nil {
			start = time.UnixMilli(ms).UTC()
		}
		out = append(out, presence.Session{UserID: id, StartedAt: start, LastActivity: last})
	}
	presence.SortSessions(out)
	return out, nil
}

func (s *RedisStore) ActiveTasks(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	out := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if id, err := uuid.Parse(m); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

var _ presence.Store = (*RedisStore)(nil)
