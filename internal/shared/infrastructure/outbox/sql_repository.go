package outbox

import (
	"context"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
)

// SQLRepository stores the outbox in the record store. The same statements
// serve both backends; only the placeholders differ.
type SQLRepository struct {
	conn    database.Connection
	insert  string
	pending string
	publish string
	fail    string
	dead    string
	purge   string
}

// NewSQLRepository creates an outbox repository on conn.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	d := conn.Driver()
	return &SQLRepository{
		conn: conn,
		insert: database.Rebind(d, `
			INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
		pending: database.Rebind(d, `
			SELECT id, event_id, aggregate_type, aggregate_id, routing_key, body, created_at,
			       published_at, retry_count, last_error, next_retry_at, dead_lettered_at, dead_letter_reason
			FROM outbox
			WHERE published_at IS NULL
			  AND dead_lettered_at IS NULL
			  AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY id
			LIMIT ?`),
		publish: database.Rebind(d, `UPDATE outbox SET published_at = ? WHERE id = ?`),
		fail: database.Rebind(d, `
			UPDATE outbox
			SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
			WHERE id = ?`),
		dead: database.Rebind(d, `
			UPDATE outbox SET dead_lettered_at = ?, dead_letter_reason = ? WHERE id = ?`),
		purge: database.Rebind(d, `
			DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`),
	}
}

func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, m := range msgs {
		err := exec.QueryRow(ctx, r.insert,
			m.EventID, m.AggregateType, m.AggregateID, m.RoutingKey, string(m.Body), m.CreatedAt.UTC(),
		).Scan(&m.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := r.conn.Query(ctx, r.pending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var (
			m    Message
			body string
		)
		err := rows.Scan(&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.RoutingKey, &body,
			&m.CreatedAt, &m.PublishedAt, &m.RetryCount, &m.LastError, &m.NextRetryAt,
			&m.DeadLetteredAt, &m.DeadLetterReason)
		if err != nil {
			return nil, err
		}
		m.Body = []byte(body)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *SQLRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.conn.Exec(ctx, r.publish, at.UTC(), id)
	return err
}

func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	_, err := r.conn.Exec(ctx, r.fail, reason, nextRetryAt.UTC(), id)
	return err
}

func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := r.conn.Exec(ctx, r.dead, at.UTC(), reason, id)
	return err
}

func (r *SQLRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn.Exec(ctx, r.purge, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
