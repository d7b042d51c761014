package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLUserRepository implements user.Repository on either backend.
type SQLUserRepository struct {
	conn        database.Connection
	insert      string
	findByID    string
	findByEmail string
	list        string
}

// NewSQLUserRepository creates a user repository on conn.
func NewSQLUserRepository(conn database.Connection) *SQLUserRepository {
	d := conn.Driver()
	return &SQLUserRepository{
		conn:        conn,
		insert:      database.Rebind(d, `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`),
		findByID:    database.Rebind(d, `SELECT id, name, email, created_at FROM users WHERE id = ?`),
		findByEmail: database.Rebind(d, `SELECT id, name, email, created_at FROM users WHERE email = ?`),
		list:        `SELECT id, name, email, created_at FROM users ORDER BY created_at, id`,
	}
}

func (r *SQLUserRepository) Create(ctx context.Context, u *user.User) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, r.insert, u.ID, u.Name, u.Email, u.CreatedAt.UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	return r.one(exec.QueryRow(ctx, r.findByID, id))
}

func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	return r.one(exec.QueryRow(ctx, r.findByEmail, strings.ToLower(strings.TrimSpace(email))))
}

func (r *SQLUserRepository) List(ctx context.Context) ([]*user.User, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, r.list)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLUserRepository) one(row database.Row) (*user.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func scanUser(row database.Row) (*user.User, error) {
	var (
		u         user.User
		createdAt time.Time
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt.UTC()
	return &u, nil
}

var _ user.Repository = (*SQLUserRepository)(nil)
