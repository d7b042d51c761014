// Package migrations applies the embedded schema for the configured backend.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

const createVersions = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     TEXT PRIMARY KEY,
    applied_at  TIMESTAMP NOT NULL
)`

// Versions lists the migrations embedded for driver, in apply order.
func Versions(driver database.Driver) ([]string, error) {
	entries, err := fs.ReadDir(files, string(driver))
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", driver, err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			out = append(out, strings.TrimSuffix(e.Name(), ".up.sql"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run applies every migration that has not been recorded yet. Each file runs
// in its own transaction together with its bookkeeping row.
func Run(ctx context.Context, conn database.Connection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	driver := conn.Driver()

	if _, err := conn.Exec(ctx, createVersions); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	versions, err := Versions(driver)
	if err != nil {
		return err
	}

	for _, v := range versions {
		var n int
		err := conn.QueryRow(ctx,
			database.Rebind(driver, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), v,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", v, err)
		}
		if n > 0 {
			continue
		}

		body, err := files.ReadFile(string(driver) + "/" + v + ".up.sql")
		if err != nil {
			return fmt.Errorf("read migration %s: %w", v, err)
		}
		if err := apply(ctx, conn, v, string(body)); err != nil {
			return err
		}
		logger.Info("applied migration", "driver", driver, "version", v)
	}
	return nil
}

func apply(ctx context.Context, conn database.Connection, version, body string) error {
	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	_, err = tx.Exec(ctx,
		database.Rebind(conn.Driver(), `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
		version, time.Now().UTC(),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return tx.Commit(ctx)
}
