package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config selects and configures the record store.
type Config struct {
	Driver     Driver
	URL        string
	SQLitePath string
	MaxConns   int
}

type opener func(ctx context.Context, cfg Config) (Connection, error)

var openers = map[Driver]opener{}

// Register makes a backend available to Open. Backends register themselves
// from their package init, so callers blank-import the ones they need.
func Register(driver Driver, fn func(ctx context.Context, cfg Config) (Connection, error)) {
	openers[driver] = fn
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}
	fn, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("database driver %q is not registered", driver)
	}
	return fn(ctx, cfg)
}

// DefaultSQLitePath is where the local board lives when nothing is configured.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".taskboard", "board.db")
}

// ResolveSQLitePath turns a configured SQLite path into a clean absolute
// path, following symlinks when the file exists. An empty path resolves to
// DefaultSQLitePath. ":memory:" and "file:" URIs pass through unchanged.
func ResolveSQLitePath(path string) (string, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return "", errors.New("sqlite path contains a control character")
	}

	clean, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve sqlite path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return clean, nil
		}
		return "", fmt.Errorf("resolve sqlite path: %w", err)
	}
	return resolved, nil
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}
