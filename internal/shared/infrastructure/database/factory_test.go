package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSQLitePath(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty uses default", func(t *testing.T) {
		path, err := ResolveSQLitePath("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSQLitePath(), path)
	})

	t.Run("memory and file URIs pass through", func(t *testing.T) {
		for _, in := range []string{":memory:", "file:board.db?cache=shared"} {
			path, err := ResolveSQLitePath(in)
			require.NoError(t, err)
			assert.Equal(t, in, path)
		}
	})

	t.Run("cleans a missing file", func(t *testing.T) {
		path, err := ResolveSQLitePath(filepath.Join(dir, "a", "..", "board.db"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "board.db"), path)
	})

	t.Run("follows symlinks", func(t *testing.T) {
		target := filepath.Join(dir, "real.db")
		require.NoError(t, os.WriteFile(target, nil, 0o600))
		link := filepath.Join(dir, "link.db")
		require.NoError(t, os.Symlink(target, link))

		path, err := ResolveSQLitePath(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(target)
		require.NoError(t, err)
		assert.Equal(t, want, path)
	})

	t.Run("rejects control characters", func(t *testing.T) {
		_, err := ResolveSQLitePath("board\n.db")
		assert.Error(t, err)
	})
}
