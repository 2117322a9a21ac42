package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
}

func TestMigrationFilesMissingDir(t *testing.T) {
	_, err := migrationFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestPendingFilesSkipsApplied(t *testing.T) {
	files := []string{"0001_a.sql", "0002_b.sql", "0003_c.sql"}
	assert.Equal(t, []string{"0002_b.sql", "0003_c.sql"}, pendingFiles(files, map[string]bool{"0001_a": true}))
	assert.Empty(t, pendingFiles(files, map[string]bool{"0001_a": true, "0002_b": true, "0003_c": true}))
}
