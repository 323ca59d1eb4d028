package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erp/setoff/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add usage index", "add_usage_index"},
		{"Add-Usage-Index", "add_usage_index"},
		{"add__usage__index", "add_usage_index"},
		{"special!@#$chars", "special_chars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersAfterExisting(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_setoff.up.sql", "000001_setoff.down.sql", "000003_outbox.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o644))
	}

	mf, err := CreateMigration(dir, "Add usage index")
	require.NoError(t, err)
	assert.Equal(t, uint(4), mf.Version)
	assert.Equal(t, filepath.Join(dir, "000004_add_usage_index.up.sql"), mf.UpPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add_usage_index")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")
}

func TestCreateMigration_Rejects(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")
	mf, err := CreateMigration(dir, "init")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000010_b.up.sql", "000002_a.up.sql", "000002_a.down.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o644))
	}

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(2), list[0].Version)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, uint(10), list[1].Version)

	missing, err := ListMigrations(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestEmbeddedSchemaIsPaired(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	require.True(t, names["000001_setoff.up.sql"])
	for name := range names {
		if match := migrationName.FindStringSubmatch(name); match != nil {
			stem := name[:len(name)-len(".up.sql")]
			assert.True(t, names[stem+".down.sql"], "missing down migration for %s", stem)
		}
	}
}
