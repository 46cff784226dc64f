package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportJSONIntoBolt(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "photos.json"),
		[]byte(`[{"id":"1","name":"a.png","url":"/uploads/photos/1-a.png","date":"2024-05-01T00:00:00Z"}]`), 0o644))

	index := "bolt://" + filepath.Join(t.TempDir(), "index.db")
	out, err := execute(t, "import-json", "--root", root, "--index", index)
	require.NoError(t, err)
	assert.Contains(t, out, "photos    imported=1 skipped=0")

	out, err = execute(t, "import-json", "--root", root, "--index", index)
	require.NoError(t, err)
	assert.Contains(t, out, "photos    imported=0 skipped=1")
}

func TestMigrateUploadsRequiresOld(t *testing.T) {
	_, err := execute(t, "migrate-uploads")
	assert.EqualError(t, err, "--old is required")
}

func TestPostersOnEmptyIndex(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")
	out, err := execute(t, "posters")
	require.NoError(t, err)
	assert.Contains(t, out, "extracted=0 failed=0")
}

func TestEnvCommand(t *testing.T) {
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "STORAGE_URL")
}
