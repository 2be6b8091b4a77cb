package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# Notes\n\nSome notes."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "todo.txt"), []byte("buy milk"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "idea.md"), []byte("an idea"), 0o600))
	return dir
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path|url...]", ingestCmd.Use)
}

func TestIngestCmd_RequiresInput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one path")
}

func TestIngestCmd_Directory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", dir})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Len(t, mocks.ingest.files, 3)
	out := buf.String()
	assert.Contains(t, out, "Ingesting 3 files")
	assert.Contains(t, out, "notes.md (md,")
	assert.Contains(t, out, "Ingested 3 of 3 files in 1.50 s")
	assert.Nil(t, mocks.ingest.progress, "progress callback is removed after the run")
}

func TestIngestCmd_Filters(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", dir, "--include", "**/*.md", "--exclude", "drafts/**"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, mocks.ingest.files, 1)
	assert.Equal(t, "notes.md", mocks.ingest.files[0].Name)
}

func TestIngestCmd_ChunkFlags(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", dir, "--chunk-size", "200", "--chunk-overlap", "20"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 200, mocks.ingest.cfg.ChunkSize)
	assert.Equal(t, 20, mocks.ingest.cfg.Overlap)
	assert.Contains(t, buf.String(), "chunk size 200, overlap 20")
}

func TestIngestCmd_RejectsBadChunking(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", dir, "--chunk-size", "10", "--chunk-overlap", "10"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Empty(t, mocks.ingest.files)
}

func TestIngestCmd_ReportsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)
	mocks.ingest.fail = map[string]error{"todo.txt": errors.New("unsupported encoding")}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", dir})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 files failed")
	assert.Contains(t, buf.String(), "todo.txt (txt, 8 B) failed: unsupported encoding")
}

func TestIngestCmd_Manifest(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := writeTestFiles(t)
	manifestPath := filepath.Join(t.TempDir(), "sources.yaml")
	content := "chunking:\n  chunk_size: 300\n  overlap: 30\nsources:\n  - path: " +
		filepath.Join(dir, "notes.md") + "\n"
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--manifest", manifestPath})

	err := rootCmd.Execute()

	require.NoError(t, err)
	require.Len(t, mocks.ingest.files, 1)
	assert.Equal(t, 300, mocks.ingest.cfg.ChunkSize)
	assert.Equal(t, 30, mocks.ingest.cfg.Overlap)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.0 KiB", formatSize(1024))
	assert.Equal(t, "1.5 MiB", formatSize(3*512*1024))
}
