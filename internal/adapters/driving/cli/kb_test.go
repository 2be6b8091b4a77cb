package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

func TestKBCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range kbCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "delete", "stats"}, names)
}

func TestKBListCmd_Flags(t *testing.T) {
	page := kbListCmd.Flags().Lookup("page")
	require.NotNil(t, page)
	assert.Equal(t, "p", page.Shorthand)
	assert.Equal(t, "1", page.DefValue)

	size := kbListCmd.Flags().Lookup("size")
	require.NotNil(t, size)
	assert.Equal(t, "5", size.DefValue)
}

func TestKBListCmd_ListsSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"kb", "list"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, [2]int{1, domain.DefaultPageSize}, mocks.kb.pageArgs)
	out := buf.String()
	assert.Contains(t, out, "Sources (page 1 of 1, 1 total)")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "Name: manual\n")
	assert.Contains(t, out, "Type: pdf\n")
	assert.Contains(t, out, "Source: /docs/manual.pdf")
	assert.NotContains(t, out, "Next page")
}

func TestKBListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.kb.docs = map[string]*domain.Document{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"knowledge-base", "list"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "The knowledge base is empty.")
}

func TestKBListCmd_PagePastEnd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"kb", "list", "--page", "9"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 9, mocks.kb.pageArgs[0])
	assert.Contains(t, buf.String(), "Sources (page 1 of 1")
}

func TestKBShowCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"kb", "show", "doc-1", "--chunks"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "ID: doc-1")
	assert.Contains(t, out, "Title: Product Manual")
	assert.Contains(t, out, "Chunks: 1")
	assert.Contains(t, out, "file_name: manual.pdf")
	assert.NotContains(t, out, domain.MetaPageStarts)
	assert.Contains(t, out, "--- chunk 0 [0, 29) page 4 ---")
}

func TestKBShowCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"kb", "show", "missing"})

	err := rootCmd.Execute()

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKBDeleteCmd(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetArgs([]string{"kb", "delete", "doc-1"})

		require.NoError(t, rootCmd.Execute())
		assert.Equal(t, []string{"doc-1"}, mocks.kb.deleted)
		assert.Contains(t, buf.String(), "Removed 2 documents")
	})

	t.Run("single document", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetArgs([]string{"kb", "delete", "doc-1", "--document"})

		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, buf.String(), "Removed document doc-1")
	})

	t.Run("by uri", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetArgs([]string{"kb", "delete", "--uri", "/docs/manual.pdf"})

		require.NoError(t, rootCmd.Execute())
		assert.Equal(t, []string{"/docs/manual.pdf"}, mocks.kb.deletedURIs)
		assert.Contains(t, buf.String(), "Removed 1 documents for /docs/manual.pdf")
	})

	t.Run("unknown uri", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetErr(buf)
		rootCmd.SetArgs([]string{"kb", "delete", "--uri", "/nowhere"})

		assert.ErrorIs(t, rootCmd.Execute(), domain.ErrNotFound)
	})

	t.Run("id and uri together", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetErr(buf)
		rootCmd.SetArgs([]string{"kb", "delete", "doc-1", "--uri", "/docs/manual.pdf"})

		require.Error(t, rootCmd.Execute())
		assert.Empty(t, mocks.kb.deletedURIs)
	})

	t.Run("nothing to delete", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		buf := new(bytes.Buffer)
		rootCmd.SetOut(buf)
		rootCmd.SetErr(buf)
		rootCmd.SetArgs([]string{"kb", "delete"})

		require.Error(t, rootCmd.Execute())
	})
}

func TestKBStatsCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"kb", "stats"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Documents: 1")
	assert.Contains(t, buf.String(), "Vectors:   3")
}
