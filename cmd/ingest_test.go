package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docchat/pkg/extract"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0755))

	for _, name := range []string{"a.txt", "b.md", "c.png", filepath.Join("nested", "d.pdf")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	single := filepath.Join(dir, "c.png")

	files, err := collectFiles([]string{dir, single}, extract.New([]string{".txt", ".md", ".pdf"}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(nested, "d.pdf"),
		single,
	}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")}, extract.New(nil))
	assert.Error(t, err)
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "notes.md", truncateName("notes.md", 24))
	assert.Equal(t, "abcd…", truncateName("abcdefgh.md", 5))
}
