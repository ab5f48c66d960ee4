// pkg/scaffold/scaffold_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir), synthfs
// PURPOSE: Test batched directory and file creation

package scaffold_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/scaffold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_CreatesTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")

	b := scaffold.New().
		Dir(root, 0755).
		File(filepath.Join(root, "README.md"), []byte("# repo\n"), 0644).
		Dir(filepath.Join(root, "Personal"), 0755)
	assert.Equal(t, 3, b.Len())

	require.NoError(t, b.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# repo\n", string(data))

	info, err := os.Stat(filepath.Join(root, "Personal"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBatch_SkipsExisting(t *testing.T) {
	root := t.TempDir()
	readme := filepath.Join(root, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("mine\n"), 0644))

	b := scaffold.New().
		Dir(root, 0755).
		File(readme, []byte("generated\n"), 0644)
	assert.Zero(t, b.Len())
	assert.ElementsMatch(t, []string{root, readme}, b.Skipped())

	require.NoError(t, b.Run(context.Background()))
	data, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data))
}
