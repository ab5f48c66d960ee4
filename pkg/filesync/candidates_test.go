// pkg/filesync/candidates_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: None
// PURPOSE: Test the embedded list of well-known dotfiles

package filesync_test

import (
	"testing"

	"github.com/shaneholloman/dotstate/pkg/filesync"
	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	all := filesync.Candidates()
	assert.Greater(t, len(all), 40)

	seen := map[string]bool{}
	for _, c := range all {
		assert.NotEmpty(t, c.Path)
		assert.NotEmpty(t, c.Description, c.Path)
		assert.NotEmpty(t, c.Group, c.Path)
		assert.False(t, seen[c.Path], "duplicate %s", c.Path)
		seen[c.Path] = true
	}

	all[0].Path = "mutated"
	assert.NotEqual(t, "mutated", filesync.Candidates()[0].Path)
}

func TestFindCandidate(t *testing.T) {
	c, ok := filesync.FindCandidate(".zshrc")
	assert.True(t, ok)
	assert.Equal(t, ".zshrc", c.Path)

	_, ok = filesync.FindCandidate("not-a-dotfile")
	assert.False(t, ok)
}
