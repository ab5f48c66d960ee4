// pkg/testutil/git.go
// DEPENDENCIES: git binary
// PURPOSE: Create throwaway repositories and bare remotes for git tests

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireGit skips the test when git is not installed and isolates git from
// the user's global and system config.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	if os.Getenv("HOME") == "" || !strings.HasPrefix(os.Getenv("HOME"), os.TempDir()) {
		t.Setenv("HOME", t.TempDir())
	}
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))
}

// Git runs git in dir and returns trimmed output
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{"-C", dir,
		"-c", "user.name=test", "-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false", "-c", "init.defaultBranch=main"}, args...)
	out, err := exec.Command("git", full...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

// InitGitRepo makes dir a repository on branch main with one commit
func InitGitRepo(t *testing.T, dir string) {
	t.Helper()
	RequireGit(t)
	require.NoError(t, os.MkdirAll(dir, 0755))
	Git(t, dir, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644))
	Git(t, dir, "add", "-A")
	Git(t, dir, "commit", "-m", "Initial commit")
}

// NewBareRemote creates a bare repository and returns its path
func NewBareRemote(t *testing.T) string {
	t.Helper()
	RequireGit(t)
	dir := filepath.Join(t.TempDir(), "remote.git")
	require.NoError(t, os.MkdirAll(dir, 0755))
	Git(t, dir, "init", "--bare", "-b", "main")
	return dir
}
