// pkg/filesync/service_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (testutil.EnvIsolated)
// PURPOSE: Test add/remove round trips, validation, rollback and moves between scopes

package filesync_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesync"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/testutil"
	"github.com/shaneholloman/dotstate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, backups bool, profiles ...string) (*testutil.TestEnvironment, *filesync.Service) {
	t.Helper()
	env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	m := manifest.Default()
	for _, p := range profiles {
		m.Profiles = append(m.Profiles, manifest.Profile{Name: p, SyncedFiles: []string{}})
	}
	env.SaveManifest(m)

	active := ""
	if len(profiles) > 0 {
		active = profiles[0]
	}
	svc := filesync.New(filesync.Options{
		FS:            env.FS,
		Home:          env.HomeDir,
		StorageRoot:   env.StorageRoot,
		ActiveProfile: active,
		BackupEnabled: backups,
	})
	return env, svc
}

func backupsOf(t *testing.T, path string) []string {
	t.Helper()
	matches, err := filepath.Glob(path + ".bak.*")
	require.NoError(t, err)
	return matches
}

func TestAddToSync_SingleFile(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		env, svc := setup(t, enabled, "P")
		home := env.WriteHome(".zshrc", "alias x=y\n")

		res, err := svc.AddToSync(".zshrc", "P")
		require.NoError(t, err)
		assert.Equal(t, filesync.Added, res)

		stored := env.StoragePath("P", ".zshrc")
		assert.Equal(t, "alias x=y\n", env.ReadFile(stored))
		env.AssertSymlinkTo(home, stored)
		assert.Equal(t, "alias x=y\n", env.ReadFile(home))
		assert.Contains(t, env.LoadManifest().Files("P"), ".zshrc")

		if enabled {
			assert.Len(t, backupsOf(t, home), 1)
		} else {
			assert.Empty(t, backupsOf(t, home))
		}
	}
}

func TestAddToSync_DefaultsToActiveProfile(t *testing.T) {
	env, svc := setup(t, false, "Work")
	env.WriteHome(".vimrc", "set nu\n")

	_, err := svc.AddToSync("~/.vimrc", "")
	require.NoError(t, err)
	assert.Equal(t, []string{".vimrc"}, env.LoadManifest().Files("Work"))
}

func TestAddToSync_Idempotent(t *testing.T) {
	env, svc := setup(t, true, "P")
	home := env.WriteHome(".zshrc", "x\n")

	_, err := svc.AddToSync(".zshrc", "P")
	require.NoError(t, err)
	res, err := svc.AddToSync(".zshrc", "P")
	require.NoError(t, err)
	assert.Equal(t, filesync.AlreadySynced, res)

	assert.Equal(t, []string{".zshrc"}, env.LoadManifest().Files("P"))
	assert.Len(t, backupsOf(t, home), 1)
	env.AssertSymlinkTo(home, env.StoragePath("P", ".zshrc"))
}

func TestAddToSync_RelinksDesyncedEntry(t *testing.T) {
	env, svc := setup(t, true, "P")
	home := env.WriteHome(".zshrc", "x\n")
	_, err := svc.AddToSync(".zshrc", "P")
	require.NoError(t, err)

	require.NoError(t, os.Remove(home))
	env.WriteHome(".zshrc", "local edit\n")

	res, err := svc.AddToSync(".zshrc", "P")
	require.NoError(t, err)
	assert.Equal(t, filesync.AlreadySynced, res)
	env.AssertSymlinkTo(home, env.StoragePath("P", ".zshrc"))
	assert.Len(t, backupsOf(t, home), 2)
}

func TestAddToSync_InsideSyncedRejected(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".zshrc", "alias x=y\n")
	_, err := svc.AddToSync(".zshrc", "P")
	require.NoError(t, err)
	before := env.ReadFile(env.Manifest.Path())

	_, err = svc.AddToSync(".zshrc/whatever", "P")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	assert.Equal(t, before, env.ReadFile(env.Manifest.Path()))
}

func TestAddToSync_DirectoryContainingSyncedRejected(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".nvim/init.lua", "vim.o.nu = true\n")
	_, err := svc.AddToSync(".nvim/init.lua", "P")
	require.NoError(t, err)
	before := env.ReadFile(env.Manifest.Path())

	_, err = svc.AddToSync(".nvim", "P")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	assert.Contains(t, err.Error(), "contains files already synced")
	assert.Equal(t, before, env.ReadFile(env.Manifest.Path()))
}

func TestValidate(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".zshrc", "x")
	env.WriteHome("project/.git/HEAD", "ref: refs/heads/main\n")
	env.WriteHome("project/src/main.go", "package main\n")
	env.WriteHome(".tools/plugin/.git/HEAD", "ref\n")

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"regular file", ".zshrc", true},
		{"home itself", env.HomeDir, false},
		{"outside home", "/etc/passwd", false},
		{"missing source", ".missing", false},
		{"git repo", "project", false},
		{"inside git repo", "project/src/main.go", false},
		{"nested repo", ".tools", false},
		{"storage root", env.StorageRoot, false},
		{"storage parent", env.Root, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.input)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

func TestValidate_CommonProfileDisjoint(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".gitconfig", "[user]\n")
	_, err := svc.AddToSync(".gitconfig", "P")
	require.NoError(t, err)

	_, err = svc.AddToSync(".gitconfig", manifest.CommonScope)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	assert.Empty(t, env.LoadManifest().Files(manifest.CommonScope))
}

func TestAddToSync_StorageOrphanRefused(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".zshrc", "home\n")
	env.WriteStorage("P", ".zshrc", "stale\n")

	_, err := svc.AddToSync(".zshrc", "P")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	env.AssertRegular(env.HomePath(".zshrc"))
	assert.Equal(t, "stale\n", env.ReadFile(env.StoragePath("P", ".zshrc")))
}

func TestAddToSync_UnknownProfile(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".zshrc", "x")

	_, err := svc.AddToSync(".zshrc", "Nope")
	assert.True(t, errors.IsErrorCode(err, errors.ErrProfileNotFound))
}

func TestAddToSync_ForeignSymlinkCopiesContent(t *testing.T) {
	env, svc := setup(t, false, "P")
	target := filepath.Join(env.Root, "elsewhere", "tmux.conf")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("set -g mouse on\n"), 0644))
	require.NoError(t, os.Symlink(target, env.HomePath(".tmux.conf")))

	_, err := svc.AddToSync(".tmux.conf", "P")
	require.NoError(t, err)

	stored := env.StoragePath("P", ".tmux.conf")
	env.AssertRegular(stored)
	assert.Equal(t, "set -g mouse on\n", env.ReadFile(stored))
	env.AssertSymlinkTo(env.HomePath(".tmux.conf"), stored)
}

func TestAddToSync_InactiveProfileLeavesHome(t *testing.T) {
	env, svc := setup(t, false, "P1", "P2")
	home := env.WriteHome(".zshrc", "x\n")

	_, err := svc.AddToSync(".zshrc", "P2")
	require.NoError(t, err)

	env.AssertRegular(home)
	assert.Equal(t, "x\n", env.ReadFile(env.StoragePath("P2", ".zshrc")))
	assert.Contains(t, env.LoadManifest().Files("P2"), ".zshrc")
}

// noSymlink fails every link creation after the storage copy is in place.
type noSymlink struct {
	types.FS
}

func (noSymlink) Symlink(oldname, newname string) error {
	return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: os.ErrPermission}
}

func TestAddToSync_LinkFailureRollsBack(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		env := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
		m := manifest.Default()
		m.Profiles = append(m.Profiles, manifest.Profile{Name: "P", SyncedFiles: []string{}})
		env.SaveManifest(m)
		svc := filesync.New(filesync.Options{
			FS:            noSymlink{env.FS},
			Home:          env.HomeDir,
			StorageRoot:   env.StorageRoot,
			ActiveProfile: "P",
			BackupEnabled: enabled,
		})
		home := env.WriteHome(".zshrc", "alias x=y\n")

		_, err := svc.AddToSync(".zshrc", "P")
		require.Error(t, err, "backups=%v", enabled)
		assert.True(t, errors.IsErrorCode(err, errors.ErrIO), "backups=%v", enabled)

		info, err := os.Lstat(home)
		require.NoError(t, err)
		assert.True(t, info.Mode().IsRegular(), "home entry is a regular file again")
		assert.Equal(t, "alias x=y\n", env.ReadFile(home))

		assert.Empty(t, env.LoadManifest().Files("P"))
		_, err = os.Lstat(env.StoragePath("P", ".zshrc"))
		assert.True(t, os.IsNotExist(err), "storage copy removed")
	}
}

func TestRoundTrip(t *testing.T) {
	env, svc := setup(t, true, "P")
	env.WriteHome(".config/nvim/init.lua", "print('hi')\n")
	env.WriteHome(".config/nvim/lua/opts.lua", "return {}\n")
	home := env.HomePath(".config/nvim")

	_, err := svc.AddToSync(".config/nvim", "P")
	require.NoError(t, err)
	env.AssertSymlinkTo(home, env.StoragePath("P", ".config/nvim"))

	res, err := svc.RemoveFromSync(".config/nvim")
	require.NoError(t, err)
	assert.Equal(t, filesync.Removed, res)

	env.AssertRegular(home)
	assert.Equal(t, "print('hi')\n", env.ReadFile(filepath.Join(home, "init.lua")))
	assert.Equal(t, "return {}\n", env.ReadFile(filepath.Join(home, "lua", "opts.lua")))
	env.AssertMissing(env.StoragePath("P", ".config/nvim"))
	env.AssertMissing(env.StoragePath("P", ".config"))
	assert.Empty(t, env.LoadManifest().Files("P"))
}

func TestRemoveFromSync_NotSynced(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".bashrc", "x")

	res, err := svc.RemoveFromSync(".bashrc")
	require.NoError(t, err)
	assert.Equal(t, filesync.NotSynced, res)
	env.AssertRegular(env.HomePath(".bashrc"))
}

func TestMoveToCommon_WithCleanup(t *testing.T) {
	env, svc := setup(t, true, "P1", "P2")
	env.WriteStorage("P1", ".gitconfig", "[user]\n\tname = one\n")
	env.WriteStorage("P2", ".gitconfig", "[user]\n\tname = two\n")
	m := env.LoadManifest()
	m.Profile("P1").SyncedFiles = []string{".gitconfig"}
	m.Profile("P2").SyncedFiles = []string{".gitconfig"}
	env.SaveManifest(m)
	require.NoError(t, os.Symlink(env.StoragePath("P1", ".gitconfig"), env.HomePath(".gitconfig")))

	require.NoError(t, svc.MoveToCommon(".gitconfig", []string{"P1", "P2"}))

	common := env.StoragePath(manifest.CommonScope, ".gitconfig")
	assert.Equal(t, "[user]\n\tname = one\n", env.ReadFile(common))
	env.AssertMissing(env.StoragePath("P1", ".gitconfig"))
	env.AssertMissing(env.StoragePath("P2", ".gitconfig"))

	m = env.LoadManifest()
	assert.Empty(t, m.Files("P1"))
	assert.Empty(t, m.Files("P2"))
	assert.Equal(t, []string{".gitconfig"}, m.Files(manifest.CommonScope))
	env.AssertSymlinkTo(env.HomePath(".gitconfig"), common)
	assert.Empty(t, m.Validate())
}

func TestMoveToCommon_RefusesPartialCleanup(t *testing.T) {
	env, svc := setup(t, false, "P1", "P2")
	env.WriteStorage("P1", ".gitconfig", "a")
	env.WriteStorage("P2", ".gitconfig", "b")
	m := env.LoadManifest()
	m.Profile("P1").SyncedFiles = []string{".gitconfig"}
	m.Profile("P2").SyncedFiles = []string{".gitconfig"}
	env.SaveManifest(m)

	err := svc.MoveToCommon(".gitconfig", []string{"P1"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
	env.AssertMissing(env.StoragePath(manifest.CommonScope, ".gitconfig"))
}

func TestMoveFromCommon(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".vimrc", "syntax on\n")
	_, err := svc.AddToSync(".vimrc", manifest.CommonScope)
	require.NoError(t, err)

	require.NoError(t, svc.MoveFromCommon(".vimrc"))

	stored := env.StoragePath("P", ".vimrc")
	assert.Equal(t, "syntax on\n", env.ReadFile(stored))
	env.AssertMissing(env.StoragePath(manifest.CommonScope, ".vimrc"))
	env.AssertSymlinkTo(env.HomePath(".vimrc"), stored)

	m := env.LoadManifest()
	assert.Empty(t, m.Files(manifest.CommonScope))
	assert.Equal(t, []string{".vimrc"}, m.Files("P"))
}

func TestMoveFromCommon_NotInCommon(t *testing.T) {
	_, svc := setup(t, false, "P")
	err := svc.MoveFromCommon(".vimrc")
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
}

func TestScanDotfiles(t *testing.T) {
	env, svc := setup(t, false, "P")
	env.WriteHome(".zshrc", "x")
	env.WriteHome(".gitconfig", "x")
	env.WriteHome("notes/todo.txt", "x")
	_, err := svc.AddToSync(".gitconfig", manifest.CommonScope)
	require.NoError(t, err)

	got, err := svc.ScanDotfiles([]string{"notes/todo.txt", "~/.absent"})
	require.NoError(t, err)

	byPath := map[string]filesync.Candidate{}
	var order []string
	for _, c := range got {
		byPath[c.Path] = c
		order = append(order, c.Path)
	}
	assert.IsIncreasing(t, order)

	require.Contains(t, byPath, ".zshrc")
	assert.False(t, byPath[".zshrc"].Synced)
	assert.True(t, byPath[".zshrc"].Exists)
	assert.NotEmpty(t, byPath[".zshrc"].Description)

	require.Contains(t, byPath, ".gitconfig")
	assert.True(t, byPath[".gitconfig"].Synced)
	assert.True(t, byPath[".gitconfig"].IsCommon)

	require.Contains(t, byPath, "notes/todo.txt")
	assert.True(t, byPath["notes/todo.txt"].Custom)

	require.Contains(t, byPath, ".absent")
	assert.False(t, byPath[".absent"].Exists)

	assert.NotContains(t, byPath, ".bashrc")
}
