// pkg/manifest/backfill_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: afero MemMapFs (in-memory filesystem)
// PURPOSE: Test manifest reconstruction from the storage tree and orphan detection

package manifest_test

import (
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, fs types.FS, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, fs.WriteFile(p, []byte("x"), 0644))
}

func TestLoadOrBackfill_CreatesProfilesWithTwoLevelScan(t *testing.T) {
	store, fs := newMemStore(t)
	touch(t, fs, "Work/.zshrc")
	touch(t, fs, "Work/.config/nvim/init.lua")
	touch(t, fs, "Work/.config/starship.toml")
	touch(t, fs, "Work/.oh-my-zsh/oh-my-zsh.sh")
	touch(t, fs, "common/.gitconfig")
	touch(t, fs, ".git/HEAD")
	touch(t, fs, "node_modules/x/index.js")
	touch(t, fs, "README.md")

	m, orphans, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Empty(t, orphans)

	assert.Equal(t, []string{"Work"}, m.ProfileNames())
	assert.Equal(t, []string{".config/nvim", ".config/starship.toml", ".oh-my-zsh", ".zshrc"}, m.Files("Work"))
	assert.Equal(t, []string{".gitconfig"}, m.Common.SyncedFiles)
	assert.True(t, store.Exists(), "backfill result is saved")

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, m.Files("Work"), reloaded.Files("Work"))
}

func TestLoadOrBackfill_ExpandsOnlyContainerDirs(t *testing.T) {
	store, fs := newMemStore(t)
	touch(t, fs, "Work/.vim/autoload/plug.vim")
	touch(t, fs, "Work/.vim/colors/gruvbox.vim")
	touch(t, fs, "Work/.local/bin/tool")
	touch(t, fs, "Work/.ssh/config")

	m, _, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Equal(t, []string{".local/bin", ".ssh/config", ".vim"}, m.Files("Work"))
}

func TestLoadOrBackfill_KeepsRecordedListsAndFlagsOrphans(t *testing.T) {
	store, fs := newMemStore(t)
	writeManifest(t, fs, `
[common]
synced_files = []

[[profiles]]
name = "Personal"
synced_files = [".zshrc", ".config/nvim"]
`)
	touch(t, fs, "Personal/.zshrc")
	touch(t, fs, "Personal/.config/nvim/init.lua")
	touch(t, fs, "Personal/.stray")
	touch(t, fs, "notes.txt")

	m, orphans, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Equal(t, []string{".config/nvim", ".zshrc"}, m.Files("Personal"))
	assert.Equal(t, []string{"Personal/.stray", "notes.txt"}, orphans)
}

func TestLoadOrBackfill_FillsEmptyProfile(t *testing.T) {
	store, fs := newMemStore(t)
	writeManifest(t, fs, `
[[profiles]]
name = "Personal"
synced_files = []
`)
	touch(t, fs, "Personal/.bashrc")

	m, _, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Equal(t, []string{".bashrc"}, m.Files("Personal"))
}

func TestLoadOrBackfill_InvalidDirectoryNameIsOrphan(t *testing.T) {
	store, fs := newMemStore(t)
	touch(t, fs, "build/out.o")
	touch(t, fs, "has space/.zshrc")

	m, orphans, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Empty(t, m.Profiles)
	assert.Equal(t, []string{"build", "has space"}, orphans)
}

func TestLoadOrBackfill_MissingRoot(t *testing.T) {
	store, fs := newMemStore(t)
	require.NoError(t, fs.RemoveAll(root))

	m, orphans, err := store.LoadOrBackfill()
	require.NoError(t, err)
	assert.Empty(t, orphans)
	assert.Empty(t, m.Profiles)
	assert.False(t, store.Exists())
}

func TestNormalizeRel(t *testing.T) {
	got, err := manifest.NormalizeRel("./.config//nvim/")
	require.NoError(t, err)
	assert.Equal(t, ".config/nvim", got)

	for _, bad := range []string{"", "/etc/hosts", "..", "../x", "."} {
		_, err := manifest.NormalizeRel(bad)
		assert.Error(t, err, bad)
	}
}

func TestOrphans_ReadOnly(t *testing.T) {
	store, fs := newMemStore(t)
	m := manifest.Default()
	m.Profiles = append(m.Profiles, manifest.Profile{Name: "Personal", SyncedFiles: []string{".zshrc"}})
	require.NoError(t, store.Save(m))

	touch(t, fs, "Personal/.zshrc")
	touch(t, fs, "Personal/.vimrc")
	touch(t, fs, "Stray/.bashrc")
	touch(t, fs, "loose.txt")
	touch(t, fs, "README.md")

	orphans, err := store.Orphans(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"Personal/.vimrc", "Stray", "loose.txt"}, orphans)

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Personal"}, reloaded.ProfileNames(), "nothing is backfilled")
}
