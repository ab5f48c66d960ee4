// pkg/symlink/symlink_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir)
// PURPOSE: Test link install/replace/verify, uninstall restore and managed-link detection

package symlink_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/symlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	home    string
	storage string
	engine  *symlink.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	storage := filepath.Join(dir, "storage")
	require.NoError(t, os.MkdirAll(home, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(storage, "P"), 0755))
	fs := filesystem.NewOS()
	return fixture{
		home:    home,
		storage: storage,
		engine:  symlink.NewEngine(fs, storage, paths.NewResolver(home)),
	}
}

func (f fixture) storageFile(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.storage, "P", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestInstall_ReplacesRegularFile(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".zshrc", "new")
	homePath := filepath.Join(f.home, ".zshrc")
	require.NoError(t, os.WriteFile(homePath, []byte("old"), 0644))

	require.NoError(t, f.engine.Install(homePath, target))

	link, err := os.Readlink(homePath)
	require.NoError(t, err)
	assert.Equal(t, target, link)
	assert.True(t, f.engine.IsManaged(homePath))
	assert.True(t, f.engine.PointsTo(homePath, target))
}

func TestInstall_CreatesParent(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".config/starship.toml", "x")
	homePath := filepath.Join(f.home, ".config", "starship.toml")

	require.NoError(t, f.engine.Install(homePath, target))
	assert.True(t, f.engine.PointsTo(homePath, target))
}

func TestInstall_ReplacesDirectoryAndBrokenLink(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".config/nvim/init.lua", "x")
	targetDir := filepath.Dir(target)

	homeDir := filepath.Join(f.home, ".config", "nvim")
	require.NoError(t, os.MkdirAll(homeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, "old.lua"), []byte("y"), 0644))
	require.NoError(t, f.engine.Install(homeDir, targetDir))
	assert.True(t, f.engine.PointsTo(homeDir, targetDir))

	broken := filepath.Join(f.home, ".vimrc")
	require.NoError(t, os.Symlink(filepath.Join(f.home, "missing"), broken))
	vimrc := f.storageFile(t, ".vimrc", "set nu")
	require.NoError(t, f.engine.Install(broken, vimrc))
	assert.True(t, f.engine.PointsTo(broken, vimrc))
}

func TestInstall_Idempotent(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".zshrc", "x")
	homePath := filepath.Join(f.home, ".zshrc")

	require.NoError(t, f.engine.Install(homePath, target))
	before, err := os.Lstat(homePath)
	require.NoError(t, err)

	require.NoError(t, f.engine.Install(homePath, target))
	after, err := os.Lstat(homePath)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "link was not recreated")
}

func TestInstall_Retarget(t *testing.T) {
	f := newFixture(t)
	first := f.storageFile(t, ".zshrc", "p")
	common := filepath.Join(f.storage, "common", ".zshrc")
	require.NoError(t, os.MkdirAll(filepath.Dir(common), 0755))
	require.NoError(t, os.WriteFile(common, []byte("c"), 0644))
	homePath := filepath.Join(f.home, ".zshrc")

	require.NoError(t, f.engine.Install(homePath, first))
	require.NoError(t, f.engine.Install(homePath, common))
	assert.True(t, f.engine.PointsTo(homePath, common))
}

func TestInstall_MissingTarget(t *testing.T) {
	f := newFixture(t)
	homePath := filepath.Join(f.home, ".zshrc")
	require.NoError(t, os.WriteFile(homePath, []byte("keep"), 0644))

	err := f.engine.Install(homePath, filepath.Join(f.storage, "P", "nope"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	data, err := os.ReadFile(homePath)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestUninstall_RestoresContent(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".zshrc", "alias x=y\n")
	homePath := filepath.Join(f.home, ".zshrc")
	require.NoError(t, f.engine.Install(homePath, target))

	require.NoError(t, f.engine.Uninstall(homePath, target))

	info, err := os.Lstat(homePath)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	data, err := os.ReadFile(homePath)
	require.NoError(t, err)
	assert.Equal(t, "alias x=y\n", string(data))
	assert.FileExists(t, target, "storage copy is kept")
}

func TestUninstall_Directory(t *testing.T) {
	f := newFixture(t)
	f.storageFile(t, ".config/nvim/lua/a.lua", "a")
	targetDir := filepath.Join(f.storage, "P", ".config", "nvim")
	homeDir := filepath.Join(f.home, ".config", "nvim")
	require.NoError(t, f.engine.Install(homeDir, targetDir))

	require.NoError(t, f.engine.Uninstall(homeDir, targetDir))

	info, err := os.Lstat(homeDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(homeDir, "lua", "a.lua"))
}

func TestUninstall_NeverDeletesRegularFile(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".zshrc", "storage")
	homePath := filepath.Join(f.home, ".zshrc")
	require.NoError(t, os.WriteFile(homePath, []byte("user edit"), 0644))

	require.NoError(t, f.engine.Uninstall(homePath, target))

	data, err := os.ReadFile(homePath)
	require.NoError(t, err)
	assert.Equal(t, "user edit", string(data))
}

func TestIsManaged(t *testing.T) {
	f := newFixture(t)
	target := f.storageFile(t, ".zshrc", "x")

	managed := filepath.Join(f.home, ".zshrc")
	require.NoError(t, os.Symlink(target, managed))
	assert.True(t, f.engine.IsManaged(managed))

	outside := filepath.Join(f.home, "outside")
	other := filepath.Join(f.home, "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.Symlink(other, outside))
	assert.False(t, f.engine.IsManaged(outside))

	assert.False(t, f.engine.IsManaged(other), "regular file")
	assert.False(t, f.engine.IsManaged(filepath.Join(f.home, "absent")))

	// chained through an unmanaged link still counts
	chained := filepath.Join(f.home, "chained")
	require.NoError(t, os.Symlink(managed, chained))
	assert.True(t, f.engine.IsManaged(chained))

	loop := filepath.Join(f.home, "loop")
	require.NoError(t, os.Symlink(loop, loop))
	assert.False(t, f.engine.IsManaged(loop))
}
