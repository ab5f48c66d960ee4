// pkg/paths/paths_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: Environment variables (t.Setenv)
// PURPOSE: Test XDG locations, environment overrides and storage path mapping

package paths_test

import (
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/stretchr/testify/assert"
)

func TestLocations_FollowXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv(paths.EnvConfigFile, "")
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	t.Setenv(paths.EnvStateDir, "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))

	assert.Equal(t, filepath.Join(base, "config", "dotstate"), paths.ConfigDir())
	assert.Equal(t, filepath.Join(base, "config", "dotstate", "config.toml"), paths.ConfigFile())
	assert.Equal(t, filepath.Join(base, "data", "dotstate", "storage"), paths.DefaultStorageRoot())
	assert.Equal(t, filepath.Join(base, "state", "dotstate", "dotstate.log"), paths.LogFilePath())
}

func TestLocations_Overrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(paths.EnvConfigFile, "~/cfg/dotstate.toml")
	t.Setenv(paths.EnvDataDir, "/srv/dotstate")
	t.Setenv(paths.EnvStateDir, "/var/dotstate")

	assert.Equal(t, filepath.Join(home, "cfg", "dotstate.toml"), paths.ConfigFile())
	assert.Equal(t, "/srv/dotstate/storage", paths.DefaultStorageRoot())
	assert.Equal(t, "/var/dotstate", paths.StateDir())
}

func TestStoragePaths(t *testing.T) {
	assert.Equal(t, "/s/.dotstate-profiles.toml", paths.ManifestPath("/s"))
	assert.Equal(t, "/s/common", paths.ScopeDir("/s", paths.CommonDirName))
	assert.Equal(t, "/s/Work/.config/nvim", paths.StoragePath("/s", "Work", ".config/nvim"))
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/alice")
	assert.Equal(t, "/home/alice", paths.ExpandHome("~"))
	assert.Equal(t, "/home/alice/x", paths.ExpandHome("~/x"))
	assert.Equal(t, "~bob/x", paths.ExpandHome("~bob/x"))
	assert.Equal(t, "/abs", paths.ExpandHome("/abs"))
	assert.Equal(t, "", paths.ExpandHome(""))
}
