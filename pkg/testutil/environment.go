// pkg/testutil/environment.go
// DEPENDENCIES: afero (memory environments), testify
// PURPOSE: Orchestrate test environments with isolated home and storage

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// EnvType defines the type of test environment
type EnvType int

const (
	EnvMemoryOnly EnvType = iota // afero in-memory filesystem, no links
	EnvIsolated                  // Real filesystem in temp directory
)

// TestEnvironment provides a home directory, a storage root, and the
// filesystem both live on.
type TestEnvironment struct {
	Root        string
	HomeDir     string
	StorageRoot string
	ConfigDir   string

	FS       types.FS
	Resolver *paths.Resolver
	Manifest *manifest.Store

	Type EnvType

	t *testing.T
}

// NewTestEnvironment creates a new test environment. Isolated environments
// also point HOME and the XDG variables into the temp directory.
func NewTestEnvironment(t *testing.T, envType EnvType) *TestEnvironment {
	t.Helper()

	env := &TestEnvironment{t: t, Type: envType}

	switch envType {
	case EnvMemoryOnly:
		env.Root = "/virtual"
		env.FS = filesystem.NewAferoFS(afero.NewMemMapFs())
	default:
		env.Root = t.TempDir()
		env.FS = filesystem.NewOS()
	}

	env.HomeDir = filepath.Join(env.Root, "home")
	env.StorageRoot = filepath.Join(env.Root, "storage")
	env.ConfigDir = filepath.Join(env.Root, "config")

	for _, dir := range []string{env.HomeDir, env.StorageRoot, env.ConfigDir} {
		require.NoError(t, env.FS.MkdirAll(dir, 0755))
	}

	if envType == EnvIsolated {
		t.Setenv("HOME", env.HomeDir)
		t.Setenv("XDG_CONFIG_HOME", env.ConfigDir)
		t.Setenv("XDG_STATE_HOME", filepath.Join(env.Root, "state"))
		t.Setenv("XDG_DATA_HOME", filepath.Join(env.Root, "data"))
		t.Setenv(paths.EnvConfigFile, "")
		t.Setenv("NO_COLOR", "1")
	}

	env.Resolver = paths.NewResolver(env.HomeDir, paths.WithFS(env.FS))
	env.Manifest = manifest.NewStore(env.FS, env.StorageRoot)
	return env
}

// HomePath joins a slash path onto the home directory
func (env *TestEnvironment) HomePath(rel string) string {
	return filepath.Join(env.HomeDir, filepath.FromSlash(rel))
}

// StoragePath joins a slash path onto a scope directory of the storage root
func (env *TestEnvironment) StoragePath(scope, rel string) string {
	return paths.StoragePath(env.StorageRoot, scope, rel)
}

// WriteHome writes a file below home, creating parents
func (env *TestEnvironment) WriteHome(rel, content string) string {
	env.t.Helper()
	return env.write(env.HomePath(rel), content)
}

// WriteStorage writes a file below a scope of the storage root
func (env *TestEnvironment) WriteStorage(scope, rel, content string) string {
	env.t.Helper()
	return env.write(env.StoragePath(scope, rel), content)
}

func (env *TestEnvironment) write(path, content string) string {
	env.t.Helper()
	require.NoError(env.t, env.FS.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(env.t, env.FS.WriteFile(path, []byte(content), 0644))
	return path
}

// ReadFile returns the content at path, failing the test when absent
func (env *TestEnvironment) ReadFile(path string) string {
	env.t.Helper()
	data, err := env.FS.ReadFile(path)
	require.NoError(env.t, err)
	return string(data)
}

// SaveManifest writes m as the storage manifest
func (env *TestEnvironment) SaveManifest(m *manifest.Manifest) {
	env.t.Helper()
	require.NoError(env.t, env.Manifest.Save(m))
}

// LoadManifest reads the storage manifest
func (env *TestEnvironment) LoadManifest() *manifest.Manifest {
	env.t.Helper()
	m, err := env.Manifest.Load()
	require.NoError(env.t, err)
	return m
}

// AssertSymlinkTo checks that path is a link whose target is target
func (env *TestEnvironment) AssertSymlinkTo(path, target string) {
	env.t.Helper()
	info, err := env.FS.Lstat(path)
	require.NoError(env.t, err, "expected link at %s", path)
	require.True(env.t, info.Mode()&os.ModeSymlink != 0, "%s is not a symlink", path)
	got, err := env.FS.Readlink(path)
	require.NoError(env.t, err)
	require.Equal(env.t, filepath.Clean(target), filepath.Clean(got))
}

// AssertRegular checks that path exists and is not a link
func (env *TestEnvironment) AssertRegular(path string) {
	env.t.Helper()
	info, err := env.FS.Lstat(path)
	require.NoError(env.t, err, "expected entry at %s", path)
	require.Zero(env.t, info.Mode()&os.ModeSymlink, "%s is a symlink", path)
}

// AssertMissing checks that nothing exists at path
func (env *TestEnvironment) AssertMissing(path string) {
	env.t.Helper()
	_, err := env.FS.Lstat(path)
	require.True(env.t, os.IsNotExist(err), "expected %s to be absent", path)
}
