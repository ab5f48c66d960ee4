package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/shaneholloman/dotstate/pkg/errors"
)

// Environment variable names
const (
	// EnvConfigFile points at the config file directly
	EnvConfigFile = "DOTSTATE_CONFIG"

	// EnvConfigDir overrides the XDG config directory for dotstate
	EnvConfigDir = "DOTSTATE_CONFIG_DIR"

	// EnvDataDir overrides the XDG data directory for dotstate
	EnvDataDir = "DOTSTATE_DATA_DIR"

	// EnvStateDir overrides the XDG state directory for dotstate
	EnvStateDir = "DOTSTATE_STATE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Fixed names inside the storage root and the XDG directories. These are part
// of the on-disk format and are not user-configurable.
const (
	// AppDirName is the directory name used under each XDG base directory
	AppDirName = "dotstate"

	// ConfigFileName is the name of the user config file
	ConfigFileName = "config.toml"

	// ManifestFileName is the manifest file at the storage root
	ManifestFileName = ".dotstate-profiles.toml"

	// CommonDirName is the storage subdirectory of the common scope
	CommonDirName = "common"

	// StorageDirName is the default storage root under the data directory
	StorageDirName = "storage"

	// LogFileName is the name of the log file
	LogFileName = "dotstate.log"
)

// ConfigDir returns the dotstate config directory.
// xdg caches its values at init, so the raw XDG variables are consulted first;
// tests rely on changing them at runtime.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return ExpandHome(dir)
	}
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, AppDirName)
	}
	return filepath.Join(xdg.ConfigHome, AppDirName)
}

// ConfigFile returns the path of the user config file
func ConfigFile() string {
	if file := os.Getenv(EnvConfigFile); file != "" {
		return ExpandHome(file)
	}
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// DataDir returns the dotstate data directory
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return ExpandHome(dir)
	}
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, AppDirName)
	}
	return filepath.Join(xdg.DataHome, AppDirName)
}

// StateDir returns the dotstate state directory, home of the log file
func StateDir() string {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return ExpandHome(dir)
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, AppDirName)
	}
	return filepath.Join(xdg.StateHome, AppDirName)
}

// DefaultStorageRoot is the storage root used when the config does not name one
func DefaultStorageRoot() string {
	return filepath.Join(DataDir(), StorageDirName)
}

// LogFilePath returns the path to the dotstate log file
func LogFilePath() string {
	return filepath.Join(StateDir(), LogFileName)
}

// ManifestPath returns the manifest location for a storage root
func ManifestPath(storageRoot string) string {
	return filepath.Join(storageRoot, ManifestFileName)
}

// ScopeDir returns the storage directory of a scope (a profile name or "common")
func ScopeDir(storageRoot, scope string) string {
	return filepath.Join(storageRoot, scope)
}

// StoragePath maps a home-relative path into a scope of the storage root
func StoragePath(storageRoot, scope, rel string) string {
	return filepath.Join(storageRoot, scope, filepath.FromSlash(rel))
}

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrNotFound, "failed to get home directory")
	}
	return homeDir, nil
}

// ExpandHome expands a leading ~ using the process home directory.
// Use Resolver.Expand when a specific home is known.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := GetHomeDirectory()
	if err != nil {
		return path
	}
	if len(path) == 1 {
		return home
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:])
	}
	// ~user is not supported
	return path
}
