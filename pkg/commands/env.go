package commands

import (
	"sync"

	"github.com/shaneholloman/dotstate/pkg/backup"
	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesync"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/profiles"
	"github.com/shaneholloman/dotstate/pkg/status"
	"github.com/shaneholloman/dotstate/pkg/symlink"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Env holds the collaborators every command shares
type Env struct {
	Config *config.Config
	FS     types.FS
	Home   string

	Resolver *paths.Resolver
	Manifest *manifest.Store
	Backups  *backup.Store
	Links    *symlink.Engine
	// Git performs authenticated operations; StatusGit the background probe.
	Git       git.Driver
	StatusGit git.Driver

	probeOnce   sync.Once
	statusProbe *status.Probe
	branch      string
}

// EnvOption adjusts an Env before its collaborators are built
type EnvOption func(*Env)

// WithFS replaces the OS filesystem
func WithFS(fsys types.FS) EnvOption {
	return func(e *Env) { e.FS = fsys }
}

// WithHome replaces the detected home directory
func WithHome(home string) EnvOption {
	return func(e *Env) { e.Home = home }
}

// WithGit replaces both git drivers
func WithGit(driver git.Driver) EnvOption {
	return func(e *Env) {
		e.Git = driver
		e.StatusGit = driver
	}
}

// NewEnv wires the services for cfg
func NewEnv(cfg *config.Config, opts ...EnvOption) (*Env, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrInternal, "no configuration loaded")
	}
	e := &Env{Config: cfg}
	for _, opt := range opts {
		opt(e)
	}

	if e.FS == nil {
		e.FS = filesystem.NewOS()
	}
	if e.Home == "" {
		home, err := paths.GetHomeDirectory()
		if err != nil {
			return nil, err
		}
		e.Home = home
	}
	if e.Git == nil {
		shell := git.NewShellDriver(git.WithToken(cfg.GitHubToken()))
		e.Git = shell
		e.StatusGit = shell.WithoutCredentials()
	}

	e.Resolver = paths.NewResolver(e.Home, paths.WithFS(e.FS))
	e.Manifest = manifest.NewStore(e.FS, cfg.RepoPath)
	e.Backups = backup.New(e.FS)
	e.Links = symlink.NewEngine(e.FS, cfg.RepoPath, e.Resolver)
	return e, nil
}

// StorageRoot is the configured storage directory
func (e *Env) StorageRoot() string {
	return e.Config.RepoPath
}

// RequireStorage fails with NOT_CONFIGURED when the storage root is absent
func (e *Env) RequireStorage() error {
	info, err := e.FS.Stat(e.StorageRoot())
	if err != nil || !info.IsDir() {
		return errors.Newf(errors.ErrNotConfigured,
			"storage %s does not exist; run 'dotstate setup' first", e.StorageRoot()).
			WithDetail("path", e.StorageRoot())
	}
	return nil
}

// RequireActiveProfile returns the active profile or NOT_CONFIGURED
func (e *Env) RequireActiveProfile() (string, error) {
	if err := e.RequireStorage(); err != nil {
		return "", err
	}
	if e.Config.ActiveProfile == "" {
		return "", errors.New(errors.ErrNotConfigured,
			"no active profile; create one with 'dotstate profile create'")
	}
	return e.Config.ActiveProfile, nil
}

// Sync returns a Sync Service bound to the active profile
func (e *Env) Sync() *filesync.Service {
	return filesync.New(filesync.Options{
		FS:            e.FS,
		Home:          e.Home,
		StorageRoot:   e.StorageRoot(),
		ActiveProfile: e.Config.ActiveProfile,
		BackupEnabled: e.Config.BackupEnabled,
		Resolver:      e.Resolver,
		Manifest:      e.Manifest,
		Backups:       e.Backups,
		Links:         e.Links,
	})
}

// Profiles returns a Profile Service sharing the Sync Service collaborators
func (e *Env) Profiles() *profiles.Service {
	return profiles.New(profiles.Options{
		FS:            e.FS,
		Home:          e.Home,
		StorageRoot:   e.StorageRoot(),
		BackupEnabled: e.Config.BackupEnabled,
		Resolver:      e.Resolver,
		Manifest:      e.Manifest,
		Backups:       e.Backups,
		Links:         e.Links,
	})
}

// saveConfig persists config changes when the config has a file behind it
func (e *Env) saveConfig() error {
	if e.Config.Path() == "" {
		return nil
	}
	return e.Config.Save()
}
