package profiles

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/backup"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/symlink"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Options mirrors filesync.Options so both services can share collaborators
type Options struct {
	FS            types.FS
	Home          string
	StorageRoot   string
	BackupEnabled bool

	Resolver *paths.Resolver
	Manifest *manifest.Store
	Backups  *backup.Store
	Links    *symlink.Engine
}

// Service manages profiles in one storage root
type Service struct {
	fs            types.FS
	home          string
	storageRoot   string
	backupEnabled bool

	manifest *manifest.Store
	backups  *backup.Store
	links    *symlink.Engine
}

// New creates a Service, filling unset collaborators from opts
func New(opts Options) *Service {
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	if opts.Resolver == nil {
		opts.Resolver = paths.NewResolver(opts.Home, paths.WithFS(opts.FS))
	}
	if opts.Manifest == nil {
		opts.Manifest = manifest.NewStore(opts.FS, opts.StorageRoot)
	}
	if opts.Backups == nil {
		opts.Backups = backup.New(opts.FS)
	}
	if opts.Links == nil {
		opts.Links = symlink.NewEngine(opts.FS, opts.StorageRoot, opts.Resolver)
	}
	return &Service{
		fs:            opts.FS,
		home:          filepath.Clean(opts.Home),
		storageRoot:   filepath.Clean(opts.StorageRoot),
		backupEnabled: opts.BackupEnabled,
		manifest:      opts.Manifest,
		backups:       opts.Backups,
		links:         opts.Links,
	}
}

func (s *Service) homePath(rel string) string {
	return filepath.Join(s.home, filepath.FromSlash(rel))
}

func (s *Service) storagePath(scope, rel string) string {
	return paths.StoragePath(s.storageRoot, scope, rel)
}

func (s *Service) load(name string) (*manifest.Manifest, *manifest.Profile, error) {
	m, err := s.manifest.Load()
	if err != nil {
		return nil, nil, err
	}
	p := m.Profile(name)
	if p == nil {
		return m, nil, errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", name).
			WithDetail("profile", name)
	}
	return m, p, nil
}

// List returns the profiles in manifest order
func (s *Service) List() ([]manifest.Profile, error) {
	m, err := s.manifest.Load()
	if err != nil {
		return nil, err
	}
	return m.Profiles, nil
}

// Create adds a profile and its storage directory and returns the sanitized
// name. With copyFrom set, the source profile's storage and file list are
// duplicated. Home is never touched.
func (s *Service) Create(name, description, copyFrom string) (string, error) {
	logger := logging.GetLogger("profiles")

	sanitized := paths.SanitizeProfileName(name)
	m, err := s.manifest.Load()
	if err != nil {
		return "", err
	}
	if err := paths.ValidateProfileName(sanitized, m.ProfileNames()); err != nil {
		return "", err
	}

	profile := manifest.Profile{
		Name:        sanitized,
		Description: strings.TrimSpace(description),
		SyncedFiles: []string{},
	}

	var source *manifest.Profile
	if copyFrom != "" {
		if source = m.Profile(copyFrom); source == nil {
			return "", errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", copyFrom).
				WithDetail("profile", copyFrom)
		}
	}

	dir := paths.ScopeDir(s.storageRoot, sanitized)
	created := false
	if filesystem.Exists(s.fs, dir) {
		logger.Warn().Str("dir", dir).Msg("Profile directory already exists, reusing it")
	} else {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return "", errors.IO(err, "mkdir", dir)
		}
		created = true
	}

	if source != nil {
		for _, rel := range source.SyncedFiles {
			src := s.storagePath(source.Name, rel)
			if !filesystem.Exists(s.fs, src) {
				logger.Warn().Str("path", rel).Str("profile", source.Name).Msg("Missing in storage, not copied")
				continue
			}
			dest := s.storagePath(sanitized, rel)
			if err := filesystem.Copy(s.fs, src, dest); err != nil {
				if created {
					_ = s.fs.RemoveAll(dir)
				}
				return "", errors.IO(err, "copy", src).WithDetail("dest", dest)
			}
			profile.SyncedFiles = append(profile.SyncedFiles, rel)
		}
		profile.Packages = append(profile.Packages, source.Packages...)
	}

	if err := s.manifest.AddProfile(profile); err != nil {
		if created {
			_ = s.fs.RemoveAll(dir)
		}
		return "", err
	}

	logger.Info().Str("profile", sanitized).Str("copyFrom", copyFrom).Msg("Profile created")
	return sanitized, nil
}

// Rename renames old to the sanitized form of name. When the profile is
// activated its links are removed first and reinstalled against the renamed
// directory afterwards.
func (s *Service) Rename(old, name string, isActivated bool) (string, error) {
	logger := logging.GetLogger("profiles")

	m, p, err := s.load(old)
	if err != nil {
		return "", err
	}
	sanitized := paths.SanitizeProfileName(name)
	if sanitized == old {
		return old, nil
	}
	var others []string
	for _, n := range m.ProfileNames() {
		if n != old {
			others = append(others, n)
		}
	}
	if err := paths.ValidateProfileName(sanitized, others); err != nil {
		return "", err
	}

	oldDir := paths.ScopeDir(s.storageRoot, old)
	newDir := paths.ScopeDir(s.storageRoot, sanitized)
	caseOnly := strings.EqualFold(old, sanitized)
	if !caseOnly && filesystem.Exists(s.fs, newDir) {
		return "", errors.Validation("storage already has a directory named %s", sanitized).WithDetail("path", newDir)
	}

	files := append([]string(nil), p.SyncedFiles...)
	if isActivated {
		for _, rel := range files {
			if s.links.PointsTo(s.homePath(rel), s.storagePath(old, rel)) {
				if err := s.links.Remove(s.homePath(rel)); err != nil {
					return "", err
				}
			}
		}
	}

	relink := func(scope string) []string {
		var failed []string
		for _, rel := range files {
			if err := s.links.Install(s.homePath(rel), s.storagePath(scope, rel)); err != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", rel, errors.UserMessage(err)))
			}
		}
		return failed
	}

	if filesystem.Exists(s.fs, oldDir) {
		if err := s.fs.Rename(oldDir, newDir); err != nil {
			if isActivated {
				relink(old)
			}
			return "", errors.IO(err, "rename", oldDir).WithDetail("dest", newDir)
		}
	}

	if _, err := s.manifest.RenameProfile(old, sanitized); err != nil {
		if filesystem.Exists(s.fs, newDir) {
			_ = s.fs.Rename(newDir, oldDir)
		}
		if isActivated {
			relink(old)
		}
		return "", err
	}

	if isActivated {
		if failed := relink(sanitized); len(failed) > 0 {
			return sanitized, errors.Newf(errors.ErrIO, "renamed to %s but %d links failed", sanitized, len(failed)).
				WithDetail("errors", failed)
		}
	}

	logger.Info().Str("from", old).Str("to", sanitized).Bool("activated", isActivated).Msg("Profile renamed")
	return sanitized, nil
}

// Delete removes a profile's storage directory and manifest entry. The
// active profile cannot be deleted. Home links are left alone.
func (s *Service) Delete(name, active string) error {
	if name == active {
		return errors.Newf(errors.ErrProfileDeletionOfActive, "cannot delete the active profile %q; switch to another profile first", name).
			WithDetail("profile", name)
	}
	if _, _, err := s.load(name); err != nil {
		return err
	}

	// Drop the record first: a leftover directory is an orphan doctor can
	// report, a record without storage is not.
	if err := s.manifest.DeleteProfile(name, active); err != nil {
		return err
	}
	dir := paths.ScopeDir(s.storageRoot, name)
	if err := s.fs.RemoveAll(dir); err != nil {
		return errors.IO(err, "remove", dir)
	}

	logger := logging.GetLogger("profiles")
	logger.Info().Str("profile", name).Msg("Profile deleted")
	return nil
}
