// Package filesync moves dotfiles between the home directory and the storage
// root. Every operation validates first, backs up before destroying, and
// rolls back its own partial work when a later step fails.
package filesync

import (
	"path/filepath"
	"sort"

	"github.com/shaneholloman/dotstate/pkg/backup"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/symlink"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// AddResult tells a fresh add apart from a repeated one
type AddResult int

const (
	Added AddResult = iota
	AlreadySynced
)

func (r AddResult) String() string {
	if r == AlreadySynced {
		return "already synced"
	}
	return "added"
}

// RemoveResult tells a removal apart from a no-op
type RemoveResult int

const (
	Removed RemoveResult = iota
	NotSynced
)

func (r RemoveResult) String() string {
	if r == NotSynced {
		return "not synced"
	}
	return "removed"
}

// Options holds the collaborators of a Service. Only FS, Home, and
// StorageRoot are required; the rest default to instances built from them.
type Options struct {
	FS            types.FS
	Home          string
	StorageRoot   string
	ActiveProfile string
	BackupEnabled bool

	Resolver *paths.Resolver
	Manifest *manifest.Store
	Backups  *backup.Store
	Links    *symlink.Engine
}

// Service implements add/remove/move/scan over one home and storage root
type Service struct {
	fs            types.FS
	home          string
	storageRoot   string
	activeProfile string
	backupEnabled bool

	resolver *paths.Resolver
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
		activeProfile: opts.ActiveProfile,
		backupEnabled: opts.BackupEnabled,
		resolver:      opts.Resolver,
		manifest:      opts.Manifest,
		backups:       opts.Backups,
		links:         opts.Links,
	}
}

// ActiveProfile returns the profile the service operates on
func (s *Service) ActiveProfile() string {
	return s.activeProfile
}

// homePath maps a manifest path into home
func (s *Service) homePath(rel string) string {
	return filepath.Join(s.home, filepath.FromSlash(rel))
}

// storagePath maps a manifest path into a scope of the storage root
func (s *Service) storagePath(scope, rel string) string {
	return paths.StoragePath(s.storageRoot, scope, rel)
}

// relative turns user input (~/x, /home/u/x, or x) into a manifest path.
func (s *Service) relative(input string) (string, error) {
	rel, err := s.resolver.Relative(input)
	if err != nil {
		return "", err
	}
	return manifest.NormalizeRel(rel)
}

func (s *Service) scopeOrActive(scope string) (string, error) {
	if scope == "" {
		scope = s.activeProfile
	}
	if scope == "" {
		return "", errors.New(errors.ErrNotConfigured, "no active profile; create or select a profile first")
	}
	return scope, nil
}

// AddToSync moves home entry rel into scope (a profile name or
// manifest.CommonScope; "" means the active profile) and replaces it with a
// link. Calling it again for a synced path is a no-op.
func (s *Service) AddToSync(input, scope string) (AddResult, error) {
	logger := logging.GetLogger("filesync")
	done := logging.LogOperationStart(logger, "add_to_sync")
	defer done()

	scope, err := s.scopeOrActive(scope)
	if err != nil {
		return Added, err
	}
	rel, err := s.relative(input)
	if err != nil {
		return Added, err
	}
	m, err := s.manifest.Load()
	if err != nil {
		return Added, err
	}
	if scope != manifest.CommonScope && !m.HasProfile(scope) {
		return Added, errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", scope).WithDetail("profile", scope)
	}

	homePath := s.homePath(rel)
	dest := s.storagePath(scope, rel)

	if m.HasFile(scope, rel) {
		if scope != manifest.CommonScope && scope != s.activeProfile {
			return AlreadySynced, nil
		}
		return AlreadySynced, s.relink(rel, homePath, dest)
	}

	if err := s.validate(m, rel, scope); err != nil {
		logger.Warn().Str("path", rel).Err(err).Msg("Validation failed")
		return Added, err
	}
	if filesystem.Exists(s.fs, dest) {
		return Added, errors.Validation("storage already holds %s/%s without a manifest record; run `dotstate doctor` to inspect it", scope, rel).
			WithDetail("path", dest)
	}

	logger.Info().Str("path", rel).Str("scope", scope).Msg("Adding file to sync")

	// Home only follows the active profile and common; adding to another
	// profile stores a copy and leaves home alone.
	linkHome := scope == manifest.CommonScope || scope == s.activeProfile

	var bak string
	if linkHome {
		if bak, err = s.backups.Backup(homePath, s.backupEnabled); err != nil {
			return Added, err
		}
	}

	// A link we do not manage is synced by content: the resolved target is
	// copied, not the link itself.
	if err := filesystem.CopyFollow(s.fs, homePath, dest); err != nil {
		_ = s.fs.RemoveAll(dest)
		return Added, errors.IO(err, "copy", homePath).WithDetail("dest", dest)
	}

	if err := s.manifest.AddFile(scope, rel); err != nil {
		_ = s.fs.RemoveAll(dest)
		s.pruneEmptyParents(scope, rel)
		return Added, err
	}

	if !linkHome {
		logger.Info().Str("path", rel).Str("scope", scope).Msg("File stored for inactive profile")
		return Added, nil
	}
	if err := s.links.Install(homePath, dest); err != nil {
		logger.Error().Str("path", rel).Err(err).Msg("Link failed, rolling back")
		s.rollbackAdd(scope, rel, homePath, dest, bak)
		return Added, err
	}

	logger.Info().Str("path", rel).Str("scope", scope).Str("backup", bak).Msg("File synced")
	return Added, nil
}

// relink restores the link for a path the manifest already records, when
// the home entry has drifted (desynced) and the storage copy is present.
func (s *Service) relink(rel, homePath, dest string) error {
	if s.links.PointsTo(homePath, dest) {
		return nil
	}
	if !filesystem.Exists(s.fs, dest) {
		return errors.Newf(errors.ErrManifestInvariant, "%s is recorded as synced but %s is missing from storage", rel, dest).
			WithDetail("path", dest)
	}
	logger := logging.GetLogger("filesync")
	logger.Warn().Str("path", rel).Msg("Synced file was desynced, relinking")
	if !s.links.IsManaged(homePath) {
		if _, err := s.backups.Backup(homePath, s.backupEnabled); err != nil {
			return err
		}
	}
	return s.links.Install(homePath, dest)
}

func (s *Service) rollbackAdd(scope, rel, homePath, dest, bak string) {
	logger := logging.GetLogger("filesync")

	if bak != "" {
		if err := s.backups.Restore(bak, homePath); err != nil {
			logger.Error().Err(err).Str("backup", bak).Msg("Rollback could not restore backup")
		}
	} else if !filesystem.Exists(s.fs, homePath) || filesystem.IsSymlink(s.fs, homePath) {
		_ = s.links.Remove(homePath)
		if err := filesystem.Copy(s.fs, dest, homePath); err != nil {
			logger.Error().Err(err).Str("path", homePath).Msg("Rollback could not restore from storage copy")
			// keep the storage copy, it is the only one left
			return
		}
	}
	if err := s.manifest.RemoveFile(scope, rel); err != nil {
		logger.Error().Err(err).Msg("Rollback could not undo manifest entry")
	}
	_ = s.fs.RemoveAll(dest)
	s.pruneEmptyParents(scope, rel)
}

// RemoveFromSync puts the storage content back into home, deletes the
// storage copy, and drops the manifest record. Unsynced paths are a no-op.
func (s *Service) RemoveFromSync(input string) (RemoveResult, error) {
	logger := logging.GetLogger("filesync")

	rel, err := s.relative(input)
	if err != nil {
		return NotSynced, err
	}
	m, err := s.manifest.Load()
	if err != nil {
		return NotSynced, err
	}
	scope, ok := m.ScopeOf(rel, s.activeProfile)
	if !ok {
		logger.Debug().Str("path", rel).Msg("Not synced, nothing to remove")
		return NotSynced, nil
	}

	homePath := s.homePath(rel)
	src := s.storagePath(scope, rel)

	if err := s.links.Uninstall(homePath, src); err != nil {
		return NotSynced, err
	}
	if err := s.fs.RemoveAll(src); err != nil {
		return NotSynced, errors.IO(err, "remove", src)
	}
	s.pruneEmptyParents(scope, rel)
	if err := s.manifest.RemoveFile(scope, rel); err != nil {
		return NotSynced, err
	}

	logger.Info().Str("path", rel).Str("scope", scope).Msg("File removed from sync")
	return Removed, nil
}

// MoveToCommon moves rel from the profiles holding it into common. Every
// profile that still holds rel must be listed in cleanupProfiles, since a
// path cannot be in common and in a profile at once.
func (s *Service) MoveToCommon(input string, cleanupProfiles []string) error {
	logger := logging.GetLogger("filesync")

	rel, err := s.relative(input)
	if err != nil {
		return err
	}
	m, err := s.manifest.Load()
	if err != nil {
		return err
	}
	if m.IsCommon(rel) {
		return nil
	}

	holders := m.ProfilesWith(rel)
	if len(holders) == 0 {
		return errors.Validation("%s is not synced in any profile", rel).WithDetail("path", rel)
	}
	cleanup := map[string]bool{}
	for _, p := range cleanupProfiles {
		cleanup[p] = true
	}
	var remaining []string
	for _, h := range holders {
		if !cleanup[h] {
			remaining = append(remaining, h)
		}
	}
	if len(remaining) > 0 {
		return errors.Validation("%s is also synced in %v; include those profiles to move it to common", rel, remaining).
			WithDetail("profiles", remaining)
	}

	source := s.activeProfile
	if !m.HasFile(source, rel) {
		source = holders[0]
	}
	src := s.storagePath(source, rel)
	dest := s.storagePath(manifest.CommonScope, rel)
	if !filesystem.Exists(s.fs, src) {
		return errors.Validation("storage copy %s does not exist", src).WithDetail("path", src)
	}

	if filesystem.Exists(s.fs, dest) {
		if err := s.fs.RemoveAll(dest); err != nil {
			return errors.IO(err, "remove", dest)
		}
	}
	if err := filesystem.Copy(s.fs, src, dest); err != nil {
		_ = s.fs.RemoveAll(dest)
		return errors.IO(err, "copy", src).WithDetail("dest", dest)
	}

	err = s.manifest.Update(func(m *manifest.Manifest) error {
		for i := range m.Profiles {
			if cleanup[m.Profiles[i].Name] {
				m.Profiles[i].SyncedFiles = remove(m.Profiles[i].SyncedFiles, rel)
			}
		}
		m.Common.SyncedFiles = append(m.Common.SyncedFiles, rel)
		return nil
	})
	if err != nil {
		_ = s.fs.RemoveAll(dest)
		return err
	}

	if err := s.retarget(rel, dest); err != nil {
		return err
	}

	for _, p := range holders {
		copyPath := s.storagePath(p, rel)
		if err := s.fs.RemoveAll(copyPath); err != nil {
			logger.Warn().Err(err).Str("path", copyPath).Msg("Could not delete profile copy")
			continue
		}
		s.pruneEmptyParents(p, rel)
	}

	logger.Info().Str("path", rel).Strs("profiles", holders).Msg("Moved to common")
	return nil
}

// MoveFromCommon moves rel out of common into the active profile
func (s *Service) MoveFromCommon(input string) error {
	logger := logging.GetLogger("filesync")

	if _, err := s.scopeOrActive(""); err != nil {
		return err
	}
	rel, err := s.relative(input)
	if err != nil {
		return err
	}
	m, err := s.manifest.Load()
	if err != nil {
		return err
	}
	if !m.IsCommon(rel) {
		return errors.Validation("%s is not in common", rel).WithDetail("path", rel)
	}
	if !m.HasProfile(s.activeProfile) {
		return errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", s.activeProfile)
	}

	src := s.storagePath(manifest.CommonScope, rel)
	dest := s.storagePath(s.activeProfile, rel)
	if filesystem.Exists(s.fs, dest) {
		if err := s.fs.RemoveAll(dest); err != nil {
			return errors.IO(err, "remove", dest)
		}
	}
	if err := filesystem.Copy(s.fs, src, dest); err != nil {
		_ = s.fs.RemoveAll(dest)
		return errors.IO(err, "copy", src).WithDetail("dest", dest)
	}

	err = s.manifest.Update(func(m *manifest.Manifest) error {
		m.Common.SyncedFiles = remove(m.Common.SyncedFiles, rel)
		p := m.Profile(s.activeProfile)
		p.SyncedFiles = append(p.SyncedFiles, rel)
		return nil
	})
	if err != nil {
		_ = s.fs.RemoveAll(dest)
		return err
	}

	if err := s.retarget(rel, dest); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(src); err != nil {
		logger.Warn().Err(err).Str("path", src).Msg("Could not delete common copy")
	}
	s.pruneEmptyParents(manifest.CommonScope, rel)

	logger.Info().Str("path", rel).Str("profile", s.activeProfile).Msg("Moved out of common")
	return nil
}

// retarget points the home link of rel at target. Unmanaged content in home
// is backed up first.
func (s *Service) retarget(rel, target string) error {
	homePath := s.homePath(rel)
	if filesystem.Exists(s.fs, homePath) && !s.links.IsManaged(homePath) {
		if _, err := s.backups.Backup(homePath, s.backupEnabled); err != nil {
			return err
		}
	}
	return s.links.Install(homePath, target)
}

// pruneEmptyParents removes directories left empty inside a scope after a
// nested entry (.config/nvim) was deleted.
func (s *Service) pruneEmptyParents(scope, rel string) {
	scopeDir := filepath.Join(s.storageRoot, scope)
	dir := filepath.Dir(s.storagePath(scope, rel))
	for dir != scopeDir && paths.IsInside(dir, scopeDir) {
		entries, err := s.fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fs.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Candidate is one row of a scan
type Candidate struct {
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description" yaml:"description"`
	IsCommon    bool   `json:"is_common" yaml:"is_common"`
	Synced      bool   `json:"synced" yaml:"synced"`
	Exists      bool   `json:"exists" yaml:"exists"`
	Custom      bool   `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// ScanDotfiles reports the built-in entries that exist in home, every
// custom path, and everything synced for the active profile or common.
// Results are sorted by path.
func (s *Service) ScanDotfiles(custom []string) ([]Candidate, error) {
	m, err := s.manifest.Load()
	if err != nil {
		return nil, err
	}

	byPath := map[string]*Candidate{}
	add := func(rel, description string, isCustom bool) {
		if c, ok := byPath[rel]; ok {
			c.Custom = c.Custom || isCustom
			return
		}
		scope, synced := m.ScopeOf(rel, s.activeProfile)
		byPath[rel] = &Candidate{
			Path:        rel,
			Description: description,
			IsCommon:    synced && scope == manifest.CommonScope,
			Synced:      synced,
			Exists:      filesystem.Exists(s.fs, s.homePath(rel)),
			Custom:      isCustom,
		}
	}

	for _, k := range Candidates() {
		if filesystem.Exists(s.fs, s.homePath(k.Path)) {
			add(k.Path, k.Description, false)
		}
	}
	for _, c := range custom {
		rel, err := s.relative(c)
		if err != nil {
			logger := logging.GetLogger("filesync")
			logger.Warn().Str("path", c).Err(err).Msg("Skipping custom file")
			continue
		}
		add(rel, describe(rel, "Custom file"), true)
	}
	for _, e := range m.ActiveSet(s.activeProfile) {
		add(e.Path, describe(e.Path, "Synced file"), false)
	}

	out := make([]Candidate, 0, len(byPath))
	for _, c := range byPath {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func describe(rel, fallback string) string {
	if k, ok := FindCandidate(rel); ok {
		return k.Description
	}
	return fallback
}

func remove(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
