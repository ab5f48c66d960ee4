package manifest

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/paths"
)

// ContainerDirs are dot-directories that group many unrelated configs. When
// backfilling, their children are recorded (.config/nvim) rather than the
// container itself, unless the container is recorded whole. Other
// dot-directories are one entry even when they hold subdirectories.
var ContainerDirs = []string{".config", ".local", ".ssh", ".gnupg", ".cargo"}

// rootFiles are storage-root entries that belong to the repository itself.
var rootFiles = []string{"README.md", ".gitignore", paths.ManifestFileName}

// LoadOrBackfill loads the manifest and reconciles it with the storage tree:
// profile directories missing from the manifest become profiles, and scopes
// with an empty file list get one from disk. It returns the storage entries
// (slash paths relative to the root) that still have no manifest record.
// The manifest is saved only when something was added.
func (s *Store) LoadOrBackfill() (*Manifest, []string, error) {
	logger := logging.GetLogger("manifest")

	m, err := s.Load()
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil, nil
		}
		return nil, nil, errors.IO(err, "readdir", s.root)
	}

	changed := false
	var orphans []string

	for _, entry := range entries {
		name := entry.Name()
		if !s.isDir(filepath.Join(s.root, name)) {
			if !contains(rootFiles, name) && !strings.HasPrefix(name, ".") {
				orphans = append(orphans, name)
			}
			continue
		}
		if strings.HasPrefix(name, ".") || name == "target" || name == "node_modules" {
			continue
		}

		if name == CommonScope {
			if len(m.Common.SyncedFiles) == 0 {
				files, err := s.scanScope(name, nil)
				if err != nil {
					return nil, nil, err
				}
				if len(files) > 0 {
					m.Common.SyncedFiles = files
					changed = true
					logger.Info().Int("files", len(files)).Msg("Backfilled common files")
				}
			}
			continue
		}

		if p := m.Profile(name); p != nil {
			if len(p.SyncedFiles) == 0 {
				files, err := s.scanScope(name, nil)
				if err != nil {
					return nil, nil, err
				}
				if len(files) > 0 {
					p.SyncedFiles = files
					changed = true
					logger.Info().Str("profile", name).Int("files", len(files)).Msg("Backfilled profile files")
				}
			}
			continue
		}

		if err := paths.ValidateProfileName(name, m.ProfileNames()); err != nil {
			logger.Warn().Str("dir", name).Err(err).Msg("Directory is not a valid profile name, skipping")
			orphans = append(orphans, name)
			continue
		}
		files, err := s.scanScope(name, nil)
		if err != nil {
			return nil, nil, err
		}
		m.Profiles = append(m.Profiles, Profile{Name: name, SyncedFiles: files})
		changed = true
		logger.Info().Str("profile", name).Int("files", len(files)).Msg("Backfilled profile from storage")
	}

	scoped, err := s.scopeOrphans(m)
	if err != nil {
		return nil, nil, err
	}
	orphans = append(orphans, scoped...)

	m.normalize()
	if changed {
		if err := s.Save(m); err != nil {
			return nil, nil, err
		}
	}

	sort.Strings(orphans)
	for _, o := range orphans {
		logger.Warn().Str("entry", o).Msg("Storage entry has no manifest record")
	}
	return m, orphans, nil
}

// Orphans lists storage entries (slash paths relative to the root) that no
// record of m accounts for, without modifying anything.
func (s *Store) Orphans(m *Manifest) ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO(err, "readdir", s.root)
	}

	var orphans []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || contains(rootFiles, name) {
			continue
		}
		if !s.isDir(filepath.Join(s.root, name)) {
			orphans = append(orphans, name)
			continue
		}
		if name == CommonScope || m.HasProfile(name) || name == "target" || name == "node_modules" {
			continue
		}
		orphans = append(orphans, name)
	}

	scoped, err := s.scopeOrphans(m)
	if err != nil {
		return nil, err
	}
	orphans = append(orphans, scoped...)
	sort.Strings(orphans)
	return orphans, nil
}

// scopeOrphans lists entries inside scope directories that no record
// accounts for.
func (s *Store) scopeOrphans(m *Manifest) ([]string, error) {
	var orphans []string
	for _, scope := range append([]string{CommonScope}, m.ProfileNames()...) {
		if !s.isDir(filepath.Join(s.root, scope)) {
			continue
		}
		found, err := s.scanScope(scope, m.Files(scope))
		if err != nil {
			return nil, err
		}
		for _, rel := range found {
			if !covered(m.Files(scope), rel) {
				orphans = append(orphans, path.Join(scope, rel))
			}
		}
	}
	return orphans, nil
}

// scanScope lists the entries of a scope directory the way they would be
// recorded. Container directories contribute their children unless the
// container itself is recorded.
func (s *Store) scanScope(scope string, recorded []string) ([]string, error) {
	dir := filepath.Join(s.root, scope)
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO(err, "readdir", dir)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if name == ".git" || name == ".DS_Store" {
			continue
		}
		full := filepath.Join(dir, name)
		if contains(ContainerDirs, name) && s.isDir(full) && !contains(recorded, name) {
			children, err := s.fs.ReadDir(full)
			if err != nil {
				return nil, errors.IO(err, "readdir", full)
			}
			for _, child := range children {
				files = append(files, name+"/"+child.Name())
			}
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// covered reports whether a scanned entry is accounted for by a record: the
// record itself, or a record nested beneath it (.config/nvim/init.lua
// recorded, .config/nvim scanned).
func covered(recorded []string, scanned string) bool {
	for _, r := range recorded {
		if r == scanned || strings.HasPrefix(r, scanned+"/") {
			return true
		}
	}
	return false
}

func (s *Store) isDir(p string) bool {
	info, err := s.fs.Lstat(p)
	return err == nil && info.Mode()&fs.ModeType == fs.ModeDir
}
