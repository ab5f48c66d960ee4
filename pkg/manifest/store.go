package manifest

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Store owns the manifest file of one storage root. Every mutation loads,
// changes, and saves within the same call; nothing is cached between calls.
type Store struct {
	fs   types.FS
	root string
}

// NewStore creates a store for the manifest at <root>/.dotstate-profiles.toml
func NewStore(fsys types.FS, root string) *Store {
	return &Store{fs: fsys, root: root}
}

// Root returns the storage root
func (s *Store) Root() string {
	return s.root
}

// Path returns the manifest file location
func (s *Store) Path() string {
	return paths.ManifestPath(s.root)
}

// Exists reports whether the manifest file is present
func (s *Store) Exists() bool {
	_, err := s.fs.Stat(s.Path())
	return err == nil
}

// Load reads the manifest. A missing file yields Default(). Invariant
// violations are logged and the manifest is still returned.
func (s *Store) Load() (*Manifest, error) {
	logger := logging.GetLogger("manifest")

	data, err := s.fs.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", s.Path()).Msg("No manifest, using defaults")
			return Default(), nil
		}
		return nil, errors.IO(err, "read", s.Path())
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestInvariant, "cannot parse %s", s.Path()).
			WithDetail("path", s.Path())
	}
	m.normalize()

	for _, problem := range m.Validate() {
		logger.Warn().Str("path", s.Path()).Msg(problem)
	}
	return m, nil
}

// Save writes m atomically: a temp file in the same directory, then rename.
func (s *Store) Save(m *Manifest) error {
	m.normalize()
	data, err := toml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot encode manifest")
	}
	if err := filesystem.WriteFileAtomic(s.fs, s.Path(), data, 0644); err != nil {
		return errors.IO(err, "write", s.Path())
	}
	logger := logging.GetLogger("manifest")
	logger.Debug().Str("path", s.Path()).Msg("Saved manifest")
	return nil
}

// Update is the single-flush mutation: load, apply fn, check invariants, save.
// It refuses to touch a manifest that already violates its invariants, and
// refuses to save one fn has broken.
func (s *Store) Update(fn func(*Manifest) error) error {
	return s.update(fn, true)
}

func (s *Store) update(fn func(*Manifest) error, strict bool) error {
	m, err := s.Load()
	if err != nil {
		return err
	}
	if strict {
		if problems := m.Validate(); len(problems) > 0 {
			return errors.Newf(errors.ErrManifestInvariant,
				"manifest has problems that must be fixed first: %s", strings.Join(problems, "; ")).
				WithDetail("problems", problems)
		}
	}
	if err := fn(m); err != nil {
		return err
	}
	m.normalize()
	if problems := m.Validate(); len(problems) > 0 && strict {
		return errors.Newf(errors.ErrManifestInvariant,
			"change would break the manifest: %s", strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return s.Save(m)
}

// AddFile records rel in scope. Adding a path that is already there is a
// no-op; adding a path held on the other side of the common/profile
// boundary fails.
func (s *Store) AddFile(scope, rel string) error {
	rel, err := NormalizeRel(rel)
	if err != nil {
		return err
	}
	return s.Update(func(m *Manifest) error {
		return addFile(m, scope, rel)
	})
}

func addFile(m *Manifest, scope, rel string) error {
	if scope == CommonScope {
		if owners := m.ProfilesWith(rel); len(owners) > 0 {
			return errors.Validation("%s is already synced in profile %q; move it to common instead", rel, owners[0]).
				WithDetail("path", rel)
		}
		if !m.IsCommon(rel) {
			m.Common.SyncedFiles = append(m.Common.SyncedFiles, rel)
		}
		return nil
	}

	p := m.Profile(scope)
	if p == nil {
		return profileNotFound(scope)
	}
	if m.IsCommon(rel) {
		return errors.Validation("%s is already synced in common", rel).WithDetail("path", rel)
	}
	if !contains(p.SyncedFiles, rel) {
		p.SyncedFiles = append(p.SyncedFiles, rel)
	}
	return nil
}

// RemoveFile drops rel from scope; removing an absent path is a no-op.
func (s *Store) RemoveFile(scope, rel string) error {
	rel, err := NormalizeRel(rel)
	if err != nil {
		return err
	}
	return s.Update(func(m *Manifest) error {
		return removeFile(m, scope, rel)
	})
}

func removeFile(m *Manifest, scope, rel string) error {
	if scope == CommonScope {
		m.Common.SyncedFiles = without(m.Common.SyncedFiles, rel)
		return nil
	}
	p := m.Profile(scope)
	if p == nil {
		return profileNotFound(scope)
	}
	p.SyncedFiles = without(p.SyncedFiles, rel)
	return nil
}

// AddProfile inserts a new profile after checking its name
func (s *Store) AddProfile(p Profile) error {
	return s.Update(func(m *Manifest) error {
		if err := paths.ValidateProfileName(p.Name, m.ProfileNames()); err != nil {
			return err
		}
		if p.SyncedFiles == nil {
			p.SyncedFiles = []string{}
		}
		m.Profiles = append(m.Profiles, p)
		return nil
	})
}

// RenameProfile renames old to the sanitized form of name and returns it.
// This is also the way out of a reserved or duplicate name, so it works on a
// manifest that fails validation.
func (s *Store) RenameProfile(old, name string) (string, error) {
	sanitized := paths.SanitizeProfileName(name)
	err := s.update(func(m *Manifest) error {
		p := m.Profile(old)
		if p == nil {
			return profileNotFound(old)
		}
		if sanitized == old {
			return nil
		}
		var others []string
		for _, n := range m.ProfileNames() {
			if n != old {
				others = append(others, n)
			}
		}
		if err := paths.ValidateProfileName(sanitized, others); err != nil {
			return err
		}
		p.Name = sanitized
		return nil
	}, false)
	if err != nil {
		return "", err
	}
	return sanitized, nil
}

// DeleteProfile removes a profile entry. The active profile cannot be deleted.
func (s *Store) DeleteProfile(name, active string) error {
	if name == active {
		return errors.Newf(errors.ErrProfileDeletionOfActive,
			"cannot delete %q because it is the active profile; switch to another profile first", name).
			WithDetail("profile", name)
	}
	return s.update(func(m *Manifest) error {
		for i, p := range m.Profiles {
			if p.Name == name {
				m.Profiles = append(m.Profiles[:i], m.Profiles[i+1:]...)
				return nil
			}
		}
		return profileNotFound(name)
	}, false)
}

func profileNotFound(name string) error {
	return errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", name).
		WithDetail("profile", name)
}
