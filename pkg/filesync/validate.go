package filesync

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/manifest"
)

// maxNestedGitDepth bounds the search for repositories below a directory
// being added.
const maxNestedGitDepth = 10

// Validate checks whether input can be added to the active profile. It makes
// no changes.
func (s *Service) Validate(input string) error {
	scope, err := s.scopeOrActive("")
	if err != nil {
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
	if m.HasFile(scope, rel) {
		return errors.Validation("%s is already synced", rel).WithDetail("path", rel)
	}
	return s.validate(m, rel, scope)
}

// ValidateFor is Validate against an explicit scope.
func (s *Service) ValidateFor(input, scope string) error {
	if scope == "" {
		return s.Validate(input)
	}
	rel, err := s.relative(input)
	if err != nil {
		return err
	}
	m, err := s.manifest.Load()
	if err != nil {
		return err
	}
	if m.HasFile(scope, rel) {
		return errors.Validation("%s is already synced", rel).WithDetail("path", rel)
	}
	return s.validate(m, rel, scope)
}

func (s *Service) validate(m *manifest.Manifest, rel, scope string) error {
	p := s.homePath(rel)

	if err := s.checkSafeLocation(p); err != nil {
		return err
	}

	// common and profiles are disjoint; profiles may share paths
	if scope == manifest.CommonScope {
		if holders := m.ProfilesWith(rel); len(holders) > 0 {
			return errors.Validation("%s is already synced in profile %s; move it to common instead", rel, holders[0]).
				WithDetail("path", rel)
		}
	} else if m.IsCommon(rel) {
		return errors.Validation("%s is already synced in common", rel).WithDetail("path", rel)
	}

	for _, synced := range relevantFiles(m, scope) {
		if synced == rel {
			continue
		}
		for _, variant := range dotVariants(synced) {
			if isUnder(rel, variant) {
				return errors.Validation("%s is inside the synced directory %s", rel, synced).
					WithDetail("path", rel).WithDetail("synced", synced)
			}
		}
		for _, variant := range dotVariants(rel) {
			if isUnder(synced, variant) {
				return errors.Validation("%s contains files already synced (%s); remove them from sync first", rel, synced).
					WithDetail("path", rel).WithDetail("synced", synced)
			}
		}
	}

	info, err := s.fs.Lstat(p)
	if err != nil {
		return errors.Validation("%s does not exist", p).WithDetail("path", p)
	}

	if repo, ok := s.gitRepoAt(p); ok {
		return errors.Validation("%s is inside a git repository (%s); dotstate cannot sync repositories", rel, repo).
			WithDetail("path", rel)
	}
	if info.IsDir() {
		if nested, ok := s.findNestedGit(p, 0); ok {
			return errors.Validation("%s contains a git repository at %s", rel, nested).
				WithDetail("path", rel)
		}
	}

	parent := filepath.Dir(p)
	pinfo, err := s.fs.Stat(parent)
	if err != nil || !pinfo.IsDir() {
		return errors.Validation("parent of %s is not a directory", p).WithDetail("path", parent)
	}
	if pinfo.Mode().Perm()&0200 == 0 {
		return errors.Validation("%s is not writable", parent).WithDetail("path", parent)
	}
	return nil
}

// checkSafeLocation rejects home itself, the filesystem root, and anything
// overlapping the storage root.
func (s *Service) checkSafeLocation(p string) error {
	clean := filepath.Clean(p)
	switch {
	case clean == string(filepath.Separator):
		return errors.Validation("refusing to sync the filesystem root")
	case clean == s.home:
		return errors.Validation("refusing to sync the home directory itself")
	case within(clean, s.storageRoot):
		return errors.Validation("%s is inside the storage directory", clean).WithDetail("path", clean)
	case within(s.storageRoot, clean):
		return errors.Validation("%s contains the storage directory", clean).WithDetail("path", clean)
	}
	return nil
}

// gitRepoAt reports a .git found in p or an ancestor below home.
func (s *Service) gitRepoAt(p string) (string, bool) {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".git" {
			return p, true
		}
	}
	for dir := p; dir != s.home && within(dir, s.home); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ".git")
		if _, err := s.fs.Lstat(candidate); err == nil {
			return dir, true
		}
	}
	return "", false
}

func (s *Service) findNestedGit(dir string, depth int) (string, bool) {
	if depth >= maxNestedGitDepth {
		return "", false
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		child := filepath.Join(dir, e.Name())
		if e.Name() == ".git" {
			return child, true
		}
		if e.Type()&fs.ModeSymlink != 0 || !e.IsDir() {
			continue
		}
		if found, ok := s.findNestedGit(child, depth+1); ok {
			return found, true
		}
	}
	return "", false
}

// relevantFiles are the entries that can be linked into home together with
// a file added to scope.
func relevantFiles(m *manifest.Manifest, scope string) []string {
	out := append([]string{}, m.Files(manifest.CommonScope)...)
	if scope != manifest.CommonScope {
		return append(out, m.Files(scope)...)
	}
	for _, name := range m.ProfileNames() {
		out = append(out, m.Files(name)...)
	}
	return out
}

// dotVariants returns rel plus the same path with the leading dot of its
// first component toggled (.nvim and nvim).
func dotVariants(rel string) []string {
	if strings.HasPrefix(rel, ".") {
		return []string{rel, strings.TrimPrefix(rel, ".")}
	}
	return []string{rel, "." + rel}
}

// isUnder reports whether slash path child lies strictly below dir.
func isUnder(child, dir string) bool {
	return dir != "" && strings.HasPrefix(child, dir+"/")
}

// within compares cleaned paths lexically, so a link is judged by where it
// sits rather than where it points.
func within(child, dir string) bool {
	child, dir = filepath.Clean(child), filepath.Clean(dir)
	if child == dir {
		return true
	}
	rel, err := filepath.Rel(dir, child)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
