package manifest

import (
	"path"
	"sort"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/paths"
)

// CommonScope names the shared scope in AddFile/RemoveFile and in storage.
const CommonScope = paths.CommonDirName

// PackageManager identifies how a package gets installed
type PackageManager string

const (
	ManagerBrew   PackageManager = "brew"
	ManagerApt    PackageManager = "apt"
	ManagerYum    PackageManager = "yum"
	ManagerDnf    PackageManager = "dnf"
	ManagerPacman PackageManager = "pacman"
	ManagerSnap   PackageManager = "snap"
	ManagerCargo  PackageManager = "cargo"
	ManagerNpm    PackageManager = "npm"
	ManagerPip    PackageManager = "pip"
	ManagerPip3   PackageManager = "pip3"
	ManagerGem    PackageManager = "gem"
	ManagerCustom PackageManager = "custom"
)

var knownManagers = []PackageManager{
	ManagerBrew, ManagerApt, ManagerYum, ManagerDnf, ManagerPacman, ManagerSnap,
	ManagerCargo, ManagerNpm, ManagerPip, ManagerPip3, ManagerGem, ManagerCustom,
}

// MarshalText writes the lowercase form
func (m PackageManager) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(string(m))), nil
}

// UnmarshalText accepts any casing ("Brew", "brew", "BREW").
func (m *PackageManager) UnmarshalText(text []byte) error {
	value := strings.ToLower(strings.TrimSpace(string(text)))
	for _, known := range knownManagers {
		if value == string(known) {
			*m = known
			return nil
		}
	}
	return errors.Newf(errors.ErrManifestInvariant, "unknown package manager %q", string(text))
}

// Package describes a tool a profile expects to be installed
type Package struct {
	Name           string         `toml:"name"`
	Description    string         `toml:"description,omitempty"`
	Manager        PackageManager `toml:"manager"`
	PackageName    string         `toml:"package_name,omitempty"`
	BinaryName     string         `toml:"binary_name"`
	InstallCommand string         `toml:"install_command,omitempty"`
	ExistenceCheck string         `toml:"existence_check,omitempty"`
	ManagerCheck   string         `toml:"manager_check,omitempty"`
}

// Common is the scope shared by every profile
type Common struct {
	SyncedFiles []string  `toml:"synced_files"`
	Packages    []Package `toml:"packages,omitempty"`
}

// Profile is a named set of synced files
type Profile struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description,omitempty"`
	SyncedFiles []string  `toml:"synced_files"`
	Packages    []Package `toml:"packages,omitempty"`
}

// Manifest is the persisted description of all scopes
type Manifest struct {
	Common   Common    `toml:"common"`
	Profiles []Profile `toml:"profiles"`
}

// Entry is one synced path together with its scope
type Entry struct {
	Scope string
	Path  string
}

// Default returns an empty manifest: empty common, no profiles.
func Default() *Manifest {
	return &Manifest{
		Common:   Common{SyncedFiles: []string{}},
		Profiles: []Profile{},
	}
}

// NormalizeRel cleans a home-relative path into the slash form stored in the
// manifest. Absolute paths and paths escaping home are rejected.
func NormalizeRel(rel string) (string, error) {
	rel = strings.TrimSpace(strings.ReplaceAll(rel, "\\", "/"))
	if rel == "" {
		return "", errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}
	if strings.HasPrefix(rel, "/") {
		return "", errors.Validation("%s must be relative to your home directory", rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Validation("%s is not inside your home directory", rel)
	}
	return cleaned, nil
}

// Profile returns the named profile, or nil
func (m *Manifest) Profile(name string) *Profile {
	for i := range m.Profiles {
		if m.Profiles[i].Name == name {
			return &m.Profiles[i]
		}
	}
	return nil
}

// HasProfile reports whether a profile with exactly this name exists
func (m *Manifest) HasProfile(name string) bool {
	return m.Profile(name) != nil
}

// ProfileNames lists profile names in manifest order
func (m *Manifest) ProfileNames() []string {
	names := make([]string, 0, len(m.Profiles))
	for _, p := range m.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Files returns the synced files of a scope, nil when the profile is unknown.
func (m *Manifest) Files(scope string) []string {
	if scope == CommonScope {
		return m.Common.SyncedFiles
	}
	if p := m.Profile(scope); p != nil {
		return p.SyncedFiles
	}
	return nil
}

// Packages returns the packages of a scope
func (m *Manifest) Packages(scope string) []Package {
	if scope == CommonScope {
		return m.Common.Packages
	}
	if p := m.Profile(scope); p != nil {
		return p.Packages
	}
	return nil
}

// HasFile reports whether rel is synced in scope
func (m *Manifest) HasFile(scope, rel string) bool {
	return contains(m.Files(scope), rel)
}

// IsCommon reports whether rel is synced in the common scope
func (m *Manifest) IsCommon(rel string) bool {
	return contains(m.Common.SyncedFiles, rel)
}

// ScopeOf returns the scope rel is synced in from the point of view of the
// active profile: common first, then the active profile.
func (m *Manifest) ScopeOf(rel, active string) (string, bool) {
	if m.IsCommon(rel) {
		return CommonScope, true
	}
	if active != "" && m.HasFile(active, rel) {
		return active, true
	}
	return "", false
}

// ProfilesWith lists the profiles whose synced set contains rel
func (m *Manifest) ProfilesWith(rel string) []string {
	var names []string
	for _, p := range m.Profiles {
		if contains(p.SyncedFiles, rel) {
			names = append(names, p.Name)
		}
	}
	return names
}

// AllSynced lists every (scope, path) pair, common first
func (m *Manifest) AllSynced() []Entry {
	var entries []Entry
	for _, f := range m.Common.SyncedFiles {
		entries = append(entries, Entry{Scope: CommonScope, Path: f})
	}
	for _, p := range m.Profiles {
		for _, f := range p.SyncedFiles {
			entries = append(entries, Entry{Scope: p.Name, Path: f})
		}
	}
	return entries
}

// ActiveSet lists the entries that apply when active is the live profile
func (m *Manifest) ActiveSet(active string) []Entry {
	var entries []Entry
	if p := m.Profile(active); p != nil {
		for _, f := range p.SyncedFiles {
			entries = append(entries, Entry{Scope: active, Path: f})
		}
	}
	for _, f := range m.Common.SyncedFiles {
		entries = append(entries, Entry{Scope: CommonScope, Path: f})
	}
	return entries
}

// Validate returns the invariant violations in m. A path may be held by
// several profiles (each machine role keeps its own copy) but never by a
// profile and common at once.
func (m *Manifest) Validate() []string {
	var problems []string

	seen := map[string]string{}
	for _, p := range m.Profiles {
		if err := paths.ValidateProfileName(p.Name, nil); err != nil {
			problems = append(problems, errors.UserMessage(err))
		}
		key := strings.ToLower(p.Name)
		if prev, ok := seen[key]; ok {
			problems = append(problems, "duplicate profile name \""+p.Name+"\" (also \""+prev+"\")")
		}
		seen[key] = p.Name
	}

	for _, f := range m.Common.SyncedFiles {
		for _, owner := range m.ProfilesWith(f) {
			problems = append(problems, f+" is synced in both common and profile \""+owner+"\"")
		}
	}

	for _, e := range m.AllSynced() {
		if _, err := NormalizeRel(e.Path); err != nil {
			problems = append(problems, "invalid path \""+e.Path+"\" in "+e.Scope)
		}
	}
	return problems
}

// normalize sorts and dedupes every synced list and replaces nil slices, so
// saved files are stable across runs.
func (m *Manifest) normalize() {
	m.Common.SyncedFiles = sortedSet(m.Common.SyncedFiles)
	if m.Profiles == nil {
		m.Profiles = []Profile{}
	}
	for i := range m.Profiles {
		m.Profiles[i].SyncedFiles = sortedSet(m.Profiles[i].SyncedFiles)
	}
}

func sortedSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
