package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesync"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/ui"
)

// Link states reported by List
const (
	StateLinked    = "linked"
	StateMissing   = "missing"
	StateDesynced  = "desynced"
	StateElsewhere = "elsewhere"
	StateStored    = "stored"
)

// AddOptions selects what to add and where
type AddOptions struct {
	Path string
	// Common stores the path in the shared scope
	Common bool
	// Profile stores the path in a profile other than the active one
	Profile string
}

// AddResult reports one add
type AddResult struct {
	Path    string `json:"path" yaml:"path"`
	Scope   string `json:"scope" yaml:"scope"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Linked  bool   `json:"linked" yaml:"linked"`
	Custom  bool   `json:"custom" yaml:"custom"`
}

func (r AddResult) String() string {
	switch {
	case r.Outcome == filesync.AlreadySynced.String():
		return fmt.Sprintf("~/%s is already synced in %s", r.Path, r.Scope)
	case r.Linked:
		return fmt.Sprintf("Synced ~/%s into %s", r.Path, r.Scope)
	default:
		return fmt.Sprintf("Stored ~/%s in %s; it is linked when that profile is active", r.Path, r.Scope)
	}
}

// Add moves a home entry into storage and links it back
func Add(env *Env, opts AddOptions) (*AddResult, error) {
	logger := logging.GetLogger("commands.add")

	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New(errors.ErrInvalidInput, "a path is required")
	}
	if opts.Common && opts.Profile != "" {
		return nil, errors.New(errors.ErrInvalidInput, "--common and --profile cannot be combined")
	}

	scope := opts.Profile
	if opts.Common {
		scope = manifest.CommonScope
		if err := env.RequireStorage(); err != nil {
			return nil, err
		}
	} else if scope == "" {
		active, err := env.RequireActiveProfile()
		if err != nil {
			return nil, err
		}
		scope = active
	} else if err := env.RequireStorage(); err != nil {
		return nil, err
	}

	rel, err := env.Resolver.Relative(opts.Path)
	if err != nil {
		return nil, err
	}
	if rel, err = manifest.NormalizeRel(rel); err != nil {
		return nil, err
	}

	outcome, err := env.Sync().AddToSync(opts.Path, scope)
	if err != nil {
		return nil, err
	}

	result := &AddResult{
		Path:    rel,
		Scope:   scope,
		Outcome: outcome.String(),
		Linked:  scope == manifest.CommonScope || scope == env.Config.ActiveProfile,
	}

	if _, known := filesync.FindCandidate(rel); !known && env.Config.AddCustomFile(rel) {
		result.Custom = true
		if err := env.saveConfig(); err != nil {
			logger.Warn().Err(err).Str("path", rel).Msg("Could not remember custom file")
		}
	}
	return result, nil
}

// RemoveOptions selects what to stop syncing
type RemoveOptions struct {
	Path string
}

// RemoveResult reports one removal
type RemoveResult struct {
	Path    string `json:"path" yaml:"path"`
	Outcome string `json:"outcome" yaml:"outcome"`
}

func (r RemoveResult) String() string {
	if r.Outcome == filesync.NotSynced.String() {
		return fmt.Sprintf("~/%s is not synced", r.Path)
	}
	return fmt.Sprintf("Stopped syncing ~/%s; the file is back in place", r.Path)
}

// Remove restores a synced path into home and drops it from storage
func Remove(env *Env, opts RemoveOptions) (*RemoveResult, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New(errors.ErrInvalidInput, "a path is required")
	}
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	rel, err := env.Resolver.Relative(opts.Path)
	if err != nil {
		return nil, err
	}

	outcome, err := env.Sync().RemoveFromSync(opts.Path)
	if err != nil {
		return nil, err
	}
	return &RemoveResult{Path: filepath.ToSlash(rel), Outcome: outcome.String()}, nil
}

// ListOptions selects which entries to list
type ListOptions struct {
	// All lists every scope, not only what applies to the active profile
	All bool
}

// ListEntry is one synced path and how home relates to it
type ListEntry struct {
	Scope string `json:"scope" yaml:"scope"`
	Path  string `json:"path" yaml:"path"`
	State string `json:"state" yaml:"state"`
}

// ListResult is the output of List
type ListResult struct {
	ActiveProfile string      `json:"active_profile" yaml:"active_profile"`
	Activated     bool        `json:"activated" yaml:"activated"`
	Entries       []ListEntry `json:"entries" yaml:"entries"`
}

func (r ListResult) Table() ui.Table {
	t := ui.Table{
		Header: []string{"SCOPE", "PATH", "STATE"},
		Empty:  "Nothing is synced yet; add files with 'dotstate add'",
	}
	if r.ActiveProfile != "" {
		t.Title = "Profile " + r.ActiveProfile
		if !r.Activated {
			t.Title += " (not activated)"
		}
	}
	for _, e := range r.Entries {
		t.Rows = append(t.Rows, []string{e.Scope, "~/" + e.Path, e.State})
	}
	return t
}

// List reports the synced entries and the state of their home paths
func List(env *Env, opts ListOptions) (*ListResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	m, err := env.Manifest.Load()
	if err != nil {
		return nil, err
	}

	active := env.Config.ActiveProfile
	entries := m.ActiveSet(active)
	if opts.All {
		entries = m.AllSynced()
	}

	result := &ListResult{
		ActiveProfile: active,
		Activated:     env.Config.ProfileActivated,
		Entries:       []ListEntry{},
	}
	for _, e := range entries {
		state := StateStored
		if e.Scope == manifest.CommonScope || e.Scope == active {
			state = linkState(env, e)
		}
		result.Entries = append(result.Entries, ListEntry{Scope: e.Scope, Path: e.Path, State: state})
	}
	return result, nil
}

func linkState(env *Env, e manifest.Entry) string {
	home := filepath.Join(env.Home, filepath.FromSlash(e.Path))
	target := paths.StoragePath(env.StorageRoot(), e.Scope, e.Path)
	switch {
	case env.Links.PointsTo(home, target):
		return StateLinked
	case !filesystem.Exists(env.FS, home):
		return StateMissing
	case filesystem.IsSymlink(env.FS, home):
		return StateElsewhere
	default:
		return StateDesynced
	}
}

// ScanResult lists the dotfiles worth syncing
type ScanResult struct {
	Candidates []filesync.Candidate `json:"candidates" yaml:"candidates"`
}

func (r ScanResult) Table() ui.Table {
	t := ui.Table{
		Header: []string{"PATH", "SYNCED", "DESCRIPTION"},
		Empty:  "No known dotfiles found in your home directory",
	}
	for _, c := range r.Candidates {
		synced := "no"
		switch {
		case c.IsCommon:
			synced = "common"
		case c.Synced:
			synced = "yes"
		case !c.Exists:
			synced = "missing"
		}
		t.Rows = append(t.Rows, []string{"~/" + c.Path, synced, c.Description})
	}
	return t
}

// Scan lists known and custom dotfiles together with their sync state
func Scan(env *Env) (*ScanResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	candidates, err := env.Sync().ScanDotfiles(env.Config.CustomFiles)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Candidates: candidates}, nil
}
