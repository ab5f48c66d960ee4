// Package doctor checks that the manifest, the storage tree and the home
// directory agree with each other, and reports what does not.
package doctor

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/symlink"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Severity ranks a finding
type Severity int

const (
	Pass Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON and YAML output
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fix names the repair that resolves a finding
type Fix string

const (
	// FixRelink links the active profile again
	FixRelink Fix = "relink"
	// FixMarkInactive clears profile_activated when no link exists
	FixMarkInactive Fix = "mark-inactive"
	// FixMarkActive sets profile_activated when every link is in place
	FixMarkActive Fix = "mark-active"
)

// Finding is the outcome of one check
type Finding struct {
	Check    string   `json:"check" yaml:"check"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Fix      Fix      `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// Report collects findings in check order
type Report struct {
	Findings []Finding `json:"findings" yaml:"findings"`
}

func (r *Report) add(check string, sev Severity, format string, args ...interface{}) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: sev, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addFixable(check string, sev Severity, fix Fix, format string, args ...interface{}) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: sev, Message: fmt.Sprintf(format, args...), Fix: fix})
}

// Fixes returns the distinct repairs the findings call for, in report order
func (r Report) Fixes() []Fix {
	var out []Fix
	seen := map[Fix]bool{}
	for _, f := range r.Findings {
		if f.Fix == "" || f.Severity == Pass || seen[f.Fix] {
			continue
		}
		seen[f.Fix] = true
		out = append(out, f.Fix)
	}
	return out
}

// Worst returns the highest severity in the report
func (r Report) Worst() Severity {
	worst := Pass
	for _, f := range r.Findings {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst
}

// Count returns how many findings have severity sev
func (r Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

var checkTitles = []struct{ key, title string }{
	{"config", "Configuration"},
	{"manifest", "Manifest"},
	{"storage", "Storage"},
	{"symlinks", "Symlinks"},
	{"git", "Git repository"},
}

// Markdown renders the report as a markdown document
func (r Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# dotstate doctor\n\n")
	for _, c := range checkTitles {
		var lines []string
		for _, f := range r.Findings {
			if f.Check != c.key {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s %s", marker(f.Severity), f.Message))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", c.title, strings.Join(lines, "\n"))
	}
	fmt.Fprintf(&b, "**%d error(s), %d warning(s)**\n", r.Count(Error), r.Count(Warning))
	return b.String()
}

func marker(s Severity) string {
	switch s {
	case Error:
		return "**error**"
	case Warning:
		return "*warning*"
	default:
		return "ok"
	}
}

// Options are the inputs of a doctor run
type Options struct {
	FS               types.FS
	Home             string
	StorageRoot      string
	ActiveProfile    string
	ProfileActivated bool
	Manifest         *manifest.Store
	Links            *symlink.Engine
	Git              git.Driver
}

// Run performs every check. Problems are reported as findings; Run itself
// only fails when the context is done.
func Run(ctx context.Context, opts Options) (Report, error) {
	logger := logging.GetLogger("doctor")
	done := logging.LogOperationStart(logger, "doctor")
	defer done()

	if opts.Manifest == nil {
		opts.Manifest = manifest.NewStore(opts.FS, opts.StorageRoot)
	}
	if opts.Links == nil {
		opts.Links = symlink.NewEngine(opts.FS, opts.StorageRoot, paths.NewResolver(opts.Home, paths.WithFS(opts.FS)))
	}

	var r Report

	rootOK := checkStorageRoot(opts, &r)

	var m *manifest.Manifest
	if rootOK {
		m = checkManifest(opts, &r)
	}
	if m != nil {
		checkActiveProfile(opts, m, &r)
		checkStorage(opts, m, &r)
		checkSymlinks(opts, m, &r)
	}
	if err := ctx.Err(); err != nil {
		return r, err
	}
	if rootOK {
		checkGit(ctx, opts, &r)
	}

	logger.Info().
		Int("errors", r.Count(Error)).
		Int("warnings", r.Count(Warning)).
		Msg("Doctor finished")
	return r, nil
}

func checkStorageRoot(opts Options, r *Report) bool {
	info, err := opts.FS.Stat(opts.StorageRoot)
	if err != nil || !info.IsDir() {
		r.add("config", Error, "storage root %s does not exist; run setup first", opts.StorageRoot)
		return false
	}
	r.add("config", Pass, "storage root %s exists", opts.StorageRoot)
	return true
}

func checkManifest(opts Options, r *Report) *manifest.Manifest {
	m, err := opts.Manifest.Load()
	if err != nil {
		r.add("manifest", Error, "cannot load %s: %v", opts.Manifest.Path(), err)
		return nil
	}
	problems := m.Validate()
	for _, p := range problems {
		r.add("manifest", Error, "%s", p)
	}
	if len(problems) == 0 {
		r.add("manifest", Pass, "%d profile(s), %d synced path(s)", len(m.Profiles), len(m.AllSynced()))
	}
	return m
}

func checkActiveProfile(opts Options, m *manifest.Manifest, r *Report) {
	switch {
	case opts.ActiveProfile == "":
		r.add("config", Warning, "no active profile is configured")
	case !m.HasProfile(opts.ActiveProfile):
		r.add("config", Error, "active profile %q is not in the manifest", opts.ActiveProfile)
	default:
		r.add("config", Pass, "active profile %q", opts.ActiveProfile)
	}
}

func checkStorage(opts Options, m *manifest.Manifest, r *Report) {
	missing := 0
	for _, e := range m.AllSynced() {
		p := paths.StoragePath(opts.StorageRoot, e.Scope, e.Path)
		if _, err := opts.FS.Lstat(p); err != nil {
			r.add("storage", Error, "%s is recorded in %s but missing from storage", e.Path, e.Scope)
			missing++
		}
	}

	orphans, err := opts.Manifest.Orphans(m)
	if err != nil {
		r.add("storage", Warning, "cannot scan storage: %v", err)
	}
	for _, o := range orphans {
		r.add("storage", Warning, "%s has no manifest record", o)
	}

	if missing == 0 && len(orphans) == 0 && err == nil {
		r.add("storage", Pass, "storage matches the manifest")
	}
}

func checkSymlinks(opts Options, m *manifest.Manifest, r *Report) {
	if !m.HasProfile(opts.ActiveProfile) {
		if !opts.ProfileActivated {
			r.add("symlinks", Pass, "profile is not activated; links not checked")
		}
		return
	}
	entries := m.ActiveSet(opts.ActiveProfile)

	if !opts.ProfileActivated {
		if len(entries) > 0 && linkedCount(opts, entries) == len(entries) {
			r.addFixable("symlinks", Warning, FixMarkActive,
				"every link of %q is in place but the profile is not marked activated", opts.ActiveProfile)
			return
		}
		r.add("symlinks", Pass, "profile is not activated; links not checked")
		return
	}

	if len(entries) > 0 && absentCount(opts, entries) == len(entries) {
		r.addFixable("symlinks", Warning, FixMarkInactive,
			"profile %q is marked activated but none of its %d link(s) exist", opts.ActiveProfile, len(entries))
		return
	}

	bad := 0
	for _, e := range entries {
		home := filepath.Join(opts.Home, filepath.FromSlash(e.Path))
		want := paths.StoragePath(opts.StorageRoot, e.Scope, e.Path)

		info, err := opts.FS.Lstat(home)
		switch {
		case err != nil:
			r.addFixable("symlinks", Warning, FixRelink, "~/%s is not linked; run activate", e.Path)
			bad++
		case info.Mode()&fs.ModeSymlink == 0:
			r.addFixable("symlinks", Warning, FixRelink, "~/%s is a regular entry, not a link to storage", e.Path)
			bad++
		case !opts.Links.PointsTo(home, want):
			target, _ := opts.Links.Target(home)
			r.addFixable("symlinks", Error, FixRelink, "~/%s points to %s instead of %s", e.Path, target, want)
			bad++
		}
	}
	if bad == 0 {
		r.add("symlinks", Pass, "all links for %q are in place", opts.ActiveProfile)
	}
}

func linkedCount(opts Options, entries []manifest.Entry) int {
	n := 0
	for _, e := range entries {
		home := filepath.Join(opts.Home, filepath.FromSlash(e.Path))
		if opts.Links.PointsTo(home, paths.StoragePath(opts.StorageRoot, e.Scope, e.Path)) {
			n++
		}
	}
	return n
}

func absentCount(opts Options, entries []manifest.Entry) int {
	n := 0
	for _, e := range entries {
		if _, err := opts.FS.Lstat(filepath.Join(opts.Home, filepath.FromSlash(e.Path))); err != nil {
			n++
		}
	}
	return n
}

func checkGit(ctx context.Context, opts Options, r *Report) {
	if opts.Git == nil {
		return
	}
	if !opts.Git.IsRepo(ctx, opts.StorageRoot) {
		r.add("git", Warning, "%s is not a git repository; sync is unavailable", opts.StorageRoot)
		return
	}
	if url, err := opts.Git.RemoteURL(ctx, opts.StorageRoot, git.DefaultRemote); err == nil {
		r.add("git", Pass, "remote %s", git.StripCredentials(url))
	} else {
		r.add("git", Warning, "no %s remote configured", git.DefaultRemote)
	}
}
