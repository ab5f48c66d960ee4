package profiles

import (
	"fmt"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
)

// ActivateResult reports what Activate did
type ActivateResult struct {
	Linked   int                `json:"linked" yaml:"linked"`
	Skipped  int                `json:"skipped" yaml:"skipped"`
	Packages []manifest.Package `json:"packages,omitempty" yaml:"packages,omitempty"`
	Errors   []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// SwitchResult lists the home paths each switch step touched
type SwitchResult struct {
	Removed    []string           `json:"removed" yaml:"removed"`
	Created    []string           `json:"created" yaml:"created"`
	Retargeted []string           `json:"retargeted" yaml:"retargeted"`
	Packages   []manifest.Package `json:"packages,omitempty" yaml:"packages,omitempty"`
	FailedStep string             `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
}

// Reconcile reports what EnsureSymlinks did
type Reconcile struct {
	Created int      `json:"created" yaml:"created"`
	Skipped int      `json:"skipped" yaml:"skipped"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Activate links every entry of the profile and of common into home,
// backing up whatever unmanaged content is in the way. Links already in
// place are skipped. Per-entry failures are collected; the returned error
// summarises them.
func (s *Service) Activate(name string) (ActivateResult, error) {
	logger := logging.GetLogger("profiles")
	done := logging.LogOperationStart(logger, "activate")
	defer done()

	var result ActivateResult
	m, p, err := s.load(name)
	if err != nil {
		return result, err
	}

	for _, e := range m.ActiveSet(name) {
		linked, err := s.link(e)
		switch {
		case err != nil:
			logger.Error().Err(err).Str("path", e.Path).Str("scope", e.Scope).Msg("Could not link")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", e.Path, errors.UserMessage(err)))
		case linked:
			result.Linked++
		default:
			result.Skipped++
		}
	}

	result.Packages = append(append([]manifest.Package{}, p.Packages...), m.Common.Packages...)

	logger.Info().Str("profile", name).Int("linked", result.Linked).Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).Msg("Profile activated")
	if len(result.Errors) > 0 {
		return result, errors.Newf(errors.ErrIO, "%d of %d entries could not be linked", len(result.Errors),
			len(result.Errors)+result.Linked+result.Skipped).WithDetail("errors", result.Errors)
	}
	return result, nil
}

// link installs one entry, reporting false when the link was already right
func (s *Service) link(e manifest.Entry) (bool, error) {
	home := s.homePath(e.Path)
	target := s.storagePath(e.Scope, e.Path)

	if !filesystem.Exists(s.fs, target) {
		return false, errors.Newf(errors.ErrNotFound, "%s is missing from storage", target).WithDetail("path", target)
	}
	if s.links.PointsTo(home, target) {
		return false, nil
	}
	if err := s.backupUnmanaged(home); err != nil {
		return false, err
	}
	if err := s.links.Install(home, target); err != nil {
		return false, err
	}
	return true, nil
}

// backupUnmanaged backs up home content that is not one of our links
func (s *Service) backupUnmanaged(home string) error {
	if !filesystem.Exists(s.fs, home) || s.links.IsManaged(home) {
		return nil
	}
	_, err := s.backups.Backup(home, s.backupEnabled)
	return err
}

// Switch moves home from profile from to profile to. Entries only in from
// are unlinked and their content restored from storage, entries only in to
// are linked, and shared entries are retargeted. Common entries are not
// touched. A failure stops the switch and names the step in FailedStep.
func (s *Service) Switch(from, to string) (SwitchResult, error) {
	logger := logging.GetLogger("profiles")
	done := logging.LogOperationStart(logger, "switch")
	defer done()

	var result SwitchResult
	if from == to {
		return result, nil
	}

	m, target, err := s.load(to)
	if err != nil {
		return result, err
	}
	var fromFiles []string
	if from != "" {
		p := m.Profile(from)
		if p == nil {
			return result, errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", from).
				WithDetail("profile", from)
		}
		fromFiles = p.SyncedFiles
	}

	inTo := toSet(target.SyncedFiles)
	inFrom := toSet(fromFiles)

	fail := func(step, rel string, err error) (SwitchResult, error) {
		result.FailedStep = step
		logger.Error().Err(err).Str("step", step).Str("path", rel).
			Strs("removed", result.Removed).Strs("created", result.Created).Strs("retargeted", result.Retargeted).
			Msg("Switch stopped; run activate to finish")
		return result, errors.Wrapf(err, errors.GetErrorCode(err), "switch to %s failed at %s (%s)", to, step, rel).
			WithDetail("step", step).WithDetail("path", rel)
	}

	for _, rel := range fromFiles {
		if inTo[rel] {
			continue
		}
		home := s.homePath(rel)
		src := s.storagePath(from, rel)
		if !s.links.PointsTo(home, src) {
			logger.Debug().Str("path", rel).Msg("Not linked to the old profile, leaving it")
			continue
		}
		if err := s.links.Uninstall(home, src); err != nil {
			return fail("remove", rel, err)
		}
		result.Removed = append(result.Removed, rel)
	}

	for _, rel := range target.SyncedFiles {
		if inFrom[rel] {
			continue
		}
		if _, err := s.link(manifest.Entry{Scope: to, Path: rel}); err != nil {
			return fail("create", rel, err)
		}
		result.Created = append(result.Created, rel)
	}

	for _, rel := range target.SyncedFiles {
		if !inFrom[rel] {
			continue
		}
		if _, err := s.link(manifest.Entry{Scope: to, Path: rel}); err != nil {
			return fail("retarget", rel, err)
		}
		result.Retargeted = append(result.Retargeted, rel)
	}

	result.Packages = append([]manifest.Package{}, target.Packages...)
	logger.Info().Str("from", from).Str("to", to).Int("removed", len(result.Removed)).
		Int("created", len(result.Created)).Int("retargeted", len(result.Retargeted)).Msg("Switched profile")
	return result, nil
}

// Deactivate replaces every managed link of the profile and of common with
// a copy of its storage content, returning how many were restored.
func (s *Service) Deactivate(name string) (int, error) {
	logger := logging.GetLogger("profiles")

	m, _, err := s.load(name)
	if err != nil {
		return 0, err
	}

	restored := 0
	var failed []string
	for _, e := range m.ActiveSet(name) {
		home := s.homePath(e.Path)
		src := s.storagePath(e.Scope, e.Path)
		if !s.links.PointsTo(home, src) {
			continue
		}
		if err := s.links.Uninstall(home, src); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %s", e.Path, errors.UserMessage(err)))
			continue
		}
		restored++
	}

	logger.Info().Str("profile", name).Int("restored", restored).Msg("Profile deactivated")
	if len(failed) > 0 {
		return restored, errors.Newf(errors.ErrIO, "%d entries could not be restored", len(failed)).
			WithDetail("errors", failed)
	}
	return restored, nil
}

// EnsureSymlinks creates links that are missing from home for the profile
// and common, typically after a pull brought in new entries. Anything
// already at a path, link or not, is left alone.
func (s *Service) EnsureSymlinks(name string) (Reconcile, error) {
	logger := logging.GetLogger("profiles")

	var result Reconcile
	m, _, err := s.load(name)
	if err != nil {
		return result, err
	}

	for _, e := range m.ActiveSet(name) {
		home := s.homePath(e.Path)
		target := s.storagePath(e.Scope, e.Path)
		if filesystem.Exists(s.fs, home) {
			if !s.links.PointsTo(home, target) {
				logger.Debug().Str("path", e.Path).Msg("Occupied, not linking")
			}
			result.Skipped++
			continue
		}
		if !filesystem.Exists(s.fs, target) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: missing from storage", e.Path))
			continue
		}
		if err := s.links.Install(home, target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", e.Path, errors.UserMessage(err)))
			continue
		}
		result.Created++
	}

	logger.Info().Str("profile", name).Int("created", result.Created).Int("skipped", result.Skipped).Msg("Links reconciled")
	if len(result.Errors) > 0 {
		return result, errors.Newf(errors.ErrIO, "%d links could not be created", len(result.Errors)).
			WithDetail("errors", result.Errors)
	}
	return result, nil
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}
