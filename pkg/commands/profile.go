package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/profiles"
	"github.com/shaneholloman/dotstate/pkg/ui"
)

// ProfileRow is one profile in a listing
type ProfileRow struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Files       int    `json:"files" yaml:"files"`
	Packages    int    `json:"packages" yaml:"packages"`
	Active      bool   `json:"active" yaml:"active"`
}

// ProfileListResult is the output of ProfileList
type ProfileListResult struct {
	Active    string       `json:"active" yaml:"active"`
	Activated bool         `json:"activated" yaml:"activated"`
	Profiles  []ProfileRow `json:"profiles" yaml:"profiles"`
}

func (r ProfileListResult) Table() ui.Table {
	t := ui.Table{
		Header: []string{"", "NAME", "FILES", "PACKAGES", "DESCRIPTION"},
		Empty:  "No profiles; create one with 'dotstate profile create'",
	}
	for _, p := range r.Profiles {
		marker := ""
		if p.Active {
			marker = "*"
		}
		t.Rows = append(t.Rows, []string{marker, p.Name, strconv.Itoa(p.Files), strconv.Itoa(p.Packages), p.Description})
	}
	return t
}

// ProfileList lists every profile in the manifest
func ProfileList(env *Env) (*ProfileListResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	list, err := env.Profiles().List()
	if err != nil {
		return nil, err
	}

	result := &ProfileListResult{
		Active:    env.Config.ActiveProfile,
		Activated: env.Config.ProfileActivated,
		Profiles:  []ProfileRow{},
	}
	for _, p := range list {
		result.Profiles = append(result.Profiles, ProfileRow{
			Name:        p.Name,
			Description: p.Description,
			Files:       len(p.SyncedFiles),
			Packages:    len(p.Packages),
			Active:      p.Name == env.Config.ActiveProfile,
		})
	}
	return result, nil
}

// ProfileCreateOptions describes a new profile
type ProfileCreateOptions struct {
	Name        string
	Description string
	CopyFrom    string
}

// ProfileResult reports a create, rename, or delete
type ProfileResult struct {
	Name    string `json:"name" yaml:"name"`
	Message string `json:"message" yaml:"message"`
}

func (r ProfileResult) String() string {
	return r.Message
}

// ProfileCreate adds a profile. The first profile of a machine becomes its
// active profile.
func ProfileCreate(env *Env, opts ProfileCreateOptions) (*ProfileResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	name, err := env.Profiles().Create(opts.Name, opts.Description, opts.CopyFrom)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Created profile %s", name)
	if name != strings.TrimSpace(opts.Name) {
		msg += fmt.Sprintf(" (from %q)", opts.Name)
	}
	if opts.CopyFrom != "" {
		msg += fmt.Sprintf(", copied from %s", opts.CopyFrom)
	}
	if env.Config.ActiveProfile == "" {
		env.Config.ActiveProfile = name
		if err := env.saveConfig(); err != nil {
			return nil, err
		}
		msg += "; it is now the active profile"
	}
	return &ProfileResult{Name: name, Message: msg}, nil
}

// ProfileRenameOptions names the profile to rename and its new name
type ProfileRenameOptions struct {
	Old string
	New string
}

// ProfileRename renames a profile, following it with the config when it is
// the active one.
func ProfileRename(env *Env, opts ProfileRenameOptions) (*ProfileResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	isActive := opts.Old == env.Config.ActiveProfile
	name, err := env.Profiles().Rename(opts.Old, opts.New, isActive && env.Config.ProfileActivated)
	if name != "" && name != opts.Old && isActive {
		env.Config.ActiveProfile = name
		if saveErr := env.saveConfig(); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	if err != nil {
		return nil, err
	}
	return &ProfileResult{Name: name, Message: fmt.Sprintf("Renamed profile %s to %s", opts.Old, name)}, nil
}

// ProfileDelete removes a profile that is not active
func ProfileDelete(env *Env, name string) (*ProfileResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	if err := env.Profiles().Delete(name, env.Config.ActiveProfile); err != nil {
		return nil, err
	}
	return &ProfileResult{Name: name, Message: fmt.Sprintf("Deleted profile %s", name)}, nil
}

// SwitchResult reports a profile switch
type SwitchResult struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	// Linked is false when the machine is not activated and home was left alone.
	Linked bool `json:"linked" yaml:"linked"`

	profiles.SwitchResult `yaml:",inline"`
}

func (r SwitchResult) String() string {
	if r.From == r.To {
		return fmt.Sprintf("%s is already the active profile", r.To)
	}
	if !r.Linked {
		return fmt.Sprintf("Active profile is now %s; run 'dotstate activate' to link it", r.To)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Switched from %s to %s: %d removed, %d created, %d retargeted",
		r.From, r.To, len(r.Removed), len(r.Created), len(r.Retargeted))
	if len(r.Packages) > 0 {
		fmt.Fprintf(&b, "\nPackages expected by this profile: %s", packageNames(r.Packages))
	}
	return b.String()
}

// ProfileSwitch makes name the active profile, moving the home links over
// when the machine is activated. The config follows the target even when
// the switch stops partway, so activate finishes the job.
func ProfileSwitch(env *Env, name string) (*SwitchResult, error) {
	logger := logging.GetLogger("commands.profile")

	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New(errors.ErrInvalidInput, "a profile name is required")
	}

	from := env.Config.ActiveProfile
	result := &SwitchResult{From: from, To: name, Linked: env.Config.ProfileActivated}
	if from == name {
		return result, nil
	}

	var switchErr error
	if env.Config.ProfileActivated {
		result.SwitchResult, switchErr = env.Profiles().Switch(from, name)
		if switchErr != nil && result.FailedStep == "" {
			return nil, switchErr
		}
	} else {
		m, err := env.Manifest.Load()
		if err != nil {
			return nil, err
		}
		if !m.HasProfile(name) {
			return nil, errors.Newf(errors.ErrProfileNotFound, "profile %q does not exist", name).
				WithDetail("profile", name)
		}
	}

	env.Config.ActiveProfile = name
	if err := env.saveConfig(); err != nil {
		return result, err
	}
	if switchErr != nil {
		logger.Warn().Str("step", result.FailedStep).Msg("Switch incomplete; config points at the new profile")
	}
	return result, switchErr
}
