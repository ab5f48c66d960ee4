package commands

import (
	"fmt"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/profiles"
)

// ActivateResult reports an activation
type ActivateResult struct {
	Profile string `json:"profile" yaml:"profile"`

	profiles.ActivateResult `yaml:",inline"`
}

func (r ActivateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activated %s: %d linked, %d already in place", r.Profile, r.Linked, r.Skipped)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  failed: %s", e)
	}
	if len(r.Packages) > 0 {
		fmt.Fprintf(&b, "\nPackages expected by this profile: %s", packageNames(r.Packages))
	}
	return b.String()
}

// Activate links the active profile and common into home. Running it again
// repairs whatever a previous run or a switch left undone.
func Activate(env *Env) (*ActivateResult, error) {
	logger := logging.GetLogger("commands.activate")

	active, err := env.RequireActiveProfile()
	if err != nil {
		return nil, err
	}

	res, err := env.Profiles().Activate(active)
	result := &ActivateResult{Profile: active, ActivateResult: res}
	if err != nil {
		return result, err
	}

	if !env.Config.ProfileActivated {
		env.Config.ProfileActivated = true
		if err := env.saveConfig(); err != nil {
			return result, err
		}
	}
	logger.Info().Str("profile", active).Int("linked", res.Linked).Msg("Activated")
	return result, nil
}

// DeactivateResult reports a deactivation
type DeactivateResult struct {
	Profile  string `json:"profile" yaml:"profile"`
	Restored int    `json:"restored" yaml:"restored"`
}

func (r DeactivateResult) String() string {
	return fmt.Sprintf("Deactivated %s: %d files restored as regular copies", r.Profile, r.Restored)
}

// Deactivate turns every managed link back into a regular copy
func Deactivate(env *Env) (*DeactivateResult, error) {
	active, err := env.RequireActiveProfile()
	if err != nil {
		return nil, err
	}

	restored, err := env.Profiles().Deactivate(active)
	result := &DeactivateResult{Profile: active, Restored: restored}
	if err != nil {
		return result, err
	}

	env.Config.ProfileActivated = false
	return result, env.saveConfig()
}

func packageNames(pkgs []manifest.Package) string {
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
