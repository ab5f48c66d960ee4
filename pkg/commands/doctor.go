package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/doctor"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// DoctorOptions selects whether findings are repaired
type DoctorOptions struct {
	// Fix applies the known repairs and checks again
	Fix bool
}

// DoctorResult is the report of the last run plus any repairs applied
// before it
type DoctorResult struct {
	doctor.Report `yaml:",inline"`

	Fixed []string `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

func (r DoctorResult) Markdown() string {
	md := r.Report.Markdown()
	if len(r.Fixed) == 0 {
		return md
	}
	var b strings.Builder
	b.WriteString(md)
	b.WriteString("\n## Repairs\n\n")
	for _, f := range r.Fixed {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

// Doctor checks config, storage, links, and the repository. With Fix set,
// the activation flag is brought in line with home and missing links are
// restored, then the checks run again.
func Doctor(ctx context.Context, env *Env, opts DoctorOptions) (*DoctorResult, error) {
	logger := logging.GetLogger("commands.doctor")

	report, err := runDoctor(ctx, env)
	if err != nil {
		return nil, err
	}
	result := &DoctorResult{Report: report}

	fixes := report.Fixes()
	if !opts.Fix || len(fixes) == 0 {
		return result, nil
	}

	for _, fix := range fixes {
		logger.Info().Str("fix", string(fix)).Msg("Applying doctor fix")
		msg, err := applyFix(env, fix)
		if err != nil {
			return result, err
		}
		result.Fixed = append(result.Fixed, msg)
	}

	if result.Report, err = runDoctor(ctx, env); err != nil {
		return nil, err
	}
	return result, nil
}

func runDoctor(ctx context.Context, env *Env) (doctor.Report, error) {
	return doctor.Run(ctx, doctor.Options{
		FS:               env.FS,
		Home:             env.Home,
		StorageRoot:      env.StorageRoot(),
		ActiveProfile:    env.Config.ActiveProfile,
		ProfileActivated: env.Config.ProfileActivated,
		Manifest:         env.Manifest,
		Links:            env.Links,
		Git:              env.StatusGit,
	})
}

func applyFix(env *Env, fix doctor.Fix) (string, error) {
	switch fix {
	case doctor.FixMarkInactive:
		env.Config.ProfileActivated = false
		return "marked " + env.Config.ActiveProfile + " as not activated", env.saveConfig()
	case doctor.FixMarkActive:
		env.Config.ProfileActivated = true
		return "marked " + env.Config.ActiveProfile + " as activated", env.saveConfig()
	case doctor.FixRelink:
		res, err := Activate(env)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("re-activated %s: %d linked", res.Profile, res.Linked), nil
	default:
		return "", errors.Newf(errors.ErrInternal, "no repair for %q", fix)
	}
}
