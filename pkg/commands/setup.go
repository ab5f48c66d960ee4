package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/github"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/setup"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// DefaultSetupInterval is how often setup advances its state machine
const DefaultSetupInterval = 250 * time.Millisecond

// SetupOptions are the inputs of Setup
type SetupOptions struct {
	// Token falls back to the configured or environment token
	Token    string
	RepoName string
	Private  bool
	Interval time.Duration
	OnStatus func(setup.State, string)

	API    github.API
	Git    git.Driver
	FS     types.FS
	Delays *setup.Delays
}

// SetupResult reports a completed setup
type SetupResult struct {
	ActiveProfile string `json:"active_profile" yaml:"active_profile"`

	setup.Result `yaml:",inline"`
}

func (r SetupResult) String() string {
	var b strings.Builder
	verb := "Cloned"
	if r.IsNewRepo {
		verb = "Created"
	}
	fmt.Fprintf(&b, "%s %s/%s into %s", verb, r.Owner, r.RepoName, r.LocalPath)
	fmt.Fprintf(&b, "\nProfiles: %s", strings.Join(r.Profiles, ", "))
	fmt.Fprintf(&b, "\nActive profile: %s; run 'dotstate activate' to link it", r.ActiveProfile)
	return b.String()
}

// Setup connects the storage repository and records it in cfg. A failed
// run is cleaned up and leaves cfg unconfigured.
func Setup(ctx context.Context, cfg *config.Config, opts SetupOptions) (*SetupResult, error) {
	logger := logging.GetLogger("commands.setup")

	token := opts.Token
	if token == "" {
		token = cfg.GitHubToken()
	}
	if token == "" {
		return nil, errors.Newf(errors.ErrInvalidInput,
			"a GitHub token is required; pass --token or set %s", config.EnvGitHubToken)
	}
	repoName := opts.RepoName
	if repoName == "" {
		repoName = cfg.RepoName
	}
	if repoName == "" {
		repoName = config.DefaultRepoName
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSetupInterval
	}
	if opts.API == nil {
		opts.API = github.NewClient(token)
	}
	if opts.Git == nil {
		opts.Git = git.NewShellDriver(git.WithToken(token))
	}
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	delays := setup.DefaultDelays()
	if opts.Delays != nil {
		delays = *opts.Delays
	}

	fsys := opts.FS
	orch := setup.New(setup.Inputs{
		Token:         token,
		RepoName:      repoName,
		Private:       opts.Private,
		LocalPath:     cfg.RepoPath,
		DefaultBranch: cfg.DefaultBranch,
		ActiveProfile: cfg.ActiveProfile,
	}, setup.Deps{
		API:       opts.API,
		Git:       opts.Git,
		FS:        fsys,
		Manifests: func(root string) *manifest.Store { return manifest.NewStore(fsys, root) },
		Delays:    delays,
	})

	res, err := orch.Run(ctx, opts.Interval, opts.OnStatus)
	if err != nil {
		logger.Error().Err(err).Str("state", orch.State().String()).Msg("Setup failed")
		if cleanupErr := setup.Cleanup(fsys, cfg, res.IsNewRepo); cleanupErr != nil {
			logger.Error().Err(cleanupErr).Msg("Cleanup after failed setup failed")
		}
		return nil, err
	}

	cfg.RepoMode = config.ModeGitHub
	cfg.RepoName = res.RepoName
	cfg.RepoPath = res.LocalPath
	cfg.GitHub = &config.GitHubConfig{Owner: res.Owner, Repo: res.RepoName}
	if opts.Token != "" {
		cfg.GitHub.Token = opts.Token
	}
	if !contains(res.Profiles, cfg.ActiveProfile) {
		cfg.ActiveProfile = ""
		cfg.ProfileActivated = false
		if len(res.Profiles) > 0 {
			cfg.ActiveProfile = res.Profiles[0]
		}
	}
	if cfg.Path() != "" {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	logger.Info().Str("owner", res.Owner).Str("repo", res.RepoName).Bool("new", res.IsNewRepo).Msg("Setup complete")
	return &SetupResult{Result: res, ActiveProfile: cfg.ActiveProfile}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
