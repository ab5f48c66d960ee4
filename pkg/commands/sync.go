package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/profiles"
)

// SyncOptions control a sync with the remote
type SyncOptions struct {
	// Message replaces the generated commit message
	Message string
}

// SyncResult reports what a sync did
type SyncResult struct {
	Committed bool   `json:"committed" yaml:"committed"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	Pulled    int    `json:"pulled" yaml:"pulled"`
	Pushed    bool   `json:"pushed" yaml:"pushed"`
	// NoRemote is set for storage that has no origin to sync with
	NoRemote  bool                `json:"no_remote,omitempty" yaml:"no_remote,omitempty"`
	Reconcile *profiles.Reconcile `json:"reconcile,omitempty" yaml:"reconcile,omitempty"`
}

func (r SyncResult) String() string {
	var lines []string
	if r.Committed {
		lines = append(lines, "Committed: "+firstLine(r.Message))
	} else {
		lines = append(lines, "Nothing to commit")
	}
	if r.NoRemote {
		lines = append(lines, "No remote configured; changes stay local")
		return strings.Join(lines, "\n")
	}
	if r.Pulled > 0 {
		lines = append(lines, fmt.Sprintf("Pulled %d commit(s)", r.Pulled))
	}
	if r.Pushed {
		lines = append(lines, "Pushed to "+git.DefaultRemote)
	}
	if r.Reconcile != nil && r.Reconcile.Created > 0 {
		lines = append(lines, fmt.Sprintf("Linked %d new file(s)", r.Reconcile.Created))
	}
	return strings.Join(lines, "\n")
}

// SyncWithRemote commits local changes, rebases onto the remote, and pushes.
// When the pull brought commits in, links missing for the active profile are
// created. A failed push is reported, not retried.
func SyncWithRemote(ctx context.Context, env *Env, opts SyncOptions) (*SyncResult, error) {
	logger := logging.GetLogger("commands.sync")
	done := logging.LogOperationStart(logger, "sync")
	defer done()

	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	root := env.StorageRoot()
	if !env.Git.IsRepo(ctx, root) {
		return nil, errors.Newf(errors.ErrNotConfigured, "%s is not a git repository; run 'dotstate setup'", root).
			WithDetail("path", root)
	}

	result := &SyncResult{}

	changes, err := env.Git.Status(ctx, root)
	if err != nil {
		return nil, err
	}
	msg := opts.Message
	if msg == "" {
		msg = git.CommitMessage(changes)
	}
	if result.Committed, err = env.Git.CommitAll(ctx, root, msg); err != nil {
		return nil, err
	}
	if result.Committed {
		result.Message = msg
	}

	if _, err := env.Git.RemoteURL(ctx, root, git.DefaultRemote); err != nil {
		logger.Info().Msg("No remote configured, skipping pull and push")
		result.NoRemote = true
		return result, nil
	}

	branch, err := env.Git.CurrentBranch(ctx, root)
	if err != nil || branch == "" {
		branch = env.Config.DefaultBranch
	}

	if result.Pulled, err = env.Git.PullRebase(ctx, root, git.DefaultRemote, branch); err != nil {
		return result, err
	}

	if err := env.Git.Push(ctx, root, git.DefaultRemote, branch); err != nil {
		return result, err
	}
	result.Pushed = true

	if result.Pulled > 0 && env.Config.ActiveProfile != "" && env.Config.ProfileActivated {
		rec, err := env.Profiles().EnsureSymlinks(env.Config.ActiveProfile)
		result.Reconcile = &rec
		if err != nil {
			return result, err
		}
	}

	logger.Info().Bool("committed", result.Committed).Int("pulled", result.Pulled).Msg("Synced")
	return result, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
