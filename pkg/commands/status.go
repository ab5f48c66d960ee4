package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/status"
	"github.com/shaneholloman/dotstate/pkg/ui"
)

// StatusOptions control the repository probe
type StatusOptions struct {
	// Force bypasses the snapshot reuse interval
	Force bool
	// Offline skips the fetch, so Behind reflects the last known remote
	Offline bool
}

// StatusResult is the output of Status
type StatusResult struct {
	Profile string `json:"profile" yaml:"profile"`
	Branch  string `json:"branch" yaml:"branch"`

	status.Snapshot `yaml:",inline"`
}

func (r StatusResult) Table() ui.Table {
	t := ui.Table{
		Title:  r.summary(),
		Header: []string{"", "PATH"},
		Empty:  "Working tree clean",
	}
	for _, c := range r.Uncommitted {
		t.Rows = append(t.Rows, []string{string(c.Code), c.Path})
	}
	return t
}

func (r StatusResult) summary() string {
	s := fmt.Sprintf("%s on %s: %d uncommitted, %d ahead, %d behind",
		r.Profile, r.Branch, len(r.Uncommitted), r.Ahead, r.Behind)
	if r.Stale {
		s += " (remote not reachable)"
	}
	return s
}

// probe returns the Env's status probe, creating it on first use
func (e *Env) probe(ctx context.Context, offline bool) *status.Probe {
	e.probeOnce.Do(func() {
		root := e.StorageRoot()
		branch := e.Config.DefaultBranch
		if current, err := e.Git.CurrentBranch(ctx, root); err == nil && current != "" {
			branch = current
		}
		e.branch = branch
		e.statusProbe = status.NewProbe(e.StatusGit, root,
			status.WithRemote(git.DefaultRemote),
			status.WithBranch(branch),
			status.WithFetch(!offline),
		)
	})
	return e.statusProbe
}

// Status snapshots the storage repository. Within one Env a snapshot is
// reused for status.DefaultMinInterval unless forced or the tree changed.
func Status(ctx context.Context, env *Env, opts StatusOptions) (*StatusResult, error) {
	if err := env.RequireStorage(); err != nil {
		return nil, err
	}
	probe := env.probe(ctx, opts.Offline)
	snap, err := probe.Start(ctx, opts.Force).Wait(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Err != nil {
		return nil, snap.Err
	}
	return &StatusResult{Profile: env.Config.ActiveProfile, Branch: env.branch, Snapshot: snap}, nil
}

// WatchStatus reports a snapshot now and again whenever the storage tree
// changes or the reuse interval lapses, until ctx is done.
func WatchStatus(ctx context.Context, env *Env, opts StatusOptions, poll time.Duration, onSnapshot func(*StatusResult)) error {
	logger := logging.GetLogger("commands.status")

	first, err := Status(ctx, env, StatusOptions{Force: true, Offline: opts.Offline})
	if err != nil {
		return err
	}
	onSnapshot(first)

	probe := env.probe(ctx, opts.Offline)
	watcher, err := status.NewWatcher(env.StorageRoot(), probe)
	if err != nil {
		return err
	}
	defer watcher.Close()
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn().Err(err).Msg("Watcher stopped")
		}
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	var pending *status.Handle
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if pending == nil {
			if !probe.NeedsRefresh() {
				continue
			}
			pending = probe.Start(ctx, false)
		}
		snap, ready := pending.Poll()
		if !ready {
			continue
		}
		pending = nil
		if snap.Err != nil {
			logger.Warn().Err(snap.Err).Msg("Status probe failed")
			continue
		}
		onSnapshot(&StatusResult{Profile: env.Config.ActiveProfile, Branch: env.branch, Snapshot: snap})
	}
}
