// pkg/setup/fakes_test.go
// TEST TYPE: Test Helpers
// DEPENDENCIES: None
// PURPOSE: In-memory GitHub API and git driver for orchestrator tests

package setup_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/github"
)

type fakeAPI struct {
	mu        sync.Mutex
	login     string
	exists    bool
	userErr   error
	createErr error
	calls     []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GetUser(context.Context) (*github.User, error) {
	f.record("user")
	if f.userErr != nil {
		return nil, f.userErr
	}
	return &github.User{Login: f.login}, nil
}

func (f *fakeAPI) RepoExists(_ context.Context, owner, repo string) (bool, error) {
	f.record("exists " + owner + "/" + repo)
	return f.exists, nil
}

func (f *fakeAPI) CreateRepo(_ context.Context, name, _ string, private bool) (*github.Repo, error) {
	f.record(fmt.Sprintf("create %s private=%v", name, private))
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &github.Repo{Name: name, FullName: f.login + "/" + name, Private: private}, nil
}

// fakeGit keeps remotes in memory and marks repositories with a .git dir.
type fakeGit struct {
	mu      sync.Mutex
	calls   []string
	remotes map[string]string
	// onClone populates a fresh clone with remote content.
	onClone func(dir string)
	pushErr error
}

func newFakeGit() *fakeGit {
	return &fakeGit{remotes: map[string]string{}}
}

func (g *fakeGit) record(format string, args ...interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
}

func (g *fakeGit) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGit) Init(_ context.Context, dir, branch string) error {
	g.record("init %s", branch)
	return os.MkdirAll(filepath.Join(dir, ".git"), 0755)
}

func (g *fakeGit) Clone(_ context.Context, url, dir string) error {
	g.record("clone %s", url)
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		return err
	}
	g.mu.Lock()
	g.remotes[dir] = url
	g.mu.Unlock()
	if g.onClone != nil {
		g.onClone(dir)
	}
	return nil
}

func (g *fakeGit) IsRepo(_ context.Context, dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func (g *fakeGit) RemoteURL(_ context.Context, dir, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	url, ok := g.remotes[dir]
	if !ok {
		return "", errors.New(errors.ErrGitFailure, "no such remote")
	}
	return url, nil
}

func (g *fakeGit) SetRemote(_ context.Context, dir, name, url string) error {
	g.record("remote %s %s", name, url)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remotes[dir] = url
	return nil
}

func (g *fakeGit) CommitAll(_ context.Context, _, msg string) (bool, error) {
	g.record("commit %s", msg)
	return true, nil
}

func (g *fakeGit) Push(_ context.Context, _, remote, branch string) error {
	g.record("push %s %s", remote, branch)
	return g.pushErr
}

func (g *fakeGit) Pull(_ context.Context, _, remote, branch string) error {
	g.record("pull %s %s", remote, branch)
	return errors.New(errors.ErrGitFailure, "couldn't find remote ref main")
}

func (g *fakeGit) PullRebase(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (g *fakeGit) Fetch(context.Context, string, string, string) error { return nil }

func (g *fakeGit) AheadBehind(context.Context, string, string, string) (int, int, error) {
	return 0, 0, nil
}

func (g *fakeGit) Status(context.Context, string) ([]git.Change, error) { return nil, nil }

func (g *fakeGit) CurrentBranch(context.Context, string) (string, error) { return "main", nil }

func (g *fakeGit) SetUpstream(_ context.Context, _, remote, branch string) error {
	g.record("upstream %s %s", remote, branch)
	return nil
}
