// pkg/commands/setup_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: Real filesystem (testutil.EnvIsolated)
// PURPOSE: Test setup input resolution and the config reset after a failed run

package commands_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaneholloman/dotstate/pkg/commands"
	"github.com/shaneholloman/dotstate/pkg/config"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/github"
	"github.com/shaneholloman/dotstate/pkg/setup"
	"github.com/shaneholloman/dotstate/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectingAPI struct{}

func (rejectingAPI) GetUser(ctx context.Context) (*github.User, error) {
	return nil, errors.New(errors.ErrRemoteAPI, "bad credentials")
}

func (rejectingAPI) RepoExists(ctx context.Context, owner, repo string) (bool, error) {
	return false, nil
}

func (rejectingAPI) CreateRepo(ctx context.Context, name, description string, private bool) (*github.Repo, error) {
	return nil, errors.New(errors.ErrRemoteAPI, "unreachable")
}

func TestSetup_RequiresToken(t *testing.T) {
	t.Setenv(config.EnvGitHubToken, "")
	cfg := &config.Config{}

	_, err := commands.Setup(context.Background(), cfg, commands.SetupOptions{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestSetup_FailureResetsConfig(t *testing.T) {
	tenv := testutil.NewTestEnvironment(t, testutil.EnvIsolated)
	cfg := &config.Config{
		RepoPath:         filepath.Join(tenv.Root, "fresh"),
		ActiveProfile:    "stale",
		ProfileActivated: true,
		GitHub:           &config.GitHubConfig{Owner: "someone", Repo: "dots"},
	}
	cfg.SetPath(filepath.Join(tenv.ConfigDir, "dotstate", "config.toml"))

	var statuses []string
	_, err := commands.Setup(context.Background(), cfg, commands.SetupOptions{
		Token:    "tok",
		API:      rejectingAPI{},
		FS:       tenv.FS,
		Delays:   &setup.Delays{},
		Interval: time.Millisecond,
		OnStatus: func(_ setup.State, s string) { statuses = append(statuses, s) },
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRemoteAPI))

	assert.Nil(t, cfg.GitHub)
	assert.Empty(t, cfg.ActiveProfile)
	assert.False(t, cfg.ProfileActivated)
	assert.Equal(t, config.DefaultRepoName, cfg.RepoName)
	assert.NotEmpty(t, statuses)
	tenv.AssertMissing(cfg.RepoPath)
}
