package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/github"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/scaffold"
)

const (
	repoDescription = "My dotfiles managed by dotstate"
	initialCommit   = "Initial commit"
)

const gitignoreContent = `# OS files
.DS_Store
Thumbs.db

# Backup files
*.bak
*.swp
*.swo
*~
`

// run executes the action of state. It works on a copy of the result data
// and never touches orchestrator fields.
func (o *Orchestrator) run(ctx context.Context, state State, data Result) stepResult {
	switch state {
	case Connecting:
		return stepResult{
			next:   ValidatingToken,
			data:   data,
			status: "Validating your token...",
			delay:  o.deps.Delays.Connecting,
		}
	case ValidatingToken:
		return o.validateToken(ctx, data)
	case CheckingRepo:
		return o.checkRepo(data)
	case CloningRepo:
		return o.cloneRepo(ctx, data)
	case CreatingRepo:
		return o.createRepo(ctx, data)
	case InitializingRepo:
		return o.initializeRepo(ctx, data)
	case DiscoveringProfiles:
		return o.discoverProfiles(data)
	default:
		return stepResult{err: errors.Newf(errors.ErrInternal, "no action for state %s", state)}
	}
}

func (o *Orchestrator) validateToken(ctx context.Context, data Result) stepResult {
	if o.deps.API == nil {
		return stepResult{err: errors.New(errors.ErrInternal, "setup has no GitHub client")}
	}
	user, err := o.deps.API.GetUser(ctx)
	if err != nil {
		return stepResult{err: wrapCause(err, errors.ErrRemoteAPI, "authentication failed")}
	}
	exists, err := o.deps.API.RepoExists(ctx, user.Login, o.inputs.RepoName)
	if err != nil {
		return stepResult{err: err}
	}

	data.Owner = user.Login
	data.RepoExisted = exists
	return stepResult{
		next:   CheckingRepo,
		data:   data,
		status: "Checking if repository exists...",
		delay:  o.deps.Delays.ValidatingToken,
	}
}

func (o *Orchestrator) checkRepo(data Result) stepResult {
	if data.Owner == "" {
		return stepResult{err: errors.New(errors.ErrInternal, "setup state is invalid, please try again")}
	}

	full := data.Owner + "/" + o.inputs.RepoName
	if data.RepoExisted {
		return stepResult{
			next:   CloningRepo,
			data:   data,
			status: fmt.Sprintf("Cloning repository %s...", full),
			delay:  o.deps.Delays.CheckingRepoClone,
		}
	}
	return stepResult{
		next:   CreatingRepo,
		data:   data,
		status: fmt.Sprintf("Creating repository %s...", full),
		delay:  o.deps.Delays.CheckingRepoCreate,
	}
}

func (o *Orchestrator) remoteURL(owner string) string {
	return github.CloneURL(o.deps.WebHost, owner, o.inputs.RepoName)
}

func (o *Orchestrator) cloneRepo(ctx context.Context, data Result) stepResult {
	logger := logging.GetLogger("setup")
	dir := o.inputs.LocalPath
	expected := o.remoteURL(data.Owner)
	data.IsNewRepo = false

	status := "Repository cloned successfully!"
	reuse := false

	if o.deps.Git.IsRepo(ctx, dir) {
		found, err := o.deps.Git.RemoteURL(ctx, dir, git.DefaultRemote)
		if err == nil && git.SameRemote(found, expected) {
			reuse = true
			status = "Using existing repository!"
		} else {
			mismatch := errors.New(errors.ErrRemoteMismatch, "existing checkout has a different origin").
				WithDetail("expected", git.StripCredentials(expected)).
				WithDetail("found", git.StripCredentials(found))
			logger.Warn().Err(mismatch).Str("path", dir).Msg("Removing checkout and cloning again")
			if err := o.deps.FS.RemoveAll(dir); err != nil {
				return stepResult{err: errors.IO(err, "remove", dir)}
			}
		}
	} else if entries, err := o.deps.FS.ReadDir(dir); err == nil && len(entries) > 0 {
		return stepResult{err: errors.Validation("%s exists, is not empty and is not a git repository", dir).
			WithDetail("path", dir)}
	}

	if !reuse {
		if err := o.deps.FS.MkdirAll(filepath.Dir(dir), 0755); err != nil {
			return stepResult{err: errors.IO(err, "mkdir", filepath.Dir(dir))}
		}
		if err := o.deps.Git.Clone(ctx, expected, dir); err != nil {
			return stepResult{err: wrapCause(err, errors.ErrGitFailure, "failed to clone repository")}
		}
	}

	logger.Info().Str("path", dir).Bool("reused", reuse).Msg("Storage checkout ready")
	return stepResult{
		next:   DiscoveringProfiles,
		data:   data,
		status: status,
		delay:  o.deps.Delays.CloningRepo,
	}
}

func (o *Orchestrator) createRepo(ctx context.Context, data Result) stepResult {
	if data.Owner == "" {
		return stepResult{err: errors.New(errors.ErrInternal, "username not available, please try again")}
	}
	repo, err := o.deps.API.CreateRepo(ctx, o.inputs.RepoName, repoDescription, o.inputs.Private)
	if err != nil {
		return stepResult{err: wrapCause(err, errors.ErrRemoteAPI, "failed to create repository")}
	}
	logger := logging.GetLogger("setup")
	logger.Info().Str("repo", repo.FullName).Bool("private", repo.Private).Msg("Created repository")

	data.IsNewRepo = true
	return stepResult{
		next:   InitializingRepo,
		data:   data,
		status: "Initializing local repository...",
		delay:  o.deps.Delays.CreatingRepo,
	}
}

func (o *Orchestrator) defaultProfile() string {
	if o.inputs.ActiveProfile != "" {
		return o.inputs.ActiveProfile
	}
	return DefaultProfile
}

func (o *Orchestrator) initializeRepo(ctx context.Context, data Result) stepResult {
	logger := logging.GetLogger("setup")
	dir := o.inputs.LocalPath
	profile := o.defaultProfile()
	name := o.inputs.RepoName

	batch := scaffold.New().
		Dir(dir, 0755).
		File(filepath.Join(dir, "README.md"), []byte(fmt.Sprintf("# %s\n\nDotfiles managed by dotstate", name)), 0644).
		File(filepath.Join(dir, ".gitignore"), []byte(gitignoreContent), 0644).
		Dir(filepath.Join(dir, profile), 0755)
	if err := batch.Run(ctx); err != nil {
		return stepResult{err: err}
	}

	store := o.deps.Manifests(dir)
	m := manifest.Default()
	m.Profiles = append(m.Profiles, manifest.Profile{Name: profile, SyncedFiles: []string{}})
	if err := store.Save(m); err != nil {
		return stepResult{err: err}
	}

	g := o.deps.Git
	if err := g.Init(ctx, dir, o.inputs.DefaultBranch); err != nil {
		return stepResult{err: err}
	}
	if err := g.SetRemote(ctx, dir, git.DefaultRemote, o.remoteURL(data.Owner)); err != nil {
		return stepResult{err: err}
	}
	if _, err := g.CommitAll(ctx, dir, initialCommit); err != nil {
		return stepResult{err: err}
	}

	branch, err := g.CurrentBranch(ctx, dir)
	if err != nil || branch == "" {
		branch = o.inputs.DefaultBranch
	}

	if err := g.Pull(ctx, dir, git.DefaultRemote, branch); err != nil {
		logger.Info().Err(err).Msg("Could not pull before first push, remote branch is probably absent")
	}
	if err := g.Push(ctx, dir, git.DefaultRemote, branch); err != nil {
		return stepResult{err: wrapCause(err, errors.ErrGitFailure,
			"failed to push to remote; the token needs Contents read and write (fine-grained) or the repo scope (classic)")}
	}
	if err := g.SetUpstream(ctx, dir, git.DefaultRemote, branch); err != nil {
		logger.Warn().Err(err).Msg("Failed to set upstream tracking")
	}

	return stepResult{
		next:   DiscoveringProfiles,
		data:   data,
		status: fmt.Sprintf("Repository %s/%s initialized at %s", data.Owner, name, dir),
		delay:  o.deps.Delays.InitializingRepo,
	}
}

func (o *Orchestrator) discoverProfiles(data Result) stepResult {
	logger := logging.GetLogger("setup")
	dir := o.inputs.LocalPath
	store := o.deps.Manifests(dir)

	m, orphans, err := store.LoadOrBackfill()
	if err != nil {
		return stepResult{err: wrapCause(err, errors.ErrIO, "failed to discover profiles")}
	}
	if len(orphans) > 0 {
		logger.Warn().Strs("entries", orphans).Msg("Storage has entries without manifest records")
	}

	if len(m.Profiles) == 0 {
		logger.Info().Msg("No profiles found in repository, creating default profile")
		if err := store.AddProfile(manifest.Profile{Name: DefaultProfile}); err != nil {
			return stepResult{err: err}
		}
		profileDir := filepath.Join(dir, DefaultProfile)
		if err := o.deps.FS.MkdirAll(profileDir, 0755); err != nil && !os.IsExist(err) {
			logger.Warn().Err(err).Str("path", profileDir).Msg("Failed to create profile directory")
		}
		data.CreatedDefault = true
		m, err = store.Load()
		if err != nil {
			return stepResult{err: err}
		}
	}

	data.Profiles = m.ProfileNames()
	return stepResult{
		next:   Complete,
		data:   data,
		status: fmt.Sprintf("Setup complete! Found %d profile(s) in %s/%s.", len(data.Profiles), data.Owner, o.inputs.RepoName),
		delay:  o.deps.Delays.DiscoveringProfiles,
	}
}

// wrapCause prefixes the cause's message and keeps its code when it has one.
func wrapCause(err error, fallback errors.ErrorCode, msg string) error {
	code := errors.GetErrorCode(err)
	if code == errors.ErrUnknown {
		code = fallback
	}
	return errors.Wrapf(err, code, "%s: %s", msg, errors.UserMessage(err))
}
