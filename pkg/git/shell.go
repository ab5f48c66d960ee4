package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// tokenEnv carries the token to the inline credential helper so it never
// appears in argv or in .git/config.
const tokenEnv = "DOTSTATE_GIT_TOKEN"

// Fallback identity for commits on machines without user.name/user.email.
const (
	DefaultAuthorName  = "dotstate"
	DefaultAuthorEmail = "dotstate@localhost"
)

// ShellDriver implements Driver by shelling out to the git command
type ShellDriver struct {
	binary string
	token  string
}

// ShellOption configures a ShellDriver
type ShellOption func(*ShellDriver)

// WithToken authenticates https network operations with a personal token.
func WithToken(token string) ShellOption {
	return func(d *ShellDriver) {
		d.token = token
	}
}

// WithBinary overrides the git executable
func WithBinary(path string) ShellOption {
	return func(d *ShellDriver) {
		d.binary = path
	}
}

// NewShellDriver creates a driver that uses the git command
func NewShellDriver(opts ...ShellOption) *ShellDriver {
	d := &ShellDriver{binary: "git"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithoutCredentials returns a copy that never sends the token, for
// best-effort background fetches.
func (d *ShellDriver) WithoutCredentials() *ShellDriver {
	return &ShellDriver{binary: d.binary}
}

// Available reports whether the git binary can be found
func (d *ShellDriver) Available() bool {
	_, err := exec.LookPath(d.binary)
	return err == nil
}

func (d *ShellDriver) Init(ctx context.Context, dir, branch string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.IO(err, "mkdir", dir)
	}
	if branch == "" {
		branch = "main"
	}
	_, err := d.run(ctx, "init", false, "init", "-b", branch, dir)
	return err
}

func (d *ShellDriver) Clone(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return errors.IO(err, "mkdir", filepath.Dir(dir))
	}
	_, err := d.run(ctx, "clone", true, "clone", url, dir)
	return err
}

// IsRepo reports whether dir itself holds a .git entry; a directory nested
// in some other repository does not count.
func (d *ShellDriver) IsRepo(_ context.Context, dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func (d *ShellDriver) RemoteURL(ctx context.Context, dir, name string) (string, error) {
	out, err := d.run(ctx, "remote", false, "-C", dir, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (d *ShellDriver) SetRemote(ctx context.Context, dir, name, url string) error {
	if _, err := d.RemoteURL(ctx, dir, name); err == nil {
		_, err := d.run(ctx, "remote", false, "-C", dir, "remote", "set-url", name, url)
		return err
	}
	_, err := d.run(ctx, "remote", false, "-C", dir, "remote", "add", name, url)
	return err
}

func (d *ShellDriver) CommitAll(ctx context.Context, dir, msg string) (bool, error) {
	if _, err := d.run(ctx, "add", false, "-C", dir, "add", "-A"); err != nil {
		return false, err
	}
	out, err := d.run(ctx, "status", false, "--no-optional-locks", "-C", dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) == "" {
		return false, nil
	}

	args := []string{"-C", dir}
	if !d.hasIdentity(ctx, dir) {
		args = append(args, "-c", "user.name="+DefaultAuthorName, "-c", "user.email="+DefaultAuthorEmail)
	}
	args = append(args, "commit", "--no-verify", "-m", msg)
	if _, err := d.run(ctx, "commit", false, args...); err != nil {
		return false, err
	}
	return true, nil
}

func (d *ShellDriver) hasIdentity(ctx context.Context, dir string) bool {
	name, err1 := d.run(ctx, "config", false, "-C", dir, "config", "user.name")
	email, err2 := d.run(ctx, "config", false, "-C", dir, "config", "user.email")
	return err1 == nil && err2 == nil && strings.TrimSpace(name) != "" && strings.TrimSpace(email) != ""
}

func (d *ShellDriver) Push(ctx context.Context, dir, remote, branch string) error {
	_, err := d.run(ctx, "push", true, "-C", dir, "push", remote, branch)
	return err
}

func (d *ShellDriver) Pull(ctx context.Context, dir, remote, branch string) error {
	args := []string{"-C", dir}
	if !d.hasIdentity(ctx, dir) {
		args = append(args, "-c", "user.name="+DefaultAuthorName, "-c", "user.email="+DefaultAuthorEmail)
	}
	args = append(args, "pull", "--no-rebase", "--no-edit", remote, branch)
	_, err := d.run(ctx, "pull", true, args...)
	return err
}

// PullRebase fetches, counts incoming commits, and rebases local work on top.
// A conflicting rebase is aborted so the tree is left as it was.
func (d *ShellDriver) PullRebase(ctx context.Context, dir, remote, branch string) (int, error) {
	if err := d.Fetch(ctx, dir, remote, branch); err != nil {
		return 0, err
	}
	upstream := remote + "/" + branch
	if !d.refExists(ctx, dir, upstream) {
		return 0, nil
	}

	incoming := 0
	if d.refExists(ctx, dir, "HEAD") {
		out, err := d.run(ctx, "rev-list", false, "-C", dir, "rev-list", "--count", "HEAD.."+upstream)
		if err != nil {
			return 0, err
		}
		incoming, _ = strconv.Atoi(strings.TrimSpace(out))
		if incoming == 0 {
			return 0, nil
		}
	}

	args := []string{"-C", dir}
	if !d.hasIdentity(ctx, dir) {
		args = append(args, "-c", "user.name="+DefaultAuthorName, "-c", "user.email="+DefaultAuthorEmail)
	}
	args = append(args, "rebase", upstream)
	if _, err := d.run(ctx, "rebase", false, args...); err != nil {
		if errors.IsErrorCode(err, errors.ErrMergeConflict) {
			_, _ = d.run(ctx, "rebase", false, "-C", dir, "rebase", "--abort")
		}
		return 0, err
	}
	return incoming, nil
}

func (d *ShellDriver) Fetch(ctx context.Context, dir, remote, branch string) error {
	_, err := d.run(ctx, "fetch", true, "-C", dir, "fetch", remote, branch)
	return err
}

// AheadBehind compares HEAD with remote/branch. Without a tracking ref every
// local commit counts as ahead.
func (d *ShellDriver) AheadBehind(ctx context.Context, dir, remote, branch string) (int, int, error) {
	if !d.refExists(ctx, dir, "HEAD") {
		return 0, 0, nil
	}
	upstream := remote + "/" + branch
	if !d.refExists(ctx, dir, upstream) {
		out, err := d.run(ctx, "rev-list", false, "-C", dir, "rev-list", "--count", "HEAD")
		if err != nil {
			return 0, 0, err
		}
		ahead, _ := strconv.Atoi(strings.TrimSpace(out))
		return ahead, 0, nil
	}

	out, err := d.run(ctx, "rev-list", false, "-C", dir, "rev-list", "--left-right", "--count", "HEAD..."+upstream)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, errors.Newf(errors.ErrGitFailure, "unexpected rev-list output %q", out).WithDetail("op", "rev-list")
	}
	ahead, _ := strconv.Atoi(fields[0])
	behind, _ := strconv.Atoi(fields[1])
	return ahead, behind, nil
}

func (d *ShellDriver) Status(ctx context.Context, dir string) ([]Change, error) {
	out, err := d.run(ctx, "status", false, "--no-optional-locks", "-C", dir, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return ParsePorcelain(out), nil
}

func (d *ShellDriver) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := d.run(ctx, "branch", false, "-C", dir, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (d *ShellDriver) SetUpstream(ctx context.Context, dir, remote, branch string) error {
	_, err := d.run(ctx, "branch", false, "-C", dir, "branch", "--set-upstream-to="+remote+"/"+branch, branch)
	return err
}

func (d *ShellDriver) refExists(ctx context.Context, dir, ref string) bool {
	_, err := d.run(ctx, "rev-parse", false, "-C", dir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// ParsePorcelain maps `git status --porcelain=v1 -z` output onto A/M/D/?.
// Renames and copies count as additions of the new path.
func ParsePorcelain(out string) []Change {
	var changes []Change
	records := strings.Split(out, "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 {
			continue
		}
		xy, path := rec[:2], rec[3:]

		var code StatusCode
		switch {
		case xy == "??":
			code = StatusUntracked
		case xy == "!!":
			continue
		case strings.ContainsAny(xy, "RC"):
			code = StatusAdded
			i++ // the next record is the source path
		case strings.Contains(xy, "A"):
			code = StatusAdded
		case strings.Contains(xy, "D"):
			code = StatusDeleted
		default:
			code = StatusModified
		}
		changes = append(changes, Change{Code: code, Path: path})
	}
	return changes
}

// run executes git with args. network marks operations that talk to a
// remote; those get the credential helper when a token is configured.
func (d *ShellDriver) run(ctx context.Context, op string, network bool, args ...string) (string, error) {
	logger := logging.GetLogger("git.shell")

	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	if network && d.token != "" {
		cmd.Env = append(cmd.Env, tokenEnv+"="+d.token)
		cmd.Args = insertGitFlags(cmd.Args,
			"-c", "credential.helper=",
			"-c", `credential.helper=!f() { echo "username=x-access-token"; echo "password=$`+tokenEnv+`"; }; f`,
		)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Trace().Strs("args", args).Msg("Running git")
	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if ctx.Err() != nil {
		return "", errors.Wrapf(ctx.Err(), errors.ErrCancelled, "git %s cancelled", op)
	}

	output := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
	output = redact(output, d.token)
	code := errors.ErrGitFailure
	if isConflict(output) {
		code = errors.ErrMergeConflict
	}
	logger.Debug().Str("op", op).Str("output", output).Err(err).Msg("git failed")
	return "", errors.Wrapf(err, code, "git %s failed: %s", op, firstLine(output)).
		WithDetail("op", op).
		WithDetail("output", output)
}

// insertGitFlags inserts flags immediately after the "git" command name,
// before the subcommand.
func insertGitFlags(args []string, flags ...string) []string {
	if len(args) == 0 {
		return flags
	}
	result := make([]string, 0, len(args)+len(flags))
	result = append(result, args[0])
	result = append(result, flags...)
	result = append(result, args[1:]...)
	return result
}

func isConflict(output string) bool {
	return strings.Contains(output, "CONFLICT") ||
		strings.Contains(output, "Merge conflict") ||
		strings.Contains(output, "could not apply")
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
