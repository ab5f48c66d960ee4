// Package git is the narrow git surface dotstate needs: a Driver interface,
// a ShellDriver that runs the git binary, remote URL helpers, and the commit
// message generator.
package git

import "context"

// DefaultRemote is the remote name dotstate configures
const DefaultRemote = "origin"

// StatusCode classifies one working-tree change
type StatusCode string

const (
	StatusAdded     StatusCode = "A"
	StatusModified  StatusCode = "M"
	StatusDeleted   StatusCode = "D"
	StatusUntracked StatusCode = "?"
)

// Change is one entry of the working-tree status
type Change struct {
	Code StatusCode `json:"code" yaml:"code"`
	Path string     `json:"path" yaml:"path"`
}

// Driver performs git operations on a working tree. At most one call should
// be in flight per directory.
type Driver interface {
	Init(ctx context.Context, dir, branch string) error
	Clone(ctx context.Context, url, dir string) error
	IsRepo(ctx context.Context, dir string) bool
	RemoteURL(ctx context.Context, dir, name string) (string, error)
	SetRemote(ctx context.Context, dir, name, url string) error
	// CommitAll stages everything and commits; false means nothing changed.
	CommitAll(ctx context.Context, dir, msg string) (bool, error)
	Push(ctx context.Context, dir, remote, branch string) error
	Pull(ctx context.Context, dir, remote, branch string) error
	// PullRebase returns how many upstream commits were brought in.
	PullRebase(ctx context.Context, dir, remote, branch string) (int, error)
	Fetch(ctx context.Context, dir, remote, branch string) error
	AheadBehind(ctx context.Context, dir, remote, branch string) (int, int, error)
	Status(ctx context.Context, dir string) ([]Change, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
	SetUpstream(ctx context.Context, dir, remote, branch string) error
}
