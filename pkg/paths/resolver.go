package paths

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// DefaultMaxSymlinkDepth bounds symlink resolution; a cycle always hits it.
const DefaultMaxSymlinkDepth = 20

// Resolver classifies paths relative to one home directory.
type Resolver struct {
	home string
	fs   types.FS
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithFS makes the resolver inspect links through fsys instead of the OS.
func WithFS(fsys types.FS) ResolverOption {
	return func(r *Resolver) {
		r.fs = fsys
	}
}

// NewResolver creates a resolver anchored at home
func NewResolver(home string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		home: filepath.Clean(home),
		fs:   filesystem.NewOS(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Home returns the home directory the resolver is anchored at
func (r *Resolver) Home() string {
	return r.home
}

// Expand turns user input into an absolute path. A leading ~ or ~/ maps to
// home, absolute paths are only cleaned, and other relative input is taken
// as relative to home.
func (r *Resolver) Expand(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}
	if strings.ContainsRune(input, 0) {
		return "", errors.New(errors.ErrInvalidInput, "path contains null bytes")
	}

	switch {
	case input == "~":
		return r.home, nil
	case strings.HasPrefix(input, "~/"):
		return filepath.Join(r.home, input[2:]), nil
	case strings.HasPrefix(input, "~"):
		return "", errors.Newf(errors.ErrInvalidInput, "cannot expand %q: only the current user's home is supported", input)
	case filepath.IsAbs(input):
		return filepath.Clean(input), nil
	default:
		return filepath.Join(r.home, input), nil
	}
}

// HomeRelative returns abs relative to home using forward slashes. Home
// itself and anything outside it are not home-relative.
func (r *Resolver) HomeRelative(abs string) (string, bool) {
	rel, err := filepath.Rel(r.home, filepath.Clean(abs))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Relative expands input and requires the result to sit strictly inside home.
func (r *Resolver) Relative(input string) (string, error) {
	abs, err := r.Expand(input)
	if err != nil {
		return "", err
	}
	rel, ok := r.HomeRelative(abs)
	if !ok {
		return "", errors.Newf(errors.ErrValidationFailed, "%s is not inside your home directory (%s)", abs, r.home).
			WithDetail("path", abs)
	}
	return rel, nil
}

// ResolveSymlinkChain follows p through at most maxDepth links. Relative link
// targets are resolved against the directory of the link. When the chain ends
// at a missing path, that path is returned without error so callers can tell
// a broken link from a loop.
func (r *Resolver) ResolveSymlinkChain(p string, maxDepth int) (string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSymlinkDepth
	}

	current := filepath.Clean(p)
	for hops := 0; ; hops++ {
		info, err := r.fs.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return current, nil
			}
			return "", errors.IO(err, "lstat", current)
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return current, nil
		}
		if hops >= maxDepth {
			return "", errors.Newf(errors.ErrSymlinkDepthExceeded,
				"too many levels of symbolic links resolving %s (limit %d)", p, maxDepth).
				WithDetail("path", p)
		}

		target, err := r.fs.Readlink(current)
		if err != nil {
			return "", errors.IO(err, "readlink", current)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
	}
}

// IsInside reports whether child equals ancestor or lies beneath it, after
// both are canonicalized.
func (r *Resolver) IsInside(child, ancestor string) bool {
	return IsInside(child, ancestor)
}

// IsInside is the resolver-independent form of Resolver.IsInside.
func IsInside(child, ancestor string) bool {
	c := canonical(child)
	a := canonical(ancestor)
	if c == a {
		return true
	}
	if a == string(filepath.Separator) {
		return strings.HasPrefix(c, a)
	}
	return strings.HasPrefix(c, a+string(filepath.Separator))
}

// canonical evaluates symlinks where the path exists. For a path that does
// not exist yet, the longest existing prefix is evaluated and the rest is
// appended, so /tmp/x/new and /private/tmp/x compare correctly on macOS.
func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	var tail []string
	dir := abs
	for {
		parent := filepath.Dir(dir)
		tail = append([]string{filepath.Base(dir)}, tail...)
		if parent == dir {
			return abs
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
		dir = parent
	}
}
