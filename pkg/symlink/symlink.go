// Package symlink installs and removes the home symlinks that point into the
// storage root.
package symlink

import (
	"path/filepath"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Engine creates, verifies, and removes managed links
type Engine struct {
	fs          types.FS
	storageRoot string
	resolver    *paths.Resolver
}

// NewEngine creates an engine for links into storageRoot
func NewEngine(fsys types.FS, storageRoot string, resolver *paths.Resolver) *Engine {
	return &Engine{
		fs:          fsys,
		storageRoot: filepath.Clean(storageRoot),
		resolver:    resolver,
	}
}

// StorageRoot returns the root managed links must point into
func (e *Engine) StorageRoot() string {
	return e.storageRoot
}

// Install makes homePath a symlink to storageTarget. Whatever sits at
// homePath is removed first; anything that is not already a managed link
// must have been backed up by the caller. A link that already resolves to
// storageTarget is left alone.
func (e *Engine) Install(homePath, storageTarget string) error {
	logger := logging.GetLogger("symlink")

	if _, err := e.fs.Stat(storageTarget); err != nil {
		return errors.Wrapf(err, errors.ErrNotFound, "storage copy %s does not exist", storageTarget).
			WithDetail("path", storageTarget)
	}

	if filesystem.IsSymlink(e.fs, homePath) {
		if current, err := e.resolver.ResolveSymlinkChain(homePath, paths.DefaultMaxSymlinkDepth); err == nil &&
			samePath(current, storageTarget) {
			logger.Debug().Str("path", homePath).Msg("Link already in place")
			return nil
		}
	}

	if err := e.fs.MkdirAll(filepath.Dir(homePath), 0755); err != nil {
		return errors.IO(err, "mkdir", filepath.Dir(homePath))
	}

	if filesystem.Exists(e.fs, homePath) {
		if err := e.fs.RemoveAll(homePath); err != nil {
			return errors.IO(err, "remove", homePath)
		}
	}

	if err := e.fs.Symlink(storageTarget, homePath); err != nil {
		return errors.IO(err, "symlink", homePath).WithDetail("target", storageTarget)
	}

	resolved, err := e.resolver.ResolveSymlinkChain(homePath, paths.DefaultMaxSymlinkDepth)
	if err != nil || !samePath(resolved, storageTarget) {
		_ = e.fs.Remove(homePath)
		if err != nil {
			return err
		}
		return errors.Newf(errors.ErrIO, "link %s resolves to %s, expected %s", homePath, resolved, storageTarget).
			WithDetail("op", "verify").
			WithDetail("path", homePath)
	}

	logger.Debug().Str("path", homePath).Str("target", storageTarget).Msg("Installed link")
	return nil
}

// Uninstall removes the link at homePath and copies storageSource back in
// its place. A regular entry at homePath is never deleted; in that case
// nothing is copied either.
func (e *Engine) Uninstall(homePath, storageSource string) error {
	logger := logging.GetLogger("symlink")

	if filesystem.Exists(e.fs, homePath) {
		if !filesystem.IsSymlink(e.fs, homePath) {
			logger.Warn().Str("path", homePath).Msg("Not a symlink, leaving it in place")
			return nil
		}
		if err := e.fs.Remove(homePath); err != nil {
			return errors.IO(err, "remove", homePath)
		}
	}

	if !filesystem.Exists(e.fs, storageSource) {
		logger.Warn().Str("path", storageSource).Msg("Nothing in storage to restore")
		return nil
	}
	if err := filesystem.CopyFollow(e.fs, storageSource, homePath); err != nil {
		return errors.IO(err, "copy", homePath).WithDetail("source", storageSource)
	}

	logger.Debug().Str("path", homePath).Str("source", storageSource).Msg("Restored from storage")
	return nil
}

// Remove deletes the link at homePath without restoring anything. A regular
// entry is left alone.
func (e *Engine) Remove(homePath string) error {
	if !filesystem.IsSymlink(e.fs, homePath) {
		return nil
	}
	if err := e.fs.Remove(homePath); err != nil {
		return errors.IO(err, "remove", homePath)
	}
	return nil
}

// IsManaged reports whether path is a link resolving into the storage root.
func (e *Engine) IsManaged(path string) bool {
	target, ok := e.Target(path)
	if !ok {
		return false
	}
	return paths.IsInside(target, e.storageRoot)
}

// Target returns where the link at path finally resolves to.
func (e *Engine) Target(path string) (string, bool) {
	if !filesystem.IsSymlink(e.fs, path) {
		return "", false
	}
	target, err := e.resolver.ResolveSymlinkChain(path, paths.DefaultMaxSymlinkDepth)
	if err != nil {
		return "", false
	}
	return target, true
}

// PointsTo reports whether path is a link resolving to target.
func (e *Engine) PointsTo(path, target string) bool {
	resolved, ok := e.Target(path)
	return ok && samePath(resolved, target)
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b) || (paths.IsInside(a, b) && paths.IsInside(b, a))
}
