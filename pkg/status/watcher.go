package status

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// Watcher invalidates a probe whenever the storage tree changes, so the next
// poll runs git instead of reusing a snapshot. The .git directory is ignored.
type Watcher struct {
	root  string
	probe *Probe
	fsw   *fsnotify.Watcher
}

// NewWatcher watches root and every directory below it except .git.
func NewWatcher(root string, probe *Probe) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIO, "cannot create filesystem watcher")
	}
	w := &Watcher{root: root, probe: probe, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.IO(err, "walk", p)
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.IO(err, "watch", p)
		}
		return nil
	})
}

func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == ".git" || strings.HasPrefix(rel, ".git/")
}

// Run consumes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logging.GetLogger("status")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories need their own watch
				if err := w.addTree(event.Name); err != nil {
					logger.Debug().Err(err).Str("path", event.Name).Msg("Cannot watch new entry")
				}
			}
			logger.Trace().Str("event", event.String()).Msg("Storage changed")
			w.probe.Invalidate()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
