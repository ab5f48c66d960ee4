// Package backup takes timestamped sibling copies of home entries before
// dotstate overwrites them, and restores them on rollback.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/filesystem"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// TimestampFormat is the UTC layout used in backup names; the literal Z
// marks the zone.
const TimestampFormat = "20060102-150405Z"

// Marker separates the original name from the timestamp.
const Marker = ".bak."

// Store creates and restores backups
type Store struct {
	fs    types.FS
	clock func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now, for deterministic names in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a backup store over fsys
func New(fsys types.FS, opts ...Option) *Store {
	s := &Store{fs: fsys, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backup copies path to <path>.bak.<timestamp> and returns the backup path.
// It returns "" without error when backups are disabled or path is absent.
// An existing backup is never overwritten: repeated calls within one second
// get .1, .2, ... appended.
func (s *Store) Backup(path string, enabled bool) (string, error) {
	logger := logging.GetLogger("backup")
	if !enabled {
		return "", nil
	}
	if !filesystem.Exists(s.fs, path) {
		return "", nil
	}

	base := path + Marker + s.clock().UTC().Format(TimestampFormat)
	dest := base
	for n := 1; filesystem.Exists(s.fs, dest); n++ {
		dest = fmt.Sprintf("%s.%d", base, n)
	}

	if err := filesystem.Copy(s.fs, path, dest); err != nil {
		// leave nothing half-written behind
		_ = s.fs.RemoveAll(dest)
		return "", errors.IO(err, "backup", path).WithDetail("backup", dest)
	}

	logger.Info().Str("path", path).Str("backup", dest).Msg("Created backup")
	return dest, nil
}

// Restore replaces target with the contents of backupPath. The backup itself
// is kept.
func (s *Store) Restore(backupPath, target string) error {
	logger := logging.GetLogger("backup")

	if !filesystem.Exists(s.fs, backupPath) {
		return errors.Newf(errors.ErrNotFound, "backup %s does not exist", backupPath).
			WithDetail("path", backupPath)
	}
	if filesystem.Exists(s.fs, target) {
		if err := s.fs.RemoveAll(target); err != nil {
			return errors.IO(err, "remove", target)
		}
	}
	if err := filesystem.Copy(s.fs, backupPath, target); err != nil {
		return errors.IO(err, "restore", target).WithDetail("backup", backupPath)
	}

	logger.Info().Str("backup", backupPath).Str("target", target).Msg("Restored backup")
	return nil
}

// List returns the existing backups of path, oldest first.
func (s *Store) List(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + Marker

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO(err, "readdir", dir)
	}

	var backups []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, entry.Name())
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		return backupLess(backups[i], backups[j])
	})

	for i, name := range backups {
		backups[i] = filepath.Join(dir, name)
	}
	return backups, nil
}

// backupLess orders by timestamp, then by numeric collision suffix, so ".10"
// sorts after ".9".
func backupLess(a, b string) bool {
	ta, na := splitSuffix(a)
	tb, nb := splitSuffix(b)
	if ta != tb {
		return ta < tb
	}
	return na < nb
}

func splitSuffix(name string) (string, int) {
	idx := strings.LastIndex(name, Marker)
	stamp := name[idx+len(Marker):]
	parts := strings.SplitN(stamp, ".", 2)
	if len(parts) == 1 {
		return parts[0], 0
	}
	var n int
	if _, err := fmt.Sscanf(parts[1], "%d", &n); err != nil {
		return stamp, 0
	}
	return parts[0], n
}
