// Package scaffold creates groups of directories and files as a single
// synthfs pipeline, rolling back what was created when any step fails.
package scaffold

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/logging"
)

// Batch collects creations. Entries that already exist are skipped, so
// running the same batch twice is harmless.
type Batch struct {
	sfs     *synthfs.SynthFS
	ops     []synthfs.Operation
	planned map[string]bool
	skipped []string
}

// New returns an empty batch
func New() *Batch {
	return &Batch{
		sfs:     synthfs.New(),
		planned: map[string]bool{},
	}
}

// Dir adds a directory creation. Missing parents must be added first.
func (b *Batch) Dir(path string, mode fs.FileMode) *Batch {
	path = filepath.Clean(path)
	if b.exists(path) {
		return b
	}
	id := fmt.Sprintf("mkdir_%d_%s", len(b.ops), filepath.Base(path))
	b.ops = append(b.ops, b.sfs.CreateDirWithID(id, path, mode))
	b.planned[path] = true
	return b
}

// File adds a file creation
func (b *Batch) File(path string, data []byte, mode fs.FileMode) *Batch {
	path = filepath.Clean(path)
	if b.exists(path) {
		return b
	}
	id := fmt.Sprintf("write_%d_%s", len(b.ops), filepath.Base(path))
	b.ops = append(b.ops, b.sfs.CreateFileWithID(id, path, data, mode))
	b.planned[path] = true
	return b
}

func (b *Batch) exists(path string) bool {
	if b.planned[path] {
		return true
	}
	if _, err := os.Lstat(path); err == nil {
		b.skipped = append(b.skipped, path)
		return true
	}
	return false
}

// Len is the number of pending creations
func (b *Batch) Len() int {
	return len(b.ops)
}

// Skipped lists paths left alone because they already existed
func (b *Batch) Skipped() []string {
	return append([]string(nil), b.skipped...)
}

// Run applies the batch on the real filesystem
func (b *Batch) Run(ctx context.Context) error {
	logger := logging.GetLogger("scaffold")
	if len(b.ops) == 0 {
		logger.Debug().Msg("Nothing to create")
		return nil
	}

	fsys := synthfs.NewPathAwareFileSystem(filesystem.NewOSFileSystem("/"), "/").WithAbsolutePaths()
	options := synthfs.DefaultPipelineOptions()
	options.RollbackOnError = true

	logger.Debug().Int("operationCount", len(b.ops)).Msg("Executing scaffold")
	if _, err := synthfs.RunWithOptions(ctx, fsys, options, b.ops...); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.ErrCancelled, "scaffold cancelled")
		}
		return errors.Wrap(err, errors.ErrIO, "failed to create files").WithDetail("op", "scaffold")
	}
	return nil
}
