package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/shaneholloman/dotstate/pkg/types"
)

var tempCounter atomic.Uint64

// WriteFileAtomic writes data next to path under a temporary name and renames
// it into place, so readers see either the old content or the new, never a
// partial file.
func WriteFileAtomic(fsys types.FS, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp.%d-%d", filepath.Base(path), os.Getpid(), tempCounter.Add(1)))
	if err := fsys.WriteFile(tmp, data, perm); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return nil
}
