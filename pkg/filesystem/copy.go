package filesystem

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/shaneholloman/dotstate/pkg/types"
)

// Exists reports whether anything, including a dangling symlink, sits at path.
func Exists(fsys types.FS, path string) bool {
	_, err := fsys.Lstat(path)
	return err == nil
}

// IsSymlink reports whether path is itself a symbolic link.
func IsSymlink(fsys types.FS, path string) bool {
	info, err := fsys.Lstat(path)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// Copy copies src to dst. Directories are copied recursively, symlinks are
// recreated as links rather than followed, and permission bits are kept.
// Any existing entry at dst is left to the caller; Copy fails on the first
// error instead of skipping entries.
func Copy(fsys types.FS, src, dst string) error {
	info, err := fsys.Lstat(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyEntry(fsys, src, dst, info)
}

// CopyFollow is Copy for a src that may itself be a symlink: the top-level
// link is resolved and its content copied, while links nested inside a
// copied directory are still recreated as links.
func CopyFollow(fsys types.FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyEntry(fsys, src, dst, info)
}

func copyEntry(fsys types.FS, src, dst string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := fsys.Readlink(src)
		if err != nil {
			return err
		}
		return fsys.Symlink(target, dst)

	case info.IsDir():
		if err := fsys.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return err
		}
		entries, err := fsys.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			childSrc := filepath.Join(src, entry.Name())
			childInfo, err := fsys.Lstat(childSrc)
			if err != nil {
				return err
			}
			if err := copyEntry(fsys, childSrc, filepath.Join(dst, entry.Name()), childInfo); err != nil {
				return err
			}
		}
		return nil

	case info.Mode().IsRegular():
		data, err := fsys.ReadFile(src)
		if err != nil {
			return err
		}
		return fsys.WriteFile(dst, data, info.Mode().Perm())

	default:
		return &fs.PathError{Op: "copy", Path: src, Err: errors.New("unsupported file type")}
	}
}
