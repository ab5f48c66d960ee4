package filesystem

import (
	"io/fs"
	"os"
	"sort"

	"github.com/shaneholloman/dotstate/pkg/types"
	"github.com/spf13/afero"
)

// backend adapts an afero.Fs to types.FS. Stat, MkdirAll, Remove, RemoveAll
// and Rename come straight from the embedded Fs.
type backend struct {
	afero.Fs
}

// NewOS returns the real filesystem
func NewOS() types.FS {
	return &backend{Fs: afero.NewOsFs()}
}

// NewAferoFS wraps any afero backend. Links are only supported by backends
// implementing afero.Linker and afero.LinkReader; on the others Lstat
// degrades to Stat.
func NewAferoFS(fsys afero.Fs) types.FS {
	return &backend{Fs: fsys}
}

func (b *backend) ReadFile(name string) ([]byte, error) {
	info, err := b.Fs.Stat(name)
	if err != nil {
		return nil, err
	}
	// MemMapFs happily reads directories
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return afero.ReadFile(b.Fs, name)
}

func (b *backend) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return afero.WriteFile(b.Fs, name, data, perm)
}

func (b *backend) ReadDir(name string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(b.Fs, name)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (b *backend) Symlink(oldname, newname string) error {
	linker, ok := b.Fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: afero.ErrNoSymlink}
	}
	return linker.SymlinkIfPossible(oldname, newname)
}

func (b *backend) Readlink(name string) (string, error) {
	reader, ok := b.Fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
	}
	return reader.ReadlinkIfPossible(name)
}

func (b *backend) Lstat(name string) (fs.FileInfo, error) {
	lstater, ok := b.Fs.(afero.Lstater)
	if !ok {
		return b.Fs.Stat(name)
	}
	info, _, err := lstater.LstatIfPossible(name)
	return info, err
}
