// pkg/paths/resolver_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: Real filesystem (t.TempDir) for symlink tests
// PURPOSE: Test home expansion, home-relative classification, symlink chains and containment

package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Expand(t *testing.T) {
	r := paths.NewResolver("/home/alice")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr errors.ErrorCode
	}{
		{name: "tilde alone", input: "~", want: "/home/alice"},
		{name: "tilde slash", input: "~/.zshrc", want: "/home/alice/.zshrc"},
		{name: "absolute unchanged", input: "/etc/hosts", want: "/etc/hosts"},
		{name: "absolute cleaned", input: "/etc//x/../hosts", want: "/etc/hosts"},
		{name: "relative joins home", input: ".config/nvim", want: "/home/alice/.config/nvim"},
		{name: "empty", input: "", wantErr: errors.ErrInvalidInput},
		{name: "blank", input: "   ", wantErr: errors.ErrInvalidInput},
		{name: "other user", input: "~bob/.zshrc", wantErr: errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Expand(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_HomeRelative(t *testing.T) {
	r := paths.NewResolver("/home/alice")

	rel, ok := r.HomeRelative("/home/alice/.config/nvim")
	assert.True(t, ok)
	assert.Equal(t, ".config/nvim", rel)

	_, ok = r.HomeRelative("/home/alice")
	assert.False(t, ok, "home itself is not home-relative")

	_, ok = r.HomeRelative("/home/alicex/.zshrc")
	assert.False(t, ok)

	_, ok = r.HomeRelative("/etc/hosts")
	assert.False(t, ok)
}

func TestResolver_Relative(t *testing.T) {
	r := paths.NewResolver("/home/alice")

	rel, err := r.Relative("~/.zshrc")
	require.NoError(t, err)
	assert.Equal(t, ".zshrc", rel)

	_, err = r.Relative("/etc/hosts")
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))

	_, err = r.Relative("~")
	assert.True(t, errors.IsErrorCode(err, errors.ErrValidationFailed))
}

func TestResolver_ResolveSymlinkChain(t *testing.T) {
	dir := t.TempDir()
	r := paths.NewResolver(dir)

	target := filepath.Join(dir, "real")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

	// relative hop, then absolute hop
	require.NoError(t, os.Symlink("real", filepath.Join(dir, "a")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "b")))

	got, err := r.ResolveSymlinkChain(filepath.Join(dir, "b"), paths.DefaultMaxSymlinkDepth)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	t.Run("regular file resolves to itself", func(t *testing.T) {
		got, err := r.ResolveSymlinkChain(target, 0)
		require.NoError(t, err)
		assert.Equal(t, target, got)
	})

	t.Run("broken link returns missing target", func(t *testing.T) {
		link := filepath.Join(dir, "broken")
		require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), link))
		got, err := r.ResolveSymlinkChain(link, 0)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "missing"), got)
	})

	t.Run("two link cycle", func(t *testing.T) {
		require.NoError(t, os.Symlink("y", filepath.Join(dir, "x")))
		require.NoError(t, os.Symlink("x", filepath.Join(dir, "y")))
		_, err := r.ResolveSymlinkChain(filepath.Join(dir, "x"), paths.DefaultMaxSymlinkDepth)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSymlinkDepthExceeded))
	})

	t.Run("chain longer than limit", func(t *testing.T) {
		chain := filepath.Join(dir, "chain")
		require.NoError(t, os.MkdirAll(chain, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(chain, "l0"), []byte("end"), 0644))
		for i := 1; i <= 3; i++ {
			require.NoError(t, os.Symlink(filepath.Join(chain, "l"+string(rune('0'+i-1))), filepath.Join(chain, "l"+string(rune('0'+i)))))
		}
		_, err := r.ResolveSymlinkChain(filepath.Join(chain, "l3"), 2)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSymlinkDepthExceeded))

		got, err := r.ResolveSymlinkChain(filepath.Join(chain, "l3"), 3)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(chain, "l0"), got)
	})
}

func TestIsInside(t *testing.T) {
	dir := t.TempDir()
	storage := filepath.Join(dir, "storage")
	require.NoError(t, os.MkdirAll(filepath.Join(storage, "P"), 0755))

	assert.True(t, paths.IsInside(storage, storage))
	assert.True(t, paths.IsInside(filepath.Join(storage, "P"), storage))
	assert.True(t, paths.IsInside(filepath.Join(storage, "P", "not-yet"), storage))
	assert.False(t, paths.IsInside(storage+"-other", storage))
	assert.False(t, paths.IsInside(dir, storage))
	assert.True(t, paths.IsInside("/anything", "/"))

	// through a symlinked ancestor
	alias := filepath.Join(dir, "alias")
	require.NoError(t, os.Symlink(storage, alias))
	assert.True(t, paths.IsInside(filepath.Join(alias, "P"), storage))
}
