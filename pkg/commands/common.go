package commands

import (
	"fmt"
	"strings"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/manifest"
)

// CommonAddOptions selects the path to share and the profiles giving it up
type CommonAddOptions struct {
	Path string
	// Cleanup lists every profile that holds the path; defaults to the active one
	Cleanup []string
}

// CommonRemoveOptions selects the path to take out of common
type CommonRemoveOptions struct {
	Path string
}

// CommonResult reports a move into or out of common
type CommonResult struct {
	Path string   `json:"path" yaml:"path"`
	From []string `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
}

func (r CommonResult) String() string {
	return fmt.Sprintf("Moved ~/%s from %s into %s", r.Path, strings.Join(r.From, ", "), r.To)
}

// CommonAdd moves a path synced in profiles into common, deleting the
// profile copies. Every holding profile must be listed.
func CommonAdd(env *Env, opts CommonAddOptions) (*CommonResult, error) {
	rel, err := commonPath(env, opts.Path)
	if err != nil {
		return nil, err
	}

	cleanup := opts.Cleanup
	if len(cleanup) == 0 {
		active, err := env.RequireActiveProfile()
		if err != nil {
			return nil, err
		}
		cleanup = []string{active}
	}

	if err := env.Sync().MoveToCommon(opts.Path, cleanup); err != nil {
		return nil, err
	}
	return &CommonResult{Path: rel, From: cleanup, To: manifest.CommonScope}, nil
}

// CommonRemove moves a path out of common into the active profile
func CommonRemove(env *Env, opts CommonRemoveOptions) (*CommonResult, error) {
	active, err := env.RequireActiveProfile()
	if err != nil {
		return nil, err
	}
	rel, err := commonPath(env, opts.Path)
	if err != nil {
		return nil, err
	}

	if err := env.Sync().MoveFromCommon(opts.Path); err != nil {
		return nil, err
	}
	return &CommonResult{Path: rel, From: []string{manifest.CommonScope}, To: active}, nil
}

func commonPath(env *Env, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New(errors.ErrInvalidInput, "a path is required")
	}
	if err := env.RequireStorage(); err != nil {
		return "", err
	}
	rel, err := env.Resolver.Relative(input)
	if err != nil {
		return "", err
	}
	return manifest.NormalizeRel(rel)
}
