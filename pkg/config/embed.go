package config

import (
	_ "embed"

	"github.com/knadh/koanf/parsers/toml"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// defaults is the koanf provider for the embedded defaults file, the
// lowest layer of every Load.
type defaults struct{}

func (defaults) ReadBytes() ([]byte, error) { return defaultConfig, nil }

func (defaults) Read() (map[string]interface{}, error) {
	return toml.Parser().Unmarshal(defaultConfig)
}
