package filesync

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed candidates.yaml
var candidatesYAML []byte

// Known is one entry of the built-in list of well-known dotfiles
type Known struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
	Group       string `yaml:"-"`
}

type knownGroup struct {
	Group   string  `yaml:"group"`
	Entries []Known `yaml:"entries"`
}

var (
	knownOnce sync.Once
	knownList []Known
	knownErr  error
)

// Candidates returns the built-in list of well-known dotfiles in display order.
func Candidates() []Known {
	knownOnce.Do(func() {
		var groups []knownGroup
		if knownErr = yaml.Unmarshal(candidatesYAML, &groups); knownErr != nil {
			return
		}
		for _, g := range groups {
			for _, k := range g.Entries {
				k.Group = g.Group
				knownList = append(knownList, k)
			}
		}
	})
	if knownErr != nil {
		// the list is compiled in; a parse failure is a build defect
		panic("filesync: invalid embedded candidates.yaml: " + knownErr.Error())
	}
	out := make([]Known, len(knownList))
	copy(out, knownList)
	return out
}

// FindCandidate looks up a built-in entry by path
func FindCandidate(path string) (Known, bool) {
	for _, k := range Candidates() {
		if k.Path == path {
			return k, true
		}
	}
	return Known{}, false
}
