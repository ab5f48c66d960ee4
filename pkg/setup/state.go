// Package setup bootstraps remote-backed storage: it validates the token,
// clones or creates the repository, initializes a fresh working tree and
// discovers profiles.
//
// The Orchestrator is a state machine advanced by Tick. Each state shows a
// status message, waits out a minimum visible delay and runs one blocking
// action on a worker goroutine that the next ticks poll without blocking.
package setup

import "time"

// State is one step of the setup flow.
type State int

const (
	Connecting State = iota
	ValidatingToken
	CheckingRepo
	CloningRepo
	CreatingRepo
	InitializingRepo
	DiscoveringProfiles
	Complete
	Failed
)

var stateNames = map[State]string{
	Connecting:          "Connecting",
	ValidatingToken:     "ValidatingToken",
	CheckingRepo:        "CheckingRepo",
	CloningRepo:         "CloningRepo",
	CreatingRepo:        "CreatingRepo",
	InitializingRepo:    "InitializingRepo",
	DiscoveringProfiles: "DiscoveringProfiles",
	Complete:            "Complete",
	Failed:              "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == Complete || s == Failed
}

// Delays are the minimum visible durations applied after leaving a state.
type Delays struct {
	Connecting          time.Duration
	ValidatingToken     time.Duration
	CheckingRepoClone   time.Duration
	CheckingRepoCreate  time.Duration
	CloningRepo         time.Duration
	CreatingRepo        time.Duration
	InitializingRepo    time.Duration
	DiscoveringProfiles time.Duration
}

// DefaultDelays keeps each step on screen long enough to be read.
func DefaultDelays() Delays {
	return Delays{
		Connecting:          800 * time.Millisecond,
		ValidatingToken:     600 * time.Millisecond,
		CheckingRepoClone:   500 * time.Millisecond,
		CheckingRepoCreate:  600 * time.Millisecond,
		CloningRepo:         600 * time.Millisecond,
		CreatingRepo:        500 * time.Millisecond,
		InitializingRepo:    2000 * time.Millisecond,
		DiscoveringProfiles: 2000 * time.Millisecond,
	}
}

// DefaultProfile is created when neither the inputs nor the repository name one.
const DefaultProfile = "Personal"

// Inputs are what the user provides to setup.
type Inputs struct {
	Token         string
	RepoName      string
	Private       bool
	LocalPath     string
	DefaultBranch string
	ActiveProfile string
}

// Result is what a completed (or failed) setup leaves behind.
type Result struct {
	Owner     string   `json:"owner" yaml:"owner"`
	RepoName  string   `json:"repo_name" yaml:"repo_name"`
	LocalPath string   `json:"local_path" yaml:"local_path"`
	Profiles  []string `json:"profiles" yaml:"profiles"`
	// RepoExisted records what ValidatingToken found on the remote.
	RepoExisted bool `json:"repo_existed" yaml:"repo_existed"`
	// IsNewRepo is true when this run created the remote repository.
	IsNewRepo bool `json:"is_new_repo" yaml:"is_new_repo"`
	// CreatedDefault is true when discovery had to add the default profile.
	CreatedDefault bool `json:"created_default" yaml:"created_default"`
}
