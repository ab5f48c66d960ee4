package setup

import (
	"context"
	"sync"
	"time"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/github"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"github.com/shaneholloman/dotstate/pkg/manifest"
	"github.com/shaneholloman/dotstate/pkg/types"
)

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	API github.API
	Git git.Driver
	FS  types.FS
	// Manifests opens the manifest store of a storage root.
	Manifests func(root string) *manifest.Store
	Clock     func() time.Time
	Delays    Delays
	// WebHost is the clone host, github.DefaultWebHost when empty.
	WebHost string
}

// stepResult is what a worker reports back for one state.
type stepResult struct {
	next   State
	data   Result
	status string
	delay  time.Duration
	err    error
}

// stepHandle receives the single result of a worker. Dropping it discards
// the result; the worker still runs to completion.
type stepHandle struct {
	ch chan stepResult
}

func (h *stepHandle) poll() (stepResult, bool) {
	select {
	case r := <-h.ch:
		return r, true
	default:
		return stepResult{}, false
	}
}

// Orchestrator runs the setup state machine.
type Orchestrator struct {
	inputs Inputs
	deps   Deps

	mu        sync.Mutex
	state     State
	status    string
	data      Result
	readyAt   time.Time
	handle    *stepHandle
	cancelled bool
	err       error
}

// New creates an orchestrator in the Connecting state.
func New(inputs Inputs, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.WebHost == "" {
		deps.WebHost = github.DefaultWebHost
	}
	if inputs.DefaultBranch == "" {
		inputs.DefaultBranch = "main"
	}
	return &Orchestrator{
		inputs: inputs,
		deps:   deps,
		state:  Connecting,
		status: "Connecting to GitHub...",
		data: Result{
			RepoName:  inputs.RepoName,
			LocalPath: inputs.LocalPath,
		},
	}
}

// Tick advances the machine by at most one step and returns the state after
// the tick. It never blocks on the step actions.
func (o *Orchestrator) Tick(now time.Time) State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Terminal() {
		return o.state
	}

	if o.handle != nil {
		res, done := o.handle.poll()
		if !done {
			return o.state
		}
		o.handle = nil
		if o.cancelled {
			o.fail(errors.New(errors.ErrCancelled, "setup cancelled"))
			return o.state
		}
		o.apply(res, now)
		return o.state
	}

	if o.cancelled {
		o.fail(errors.New(errors.ErrCancelled, "setup cancelled"))
		return o.state
	}

	if now.Before(o.readyAt) {
		return o.state
	}

	o.handle = o.start(o.state, o.data)
	return o.state
}

func (o *Orchestrator) start(state State, data Result) *stepHandle {
	h := &stepHandle{ch: make(chan stepResult, 1)}
	go func() {
		h.ch <- o.run(context.Background(), state, data)
	}()
	return h
}

func (o *Orchestrator) apply(res stepResult, now time.Time) {
	logger := logging.GetLogger("setup")
	if res.err != nil {
		logger.Error().Err(res.err).Str("state", o.state.String()).Msg("Setup step failed")
		o.fail(res.err)
		return
	}
	logger.Debug().
		Str("from", o.state.String()).
		Str("to", res.next.String()).
		Dur("delay", res.delay).
		Msg("Setup transition")

	o.data = res.data
	o.state = res.next
	o.status = res.status
	o.readyAt = now.Add(res.delay)
}

func (o *Orchestrator) fail(err error) {
	o.state = Failed
	o.err = err
	o.status = errors.UserMessage(err)
}

// Cancel requests cancellation. An in-flight step finishes first and the
// next tick moves to Failed with a CANCELLED error.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled = true
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns the message to display for the current state.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Result returns what setup has established so far.
func (o *Orchestrator) Result() Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.data
	r.Profiles = append([]string(nil), o.data.Profiles...)
	return r
}

// Err returns the failure once the machine is in Failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Run drives Tick every interval until a terminal state or until ctx is done,
// which cancels the run. onStatus is called whenever the status changes.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, onStatus func(State, string)) (Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	report := func(state State) {
		if status := o.Status(); status != last && onStatus != nil {
			last = status
			onStatus(state, status)
		}
	}

	for {
		select {
		case <-ctx.Done():
			o.Cancel()
		default:
		}

		state := o.Tick(o.deps.Clock())
		report(state)
		if state.Terminal() {
			return o.Result(), o.Err()
		}
		<-ticker.C
	}
}
