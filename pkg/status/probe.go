// Package status reports the state of the storage repository relative to
// its remote: uncommitted changes and how far the local branch is ahead of
// or behind upstream.
//
// A Probe runs git on a worker goroutine. Callers poll the returned Handle
// without blocking, so a render loop never waits on the network.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/shaneholloman/dotstate/pkg/errors"
	"github.com/shaneholloman/dotstate/pkg/git"
	"github.com/shaneholloman/dotstate/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultMinInterval is how long a snapshot is reused without force.
const DefaultMinInterval = 30 * time.Second

// Snapshot is one observation of the storage repository.
type Snapshot struct {
	Uncommitted []git.Change `json:"uncommitted" yaml:"uncommitted"`
	Ahead       int          `json:"ahead" yaml:"ahead"`
	Behind      int          `json:"behind" yaml:"behind"`
	// Stale is set when the remote could not be fetched; Behind is then 0.
	Stale   bool      `json:"stale" yaml:"stale"`
	Err     error     `json:"-" yaml:"-"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
	TakenAt time.Time `json:"taken_at" yaml:"taken_at"`
}

// Clean reports whether there is nothing to commit, push or pull.
func (s Snapshot) Clean() bool {
	return s.Err == nil && len(s.Uncommitted) == 0 && s.Ahead == 0 && s.Behind == 0
}

// Option configures a Probe
type Option func(*Probe)

// WithRemote names the remote to compare against (default origin).
func WithRemote(remote string) Option {
	return func(p *Probe) { p.remote = remote }
}

// WithBranch names the branch to compare (default main).
func WithBranch(branch string) Option {
	return func(p *Probe) { p.branch = branch }
}

// WithFetch controls whether the remote is fetched before comparing.
func WithFetch(fetch bool) Option {
	return func(p *Probe) { p.fetch = fetch }
}

// WithMinInterval sets how long a snapshot is reused without force.
func WithMinInterval(d time.Duration) Option {
	return func(p *Probe) { p.minInterval = d }
}

// WithClock replaces time.Now for snapshot timestamps and the throttle.
func WithClock(clock func() time.Time) Option {
	return func(p *Probe) { p.clock = clock }
}

// Probe takes snapshots of one repository. At most one run is in flight.
type Probe struct {
	driver      git.Driver
	dir         string
	remote      string
	branch      string
	fetch       bool
	minInterval time.Duration
	clock       func() time.Time

	mu       sync.Mutex
	last     *Snapshot
	inflight *Handle
	invalid  bool
}

// NewProbe creates a probe over the repository at dir.
func NewProbe(driver git.Driver, dir string, opts ...Option) *Probe {
	p := &Probe{
		driver:      driver,
		dir:         dir,
		remote:      git.DefaultRemote,
		branch:      "main",
		fetch:       true,
		minInterval: DefaultMinInterval,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle delivers the result of one probe run.
type Handle struct {
	ch chan Snapshot

	mu   sync.Mutex
	done bool
	snap Snapshot
}

// Poll returns the snapshot once it is ready. It never blocks.
func (h *Handle) Poll() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return h.snap, true
	}
	select {
	case s := <-h.ch:
		h.done = true
		h.snap = s
		return s, true
	default:
		return Snapshot{}, false
	}
}

// Wait blocks until the snapshot is ready or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Snapshot, error) {
	if s, ok := h.Poll(); ok {
		return s, nil
	}
	select {
	case s := <-h.ch:
		h.mu.Lock()
		h.done = true
		h.snap = s
		h.mu.Unlock()
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, errors.Wrap(ctx.Err(), errors.ErrCancelled, "status probe cancelled")
	}
}

func readyHandle(s Snapshot) *Handle {
	return &Handle{done: true, snap: s}
}

// Start begins a probe run. Within the minimum interval, and unless forced
// or invalidated, the cached snapshot is returned at once. While a run is in
// flight the same handle is returned.
func (p *Probe) Start(ctx context.Context, force bool) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inflight != nil {
		return p.inflight
	}
	if !force && !p.needsRefreshLocked() {
		return readyHandle(*p.last)
	}

	h := &Handle{ch: make(chan Snapshot, 1)}
	p.inflight = h
	p.invalid = false

	go func() {
		snap := p.take(ctx)

		p.mu.Lock()
		p.last = &snap
		p.inflight = nil
		p.mu.Unlock()

		h.ch <- snap
	}()
	return h
}

// Invalidate makes the next Start run git even within the interval.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid = true
}

// NeedsRefresh reports whether a non-forced Start would run git.
func (p *Probe) NeedsRefresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsRefreshLocked()
}

func (p *Probe) needsRefreshLocked() bool {
	if p.last == nil || p.invalid {
		return true
	}
	return p.clock().Sub(p.last.TakenAt) >= p.minInterval
}

// Last returns the most recent snapshot, if any.
func (p *Probe) Last() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Snapshot{}, false
	}
	return *p.last, true
}

// take runs git status, then fetch, then the ahead/behind count. The group
// is limited to one goroutine so only one git process touches the repository
// at a time; a status failure cancels the remote comparison.
func (p *Probe) take(ctx context.Context) Snapshot {
	logger := logging.GetLogger("status")
	done := logging.LogOperationStart(logger, "status probe")
	defer done()

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)

	g.Go(func() error {
		changes, err := p.driver.Status(gctx, p.dir)
		if err != nil {
			return err
		}
		snap.Uncommitted = changes
		return nil
	})

	var ahead, behind int
	var stale bool
	g.Go(func() error {
		if gctx.Err() != nil {
			return nil
		}
		if p.fetch {
			if err := p.driver.Fetch(gctx, p.dir, p.remote, p.branch); err != nil {
				logger.Debug().Err(err).Msg("Fetch failed, remote comparison is stale")
				stale = true
			}
		}
		a, b, err := p.driver.AheadBehind(gctx, p.dir, p.remote, p.branch)
		if err != nil {
			logger.Debug().Err(err).Msg("No upstream to compare against")
			stale = true
			return nil
		}
		ahead, behind = a, b
		return nil
	})

	if err := g.Wait(); err != nil {
		snap.Err = err
		snap.Error = errors.UserMessage(err)
	}
	snap.Ahead = ahead
	snap.Behind = behind
	snap.Stale = stale
	if stale {
		snap.Behind = 0
	}
	snap.TakenAt = p.clock()

	logger.Debug().
		Int("uncommitted", len(snap.Uncommitted)).
		Int("ahead", snap.Ahead).
		Int("behind", snap.Behind).
		Bool("stale", snap.Stale).
		Msg("Status snapshot taken")
	return snap
}
