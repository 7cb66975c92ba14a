package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/metrics"
)

// ErrUnknown is returned for a name that was never registered.
var ErrUnknown = errors.New("unknown agent or team")

// Runnable is an agent or a team.
type Runnable interface {
	Name() string
	Run(ctx context.Context, in agent.RunInput) (*agent.RunResponse, error)
}

// Hook runs after every successful run.
type Hook func(ctx context.Context, name string, resp *agent.RunResponse) error

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent runs across all names.
	MaxConcurrentRuns int
	// PartialBufferSize sets the buffering of streamed fragments.
	PartialBufferSize int
	AfterRun          []Hook
	Logger            logging.Logger
	Metrics           *metrics.Metrics
}

// Runner dispatches runs to registered agents and teams. Public methods are
// safe for concurrent use.
type Runner struct {
	runnables map[string]Runnable
	sem       chan struct{}
	bufSize   int
	hooks     []Hook
	logger    logging.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	active map[string]map[string]context.CancelFunc // session -> handle -> cancel
	seq    int
}

// New constructs a Runner with optional overrides.
func New(runnables map[string]Runnable, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		PartialBufferSize: 64,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}

	rs := make(map[string]Runnable, len(runnables))
	for k, v := range runnables {
		rs[k] = v
	}

	return &Runner{
		runnables: rs,
		sem:       make(chan struct{}, opts.MaxConcurrentRuns),
		bufSize:   opts.PartialBufferSize,
		hooks:     opts.AfterRun,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		active:    make(map[string]map[string]context.CancelFunc),
	}
}

// Names lists the registered names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.runnables))
	for n := range r.runnables {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Get returns the runnable registered under name.
func (r *Runner) Get(name string) (Runnable, bool) {
	rn, ok := r.runnables[name]
	return rn, ok
}

// Run answers one message with the named agent or team. A missing session id
// is generated so the run can be cancelled through it.
func (r *Runner) Run(ctx context.Context, name string, in agent.RunInput) (*agent.RunResponse, error) {
	rn, ok := r.runnables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	if in.SessionID == "" {
		in.SessionID = core.NewID()
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	ctx, cancel := context.WithCancel(ctx)
	handle := r.track(in.SessionID, cancel)

	defer func() {
		cancel()
		r.untrack(in.SessionID, handle)
	}()

	start := time.Now()

	resp, err := rn.Run(ctx, in)
	if err != nil {
		r.logger.Warn("runner.run.failed", "name", name, "session_id", in.SessionID, "error", err.Error())
		return nil, err
	}

	r.metrics.ObserveRun(name, time.Since(start))

	for _, h := range r.hooks {
		if err := h(ctx, name, resp); err != nil {
			return resp, fmt.Errorf("after run hook: %w", err)
		}
	}

	return resp, nil
}

// Result is the outcome of a streamed run.
type Result struct {
	Response *agent.RunResponse
	Err      error
}

// Stream starts a run in the background. Fragments arrive on the first
// channel, which is closed before the single Result is delivered.
func (r *Runner) Stream(ctx context.Context, name string, in agent.RunInput) (<-chan string, <-chan Result) {
	partials := make(chan string, r.bufSize)
	done := make(chan Result, 1)

	in.OnPartial = func(s string) {
		select {
		case partials <- s:
		case <-ctx.Done():
		}
	}

	go func() {
		resp, err := r.Run(ctx, name, in)
		close(partials)
		done <- Result{Response: resp, Err: err}
		close(done)
	}()

	return partials, done
}

// Cancel stops every in-flight run of a session and reports how many there were.
func (r *Runner) Cancel(sessionID string) int {
	r.mu.Lock()
	runs := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()

	for _, cancel := range runs {
		cancel()
	}

	if len(runs) > 0 {
		r.logger.Info("runner.cancel", "session_id", sessionID, "runs", len(runs))
	}

	return len(runs)
}

// Active reports the number of in-flight runs of a session.
func (r *Runner) Active(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.active[sessionID])
}

func (r *Runner) track(sessionID string, cancel context.CancelFunc) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	handle := fmt.Sprintf("%d", r.seq)

	if r.active[sessionID] == nil {
		r.active[sessionID] = map[string]context.CancelFunc{}
	}

	r.active[sessionID][handle] = cancel

	return handle
}

func (r *Runner) untrack(sessionID, handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := r.active[sessionID]
	if runs == nil {
		return
	}

	delete(runs, handle)

	if len(runs) == 0 {
		delete(r.active, sessionID)
	}
}
