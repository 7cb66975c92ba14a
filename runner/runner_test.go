package runner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/model"
)

type blocking struct {
	started chan string
	running atomic.Int32
	peak    atomic.Int32
}

func (b *blocking) Name() string { return "blocking" }

func (b *blocking) Run(ctx context.Context, in agent.RunInput) (*agent.RunResponse, error) {
	n := b.running.Add(1)
	defer b.running.Add(-1)

	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}

	b.started <- in.SessionID
	<-ctx.Done()

	return nil, ctx.Err()
}

func TestRunner_RunAndHooks(t *testing.T) {
	mock := model.NewMockModel("mock", "test")

	a, err := agent.New(agent.Options{Name: "echo", Model: mock})
	require.NoError(t, err)

	var hooked []string

	r := New(map[string]Runnable{"echo": a}, func(o *Options) {
		o.AfterRun = []Hook{func(_ context.Context, name string, resp *agent.RunResponse) error {
			hooked = append(hooked, name+":"+resp.Content)
			return nil
		}}
	})

	resp, err := r.Run(context.Background(), "echo", agent.RunInput{Message: "hi", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", resp.Content)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, []string{"echo:Mock response to: hi"}, hooked)
	assert.Equal(t, []string{"echo"}, r.Names())

	_, err = r.Run(context.Background(), "nope", agent.RunInput{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestRunner_HookError(t *testing.T) {
	a, err := agent.New(agent.Options{Name: "echo", Model: model.NewMockModel("mock", "test")})
	require.NoError(t, err)

	r := New(map[string]Runnable{"echo": a}, func(o *Options) {
		o.AfterRun = []Hook{func(context.Context, string, *agent.RunResponse) error { return errors.New("disk full") }}
	})

	resp, err := r.Run(context.Background(), "echo", agent.RunInput{Message: "hi"})
	assert.ErrorContains(t, err, "disk full")
	assert.NotNil(t, resp)
}

func TestRunner_CancelSession(t *testing.T) {
	b := &blocking{started: make(chan string, 2)}
	r := New(map[string]Runnable{"b": b})

	errs := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			_, err := r.Run(context.Background(), "b", agent.RunInput{Message: "x", SessionID: "s1"})
			errs <- err
		}()
	}

	<-b.started
	<-b.started

	assert.Equal(t, 2, r.Active("s1"))
	assert.Equal(t, 2, r.Cancel("s1"))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, context.Canceled)
	}

	assert.Equal(t, 0, r.Cancel("s1"))
}

func TestRunner_ConcurrencyLimit(t *testing.T) {
	b := &blocking{started: make(chan string, 3)}
	r := New(map[string]Runnable{"b": b}, func(o *Options) { o.MaxConcurrentRuns = 1 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 3)

	for _, s := range []string{"s1", "s2", "s3"} {
		go func() {
			_, _ = r.Run(ctx, "b", agent.RunInput{Message: "x", SessionID: s})
			done <- struct{}{}
		}()
	}

	first := <-b.started

	select {
	case s := <-b.started:
		t.Fatalf("second run %s started while %s holds the only slot", s, first)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()

	for i := 0; i < 3; i++ {
		<-done
	}

	assert.Equal(t, int32(1), b.peak.Load())
}

func TestRunner_Stream(t *testing.T) {
	mock := model.NewMockModel("mock", "test")

	a, err := agent.New(agent.Options{Name: "echo", Model: mock})
	require.NoError(t, err)

	r := New(map[string]Runnable{"echo": a})

	partials, done := r.Stream(context.Background(), "echo", agent.RunInput{Message: "abc"})

	var sb strings.Builder
	for p := range partials {
		sb.WriteString(p)
	}

	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, "Mock response to: abc", res.Response.Content)
	assert.Equal(t, "Mock response to: abc", sb.String())
}

func TestRunner_ObservesRunDurationOnce(t *testing.T) {
	m := metrics.New()

	a, err := agent.New(agent.Options{Name: "echo", Model: model.NewMockModel("mock", "test"), Metrics: m})
	require.NoError(t, err)

	r := New(map[string]Runnable{"echo": a}, func(o *Options) { o.Metrics = m })

	_, err = r.Run(context.Background(), "echo", agent.RunInput{Message: "hi"})
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var samples uint64

	for _, mf := range families {
		if mf.GetName() != "agno_run_duration_seconds" {
			continue
		}

		for _, metric := range mf.GetMetric() {
			samples += metric.GetHistogram().GetSampleCount()
		}
	}

	assert.Equal(t, uint64(1), samples)
}
