package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llamagate/internal/budget"
	"llamagate/internal/engine"
	"llamagate/internal/tokenest"
)

// blockingEngine serves generations one by one under test control and
// records how many ran and how many ran concurrently.
type blockingEngine struct {
	release    chan struct{} // each receive completes one generation
	calls      atomic.Int64
	concurrent atomic.Int64
	maxSeen    atomic.Int64
	lastPrompt sync.Map // call index -> prompt
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{release: make(chan struct{})}
}

func (e *blockingEngine) Load(ctx context.Context, modelPath string) error { return nil }

func (e *blockingEngine) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	n := e.calls.Add(1)
	cur := e.concurrent.Add(1)
	for {
		prev := e.maxSeen.Load()
		if cur <= prev || e.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	e.lastPrompt.Store(n, prompt)
	defer e.concurrent.Add(-1)
	select {
	case <-e.release:
		return fmt.Sprintf("gen-%d", n), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func readySlot(t *testing.T, eng engine.Engine) *engine.Slot {
	t.Helper()
	s := engine.NewSlot(eng, "m.gguf")
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func waitQueued(t *testing.T, c *Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().Queued == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queued=%d, want %d", c.Stats().Queued, want)
}

func waitInflight(t *testing.T, c *Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Stats().Inflight == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("inflight=%d, want %d", c.Stats().Inflight, want)
}

func TestSubmit_EngineNotReadyWhileLoading(t *testing.T) {
	s := engine.NewSlot(newBlockingEngine(), "m.gguf") // never loaded
	c := New(Config{Window: 1024}, tokenest.NewHeuristic(), s)
	_, err := c.Submit(context.Background(), NewRequest("hi", 16))
	require.Error(t, err)
	require.True(t, IsEngineNotReady(err))
	st := c.Stats()
	require.Zero(t, st.Queued, "queue must stay untouched")
	require.Zero(t, st.Admitted)
	require.Equal(t, uint64(1), st.Rejected)
}

func TestSubmit_BudgetExceededBeforeQueueing(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 100}, tokenest.NewHeuristic(), readySlot(t, eng))
	_, err := c.Submit(context.Background(), NewRequest("hi", 500))
	require.True(t, budget.IsBudgetExceeded(err), "got %v", err)
	require.Zero(t, eng.calls.Load(), "engine must not be consulted")
}

func TestSubmit_ZeroTokensIsNoOp(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 100}, tokenest.NewHeuristic(), readySlot(t, eng))
	res, err := c.Submit(context.Background(), NewRequest("hi", 0))
	require.NoError(t, err)
	require.True(t, res.Plan.NoOp())
	require.Empty(t, res.Text)
	require.Zero(t, eng.calls.Load())
}

// Three simultaneous arrivals at C=1,Q=2: one admitted, two queued, and a
// fourth rejected as overloaded.
func TestSubmit_OverloadAtQueueCapacity(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 1024, QueueDepth: 2, Concurrency: 1, MaxQueueWait: 5 * time.Second},
		tokenest.NewHeuristic(), readySlot(t, eng))

	results := make(chan error, 3)
	submit := func() {
		_, err := c.Submit(context.Background(), NewRequest("hello", 16))
		results <- err
	}
	go submit()
	waitInflight(t, c, 1)
	go submit()
	waitQueued(t, c, 1)
	go submit()
	waitQueued(t, c, 2)

	// Fourth arrival: queue full, immediate rejection.
	_, err := c.Submit(context.Background(), NewRequest("hello", 16))
	require.True(t, IsOverloaded(err), "got %v", err)

	for i := 0; i < 3; i++ {
		eng.release <- struct{}{}
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, <-results)
	}
	require.Equal(t, int64(3), eng.calls.Load())
	require.Equal(t, uint64(3), c.Stats().Admitted)
}

func TestSubmit_QueueWaitTimeout(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 1024, QueueDepth: 2, Concurrency: 1, MaxQueueWait: 30 * time.Millisecond},
		tokenest.NewHeuristic(), readySlot(t, eng))

	blockerDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), NewRequest("blocker", 16))
		blockerDone <- err
	}()
	waitInflight(t, c, 1)

	_, err := c.Submit(context.Background(), NewRequest("waiter", 16))
	require.True(t, IsQueueTimeout(err), "got %v", err)
	require.Equal(t, int64(1), eng.calls.Load(), "timed-out request must never reach the engine")
	require.Equal(t, uint64(1), c.Stats().Timeouts)

	eng.release <- struct{}{}
	require.NoError(t, <-blockerDone)
}

func TestSubmit_CancelWhileQueued(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 1024, QueueDepth: 2, Concurrency: 1, MaxQueueWait: 5 * time.Second},
		tokenest.NewHeuristic(), readySlot(t, eng))

	blockerDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), NewRequest("blocker", 16))
		blockerDone <- err
	}()
	waitInflight(t, c, 1)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, NewRequest("waiter", 16))
		waiterDone <- err
	}()
	waitQueued(t, c, 1)
	cancel()
	err := <-waiterDone
	require.ErrorIs(t, err, context.Canceled)
	waitQueued(t, c, 0)
	require.Zero(t, c.Stats().Timeouts, "cancellation is not a timeout")

	eng.release <- struct{}{}
	require.NoError(t, <-blockerDone)
	require.Equal(t, int64(1), eng.calls.Load())
}

func TestSubmit_FIFOAmongQueued(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 1024, QueueDepth: 4, Concurrency: 1, MaxQueueWait: 5 * time.Second},
		tokenest.NewHeuristic(), readySlot(t, eng))

	go func() {
		_, _ = c.Submit(context.Background(), NewRequest("blocker", 16))
	}()
	waitInflight(t, c, 1)

	order := make(chan int, 4)
	for i := 1; i <= 4; i++ {
		i := i
		go func() {
			res, err := c.Submit(context.Background(), NewRequest("waiter", 16))
			if err == nil && res.Text != "" {
				order <- i
			}
		}()
		waitQueued(t, c, i)
		// Give the freshly queued goroutine time to enroll in the
		// semaphore wait list before the next one starts.
		time.Sleep(5 * time.Millisecond)
	}
	// Release the blocker plus the four waiters, one at a time.
	for i := 0; i < 5; i++ {
		eng.release <- struct{}{}
	}
	for want := 1; want <= 4; want++ {
		require.Equal(t, want, <-order, "queued requests must be served in arrival order")
	}
}

func TestSubmit_ConcurrencyCeiling(t *testing.T) {
	eng := newBlockingEngine()
	c := New(Config{Window: 1024, QueueDepth: 16, Concurrency: 2, MaxQueueWait: 5 * time.Second},
		tokenest.NewHeuristic(), readySlot(t, eng))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Submit(context.Background(), NewRequest("load", 16))
		}()
	}
	// Drain all eight generations.
	for i := 0; i < 8; i++ {
		eng.release <- struct{}{}
	}
	wg.Wait()
	require.LessOrEqual(t, eng.maxSeen.Load(), int64(2), "no more than C concurrent generations")
	require.Equal(t, int64(8), eng.calls.Load())
}

func TestSubmit_TruncatedPromptReachesEngineWithinBudget(t *testing.T) {
	eng := newBlockingEngine()
	est := tokenest.NewHeuristic()
	c := New(Config{Window: 64, GenFloor: 8, QueueDepth: 1, Concurrency: 1, MaxQueueWait: time.Second},
		est, readySlot(t, eng))

	longPrompt := strings.Repeat("old text ", 200) + "latest instruction"
	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		res, err = c.Submit(context.Background(), NewRequest(longPrompt, 32))
		close(done)
	}()
	eng.release <- struct{}{}
	<-done
	require.NoError(t, err)
	require.True(t, res.Plan.Truncated)
	require.LessOrEqual(t, res.Plan.KeptPromptTokens+res.Plan.AvailableGenerationTokens, 64)

	v, ok := eng.lastPrompt.Load(int64(1))
	require.True(t, ok)
	seen := v.(string)
	require.True(t, strings.HasSuffix(seen, "latest instruction"), "front must be dropped, suffix kept")
	require.LessOrEqual(t, est.Estimate(seen), res.Plan.KeptPromptTokens)
}

func TestSubmit_EngineErrorPropagatesAndFailsEngine(t *testing.T) {
	failing := &failingEngine{err: errors.New("cuda oom")}
	s := readySlot(t, failing)
	c := New(Config{Window: 1024}, tokenest.NewHeuristic(), s)
	_, err := c.Submit(context.Background(), NewRequest("hi", 16))
	require.True(t, IsEngineError(err), "got %v", err)
	require.ErrorContains(t, err, "cuda oom")
	require.Equal(t, engine.StateFailed, s.State())

	// All subsequent admissions fail fast until external restart.
	_, err = c.Submit(context.Background(), NewRequest("hi", 16))
	require.True(t, IsEngineNotReady(err), "got %v", err)
}

type failingEngine struct{ err error }

func (f *failingEngine) Load(ctx context.Context, modelPath string) error { return nil }
func (f *failingEngine) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "", f.err
}

func TestNewRequest_UniqueIDs(t *testing.T) {
	a, b := NewRequest("x", 1), NewRequest("x", 1)
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.Arrival.IsZero())
}

func TestConfig_Defaults(t *testing.T) {
	c := New(Config{}, tokenest.NewHeuristic(), engine.NewSlot(&failingEngine{}, "m.gguf"))
	cfg := c.Config()
	require.Equal(t, defaultWindow, cfg.Window)
	require.Equal(t, defaultQueueDepth, cfg.QueueDepth)
	require.Equal(t, defaultConcurrency, cfg.Concurrency)
	require.Equal(t, defaultMaxWait, cfg.MaxQueueWait)
}
