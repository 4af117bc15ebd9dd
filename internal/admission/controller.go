// Package admission is the request admission and context-budget controller:
// it sits between the HTTP boundary and the engine slot, applying a bounded
// FIFO queue with a concurrency ceiling and the token-budget policy, so
// excess load is rejected or queued instead of degrading GPU throughput.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"llamagate/internal/budget"
	"llamagate/internal/engine"
	"llamagate/internal/tokenest"
)

// Request is one admission candidate. Immutable once submitted.
type Request struct {
	ID           string
	Prompt       string
	MaxNewTokens int
	Arrival      time.Time
}

// NewRequest stamps a prompt with an opaque id and arrival time.
func NewRequest(prompt string, maxNewTokens int) Request {
	return Request{
		ID:           uuid.NewString(),
		Prompt:       prompt,
		MaxNewTokens: maxNewTokens,
		Arrival:      time.Now(),
	}
}

// Result is a successful (possibly truncated, possibly no-op) outcome.
type Result struct {
	Text string
	Plan budget.ContextPlan
}

// Controller owns all admission state. Counters are private and mutated
// only here; health and status read them through Stats.
type Controller struct {
	cfg     Config
	est     tokenest.Estimator
	planner budget.Planner
	slot    *engine.Slot

	// occupancy is held from acceptance to completion: capacity C+Q means
	// C executing plus Q waiting. A full channel is an immediate
	// overload rejection, never a block.
	occupancy chan struct{}
	// gen grants the actual generation slots. Waiters are served FIFO.
	gen *semaphore.Weighted

	mu       sync.Mutex
	queued   int
	inflight int
	admitted uint64
	rejected uint64
	timeouts uint64
}

// New builds a Controller over the given engine slot.
func New(cfg Config, est tokenest.Estimator, slot *engine.Slot) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:       cfg,
		est:       est,
		planner:   budget.Planner{Window: cfg.Window, GenFloor: cfg.GenFloor},
		slot:      slot,
		occupancy: make(chan struct{}, cfg.Concurrency+cfg.QueueDepth),
		gen:       semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Config returns the resolved configuration.
func (c *Controller) Config() Config { return c.cfg }

// Submit runs one request through budget planning, admission, and the
// engine. It blocks while the request waits in the bounded queue and while
// the generation executes; all outcomes are terminal and returned
// synchronously.
func (c *Controller) Submit(ctx context.Context, req Request) (Result, error) {
	// Fail fast against a dead or loading engine; the queue stays
	// untouched.
	if st := c.slot.State(); !st.Loaded() {
		c.countRejected()
		return Result{}, engineNotReadyError{state: st}
	}

	plan, err := c.planner.Plan(c.est.Estimate(req.Prompt), req.MaxNewTokens)
	if err != nil {
		c.countRejected()
		return Result{}, err
	}
	if plan.NoOp() {
		// Nothing to generate; the engine is never consulted.
		return Result{Plan: plan}, nil
	}

	// Reserve an occupancy token without blocking: a full queue is an
	// immediate rejection, not a wait.
	select {
	case c.occupancy <- struct{}{}:
	default:
		c.countRejected()
		return Result{}, overloadedError{depth: c.cfg.QueueDepth}
	}
	defer func() { <-c.occupancy }()

	c.mu.Lock()
	c.queued++
	c.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxQueueWait)
	err = c.gen.Acquire(waitCtx, 1)
	cancel()

	c.mu.Lock()
	c.queued--
	c.mu.Unlock()

	if err != nil {
		// Caller cancellation wins over the queue-wait budget.
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.mu.Lock()
		c.timeouts++
		c.mu.Unlock()
		return Result{}, queueTimeoutError{wait: c.cfg.MaxQueueWait}
	}
	defer c.gen.Release(1)

	// The engine may have failed while this request was queued.
	if st := c.slot.State(); !st.Loaded() {
		c.countRejected()
		return Result{}, engineNotReadyError{state: st}
	}

	c.mu.Lock()
	c.inflight++
	c.admitted++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}()

	prompt := req.Prompt
	if plan.Truncated {
		prompt = budget.TruncateFront(prompt, plan.KeptPromptTokens, c.est)
	}
	out, genErr := c.slot.Generate(ctx, prompt, plan.AvailableGenerationTokens)
	if genErr != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if engine.IsNotLoaded(genErr) {
			return Result{}, engineNotReadyError{state: c.slot.State()}
		}
		return Result{}, engineError{cause: genErr}
	}
	return Result{Text: out, Plan: plan}, nil
}

func (c *Controller) countRejected() {
	c.mu.Lock()
	c.rejected++
	c.mu.Unlock()
}

// Stats is a read-only view of the controller counters.
type Stats struct {
	Queued   int
	Inflight int
	Admitted uint64
	Rejected uint64
	Timeouts uint64
}

// Stats snapshots the live counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Queued:   c.queued,
		Inflight: c.inflight,
		Admitted: c.admitted,
		Rejected: c.rejected,
		Timeouts: c.timeouts,
	}
}
