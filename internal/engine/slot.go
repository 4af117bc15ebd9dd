package engine

import (
	"context"
	"sync"
	"time"
)

// Slot is the single-owner handle for the engine instance. Only the
// admission controller invokes Generate; everything else reads state.
type Slot struct {
	mu        sync.Mutex
	state     State
	inflight  int
	lastErr   string
	failedAt  time.Time
	eng       Engine
	modelPath string
}

// NewSlot wraps eng in loading state. Call Load to bring it up.
func NewSlot(eng Engine, modelPath string) *Slot {
	return &Slot{state: StateLoading, eng: eng, modelPath: modelPath}
}

// Load brings the model into residence. Transitions loading->ready on
// success and loading->failed on error.
func (s *Slot) Load(ctx context.Context) error {
	if err := s.eng.Load(ctx, s.modelPath); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.state = StateReady
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

// Generate runs one generation against the engine. The caller must hold a
// generation slot from the admission controller; the slot only accounts for
// the ready<->busy transition and failure propagation.
func (s *Slot) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.mu.Lock()
	if !s.state.Loaded() {
		st := s.state
		s.mu.Unlock()
		return "", notLoadedError{state: st}
	}
	s.inflight++
	s.state = StateBusy
	s.mu.Unlock()

	out, err := s.eng.Generate(ctx, prompt, maxTokens)

	s.mu.Lock()
	s.inflight--
	if s.state == StateBusy && s.inflight == 0 {
		s.state = StateReady
	}
	s.mu.Unlock()

	if err != nil {
		// Client disconnects and deadline hits are the caller's problem;
		// anything else from the engine is treated as unrecoverable.
		if ctx.Err() == nil {
			s.fail(err)
		}
		return "", err
	}
	return out, nil
}

func (s *Slot) fail(err error) {
	s.mu.Lock()
	if s.state != StateFailed {
		s.failedAt = time.Now()
	}
	s.state = StateFailed
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailedSince returns the time of the transition to failed, or the zero
// time if the engine is not failed.
func (s *Slot) FailedSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return time.Time{}
	}
	return s.failedAt
}

// LastError returns the most recent engine error message, if any.
func (s *Slot) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ModelPath returns the artifact path this slot loads from.
func (s *Slot) ModelPath() string { return s.modelPath }

// notLoadedError is returned when Generate is called against an engine that
// is not resident. The admission gate normally prevents this.
type notLoadedError struct{ state State }

func (e notLoadedError) Error() string { return "engine not loaded: state is " + string(e.state) }

// IsNotLoaded reports whether err indicates a generate call against an
// unloaded engine.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}
