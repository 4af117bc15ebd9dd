// Package health derives liveness and readiness from the engine's real
// load state and the admission queue, rather than bare process health.
package health

import (
	"time"

	"llamagate/internal/admission"
	"llamagate/internal/engine"
)

// defaultFailureGrace is how long a failed engine is tolerated before
// liveness flips and the orchestrator is invited to restart the process.
const defaultFailureGrace = 30 * time.Second

// Snapshot is the on-demand health projection. Never persisted.
type Snapshot struct {
	EngineState engine.State
	Inflight    int
	QueueDepth  int
}

// Tracker reads the slot and controller; it owns no mutable state itself,
// so snapshots are consistent and idempotent between transitions.
type Tracker struct {
	slot  *engine.Slot
	ctrl  *admission.Controller
	grace time.Duration
	now   func() time.Time
}

// NewTracker builds a Tracker with the given failure grace period;
// non-positive grace selects the default.
func NewTracker(slot *engine.Slot, ctrl *admission.Controller, grace time.Duration) *Tracker {
	if grace <= 0 {
		grace = defaultFailureGrace
	}
	return &Tracker{slot: slot, ctrl: ctrl, grace: grace, now: time.Now}
}

// Snapshot recomputes the health view from live counters.
func (t *Tracker) Snapshot() Snapshot {
	st := t.ctrl.Stats()
	return Snapshot{
		EngineState: t.slot.State(),
		Inflight:    st.Inflight,
		QueueDepth:  st.Queued,
	}
}

// Ready reports readiness: true iff the engine has completed its load and
// has not failed. A busy engine is loaded, hence ready for probe purposes.
func (t *Tracker) Ready() bool {
	return t.slot.State().Loaded()
}

// Live reports liveness: false only once the engine has been failed for
// longer than the grace period. A loading engine is always live, so
// orchestrators tolerate the bootstrap phase while still restarting a
// wedged process.
func (t *Tracker) Live() bool {
	failedAt := t.slot.FailedSince()
	if failedAt.IsZero() {
		return true
	}
	return t.now().Sub(failedAt) <= t.grace
}
