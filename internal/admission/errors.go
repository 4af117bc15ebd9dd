package admission

import (
	"fmt"
	"time"

	"llamagate/internal/engine"
)

// overloadedError signals a full queue for 503 mapping.
type overloadedError struct{ depth int }

func (e overloadedError) Error() string {
	return fmt.Sprintf("server too busy: queue of %d is full", e.depth)
}

// IsOverloaded reports whether err indicates backpressure rejection.
func IsOverloaded(err error) bool {
	_, ok := err.(overloadedError)
	return ok
}

// engineNotReadyError signals an engine that is loading or failed.
type engineNotReadyError struct{ state engine.State }

func (e engineNotReadyError) Error() string {
	return "engine not ready: state is " + string(e.state)
}

// IsEngineNotReady reports whether err indicates a not-yet-loaded or failed
// engine.
func IsEngineNotReady(err error) bool {
	_, ok := err.(engineNotReadyError)
	return ok
}

// queueTimeoutError signals a request that waited out its queue budget.
type queueTimeoutError struct{ wait time.Duration }

func (e queueTimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %s in queue", e.wait)
}

// IsQueueTimeout reports whether err indicates a queue-wait timeout.
func IsQueueTimeout(err error) bool {
	_, ok := err.(queueTimeoutError)
	return ok
}

// engineError wraps a generation failure from the engine.
type engineError struct{ cause error }

func (e engineError) Error() string { return "engine error: " + e.cause.Error() }
func (e engineError) Unwrap() error { return e.cause }

// IsEngineError reports whether err wraps a generation failure.
func IsEngineError(err error) bool {
	_, ok := err.(engineError)
	return ok
}
