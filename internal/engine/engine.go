// Package engine wraps the single GPU-resident inference engine behind a
// narrow contract and tracks its process-wide lifecycle state.
package engine

import "context"

// State is the engine lifecycle state.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateBusy    State = "busy"
	StateFailed  State = "failed"
)

// Loaded reports whether the engine has completed its bootstrap and can
// accept admissions (busy still counts as loaded).
func (s State) Loaded() bool { return s == StateReady || s == StateBusy }

// Engine is the narrow contract this service depends on. Load blocks until
// the model is resident; Generate blocks for the duration of one generation.
type Engine interface {
	Load(ctx context.Context, modelPath string) error
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
