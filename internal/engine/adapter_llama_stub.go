//go:build !llama

package engine

import (
	"context"
	"errors"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

var errLlamaNotBuilt = errors.New("llama support not built; rebuild with -tags=llama")

// NewLlama returns a stub engine when the binary was built without the
// llama tag. Load fails fast so readiness never flips on.
func NewLlama(ctxSize, threads int) Engine {
	return stubEngine{}
}

type stubEngine struct{}

func (stubEngine) Load(ctx context.Context, modelPath string) error {
	return errLlamaNotBuilt
}

func (stubEngine) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "", errLlamaNotBuilt
}
