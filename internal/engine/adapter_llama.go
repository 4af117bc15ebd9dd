//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine runs inference in-process via go-llama.cpp.
type llamaEngine struct {
	ctxSize int
	threads int

	mu    sync.Mutex
	model *llama.LLama
}

// NewLlama returns the in-process llama.cpp engine. ctxSize must match the
// context window the budgeter plans against.
func NewLlama(ctxSize, threads int) Engine {
	return &llamaEngine{ctxSize: ctxSize, threads: threads}
}

func (e *llamaEngine) Load(ctx context.Context, modelPath string) error {
	if strings.TrimSpace(modelPath) == "" {
		return errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := llama.New(modelPath, llama.SetContext(e.ctxSize))
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.model = m
	e.mu.Unlock()
	return nil
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// One Predict at a time: the in-process context is not reentrant, and
	// the token callback is model-global.
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.model
	if m == nil {
		return "", errors.New("model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Predict blocks until the generation finishes; cancellation takes
	// effect at the per-token callback.
	m.SetTokenCallback(func(token string) bool {
		return ctx.Err() == nil
	})
	opts := []llama.PredictOption{
		llama.SetTokens(maxTokens),
	}
	if e.threads > 0 {
		opts = append(opts, llama.SetThreads(e.threads))
	}
	out, err := m.Predict(prompt, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return out, nil
}
