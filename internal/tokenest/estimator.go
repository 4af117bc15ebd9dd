// Package tokenest approximates token counts without invoking the model.
// The heuristic is deliberately cheap and deliberately pessimistic: admission
// decisions downstream assume the estimate does not undercount by more than a
// small margin, since undercounting risks blowing the engine's real context
// window.
package tokenest

import "strings"

// Estimator approximates the token count of arbitrary text. Implementations
// must be pure and side-effect free; Estimate runs on every request.
type Estimator interface {
	Estimate(text string) int
}

const (
	// charsPerToken is the classic rule of thumb for llama-family BPE.
	charsPerToken = 4
	// tokensPerWord biases the word-based estimate upward; subword splits
	// mean one word is usually more than one token.
	tokensPerWord = 1.3
)

// Heuristic estimates tokens from character and word counts, taking whichever
// is larger. Dense prose tracks chars/4; code and punctuation-heavy text is
// caught by the word path.
type Heuristic struct{}

// NewHeuristic returns the default estimator.
func NewHeuristic() Heuristic { return Heuristic{} }

func (Heuristic) Estimate(text string) int {
	if text == "" {
		return 0
	}
	byChars := (len(text) + charsPerToken - 1) / charsPerToken
	byWords := int(float64(len(strings.Fields(text))) * tokensPerWord)
	if byWords > byChars {
		return byWords
	}
	return byChars
}
