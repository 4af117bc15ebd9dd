// Package budget decides how a request's prompt and generation share the
// model's fixed context window.
package budget

import (
	"unicode/utf8"

	"llamagate/internal/tokenest"
)

// ContextPlan is the feasible prompt/generation split for one request.
// Invariant: KeptPromptTokens + AvailableGenerationTokens never exceeds the
// planner's context window.
type ContextPlan struct {
	KeptPromptTokens          int
	AvailableGenerationTokens int
	Truncated                 bool
}

// NoOp reports whether the plan requires no engine call.
func (p ContextPlan) NoOp() bool { return p.AvailableGenerationTokens == 0 }

// Planner computes context plans for a fixed window.
type Planner struct {
	// Window is the context window size in tokens (prompt + generation).
	Window int
	// GenFloor is the minimum generation budget granted to a viable
	// request; values below 1 are treated as 1.
	GenFloor int
}

func (pl Planner) floor() int {
	if pl.GenFloor < 1 {
		return 1
	}
	return pl.GenFloor
}

// Plan splits the window between promptTokens and requestedNew.
//
// A request whose generation budget alone exceeds the window is rejected:
// no amount of prompt truncation can make it viable. Otherwise the prompt is
// kept whole when it fits, and truncated from the front just enough to
// guarantee the generation floor when it does not. requestedNew of zero
// yields a no-op plan.
func (pl Planner) Plan(promptTokens, requestedNew int) (ContextPlan, error) {
	if requestedNew > pl.Window {
		return ContextPlan{}, budgetExceededError{requested: requestedNew, window: pl.Window}
	}
	if requestedNew == 0 {
		kept := promptTokens
		if kept > pl.Window {
			kept = pl.Window
		}
		return ContextPlan{
			KeptPromptTokens: kept,
			Truncated:        kept < promptTokens,
		}, nil
	}
	floor := pl.floor()
	if floor > requestedNew {
		floor = requestedNew
	}
	avail := pl.Window - promptTokens
	if avail >= floor {
		if avail > requestedNew {
			avail = requestedNew
		}
		return ContextPlan{
			KeptPromptTokens:          promptTokens,
			AvailableGenerationTokens: avail,
		}, nil
	}
	// Floor not satisfiable: drop the oldest prompt content until it is.
	kept := pl.Window - floor
	return ContextPlan{
		KeptPromptTokens:          kept,
		AvailableGenerationTokens: floor,
		Truncated:                 true,
	}, nil
}

// TruncateFront drops the oldest portion of text until est reports at most
// keepTokens, cutting at a rune boundary. The suffix nearest the user's final
// instruction is preserved. Uses the same estimator as the budget decision so
// the plan invariant survives truncation.
func TruncateFront(text string, keepTokens int, est tokenest.Estimator) string {
	if keepTokens <= 0 {
		return ""
	}
	if est.Estimate(text) <= keepTokens {
		return text
	}
	// The estimate grows with suffix length, so binary search the smallest
	// cut whose suffix fits.
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi) / 2
		if est.Estimate(text[runeStart(text, mid):]) <= keepTokens {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return text[runeStart(text, lo):]
}

// runeStart advances i to the next rune boundary at or after i.
func runeStart(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
