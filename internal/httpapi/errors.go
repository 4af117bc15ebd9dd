package httpapi

import (
	"encoding/json"
	"net/http"

	"llamagate/internal/admission"
	"llamagate/internal/budget"
	"llamagate/pkg/types"
)

// statusForError maps admission outcomes to HTTP status codes. The core
// packages know nothing about HTTP; this is the only place the mapping
// lives.
func statusForError(err error) int {
	switch {
	case budget.IsBudgetExceeded(err):
		return http.StatusRequestEntityTooLarge
	case admission.IsOverloaded(err):
		return http.StatusServiceUnavailable
	case admission.IsEngineNotReady(err):
		return http.StatusServiceUnavailable
	case admission.IsQueueTimeout(err):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// outcomeLabel names the admission outcome for metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case budget.IsBudgetExceeded(err):
		return "budget_exceeded"
	case admission.IsOverloaded(err):
		return "overloaded"
	case admission.IsEngineNotReady(err):
		return "engine_not_ready"
	case admission.IsQueueTimeout(err):
		return "timeout"
	case admission.IsEngineError(err):
		return "engine_error"
	default:
		return "error"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
