package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamagate/internal/admission"
	"llamagate/internal/engine"
	"llamagate/internal/health"
	"llamagate/internal/prompt"
	"llamagate/internal/tokenest"
	"llamagate/pkg/types"
)

// NewMux wires the HTTP boundary over the controller, health tracker, and
// engine slot. Status-code mapping for admission outcomes lives here, not
// in the core.
func NewMux(ctrl *admission.Controller, probe *health.Tracker, slot *engine.Slot) http.Handler {
	s := &server{
		ctrl:  ctrl,
		probe: probe,
		slot:  slot,
		est:   tokenest.NewHeuristic(),
		start: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/response", s.handleResponse)
	r.Post("/generate", s.handleGenerate)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

type server struct {
	ctrl  *admission.Controller
	probe *health.Tracker
	slot  *engine.Slot
	est   tokenest.Estimator
	start time.Time
}

// decodeJSON enforces content type and body limits for JSON endpoints.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// handleGenerate godoc
// @Summary      Generate a completion for a plain prompt
// @Accept       json
// @Produce      json
// @Param        request body types.GenerateRequest true "prompt and generation budget"
// @Success      200 {object} types.GenerateResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      408 {object} types.ErrorResponse
// @Failure      413 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /generate [post]
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.MaxNewTokens < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_new_tokens must be >= 0")
		return
	}
	s.submit(w, r, admission.NewRequest(req.Prompt, req.MaxNewTokens))
}

// handleResponse godoc
// @Summary      Generate the bot's next chat turn
// @Accept       json
// @Produce      json
// @Param        request body types.ResponseRequest true "bot profile and conversation history"
// @Success      200 {object} types.GenerateResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      408 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /response [post]
func (s *server) handleResponse(w http.ResponseWriter, r *http.Request) {
	var req types.ResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BotProfile.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "bot_profile.name is required")
		return
	}
	cfg := s.ctrl.Config()
	msgs := prompt.BuildMessages(req)
	msgs = prompt.TruncateHistory(msgs, cfg.Window, s.est)
	text := prompt.Render(msgs)
	s.submit(w, r, admission.NewRequest(text, chatGenerationBudget(cfg.Window)))
}

// chatGenerationBudget reserves a quarter of the window for the reply.
func chatGenerationBudget(window int) int {
	n := window / 4
	if n < 1 {
		n = 1
	}
	return n
}

func (s *server) submit(w http.ResponseWriter, r *http.Request, req admission.Request) {
	start := time.Now()
	logStart(r, req.ID)

	joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.ctrl.Submit(joinedCtx, req)
	observeAdmission(s.ctrl.Stats(), err, time.Since(start))
	if err != nil {
		// Client disconnect or shutdown: nothing useful to write.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			logEnd(r, req.ID, 499, time.Since(start), err)
			return
		}
		status := statusForError(err)
		writeJSONError(w, status, err.Error())
		logEnd(r, req.ID, status, time.Since(start), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	resp := types.GenerateResponse{
		Response:         res.Text,
		RequestID:        req.ID,
		Truncated:        res.Plan.Truncated,
		KeptPromptTokens: res.Plan.KeptPromptTokens,
		GenerationTokens: res.Plan.AvailableGenerationTokens,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logEnd(r, req.ID, http.StatusInternalServerError, time.Since(start), err)
		return
	}
	logEnd(r, req.ID, http.StatusOK, time.Since(start), nil)
}

// handleStatus godoc
// @Summary      Detailed service status
// @Produce      json
// @Success      200 {object} types.StatusResponse
// @Router       /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.probe.Snapshot()
	stats := s.ctrl.Stats()
	cfg := s.ctrl.Config()
	resp := types.StatusResponse{
		EngineState:    string(snap.EngineState),
		Inflight:       snap.Inflight,
		QueueDepth:     snap.QueueDepth,
		MaxQueueDepth:  cfg.QueueDepth,
		Concurrency:    cfg.Concurrency,
		ContextWindow:  cfg.Window,
		Model:          s.slot.ModelPath(),
		LastError:      s.slot.LastError(),
		AdmittedTotal:  stats.Admitted,
		RejectedTotal:  stats.Rejected,
		TimeoutsTotal:  stats.Timeouts,
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// handleHealthz godoc
// @Summary      Liveness probe
// @Success      200 {string} string "ok"
// @Failure      503 {string} string "failed"
// @Router       /healthz [get]
func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.probe.Live() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("failed"))
}

// handleReadyz godoc
// @Summary      Readiness probe
// @Success      200 {string} string "ready"
// @Failure      503 {string} string "loading"
// @Router       /readyz [get]
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.probe.Ready() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(string(s.probe.Snapshot().EngineState)))
}
