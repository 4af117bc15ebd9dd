package types

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate. Zero requests a budget
	// check only; no generation is performed.
	// example: 128
	MaxNewTokens int `json:"max_new_tokens" example:"128"`
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	// Speaker of the turn (e.g., user, assistant).
	// example: user
	Turn string `json:"turn" example:"user"`
	// Text of the turn.
	// example: Hey, how was your day?
	Message string `json:"message" example:"Hey, how was your day?"`
}

// BotProfile describes the persona the model should answer as.
type BotProfile struct {
	// Display name of the bot. Names ending in ".f" are treated as female.
	// example: Mia.f
	Name string `json:"name" example:"Mia.f"`
	// Comma-separated appearance facts; trailing facts are folded into the
	// system prompt.
	// example: blond,tall,green eyes,loves hiking
	Appearance string `json:"appearance" example:"blond,tall,green eyes,loves hiking"`
	// Optional system prompt override. Empty selects the built-in persona.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// UserProfile identifies the human side of the conversation.
type UserProfile struct {
	// Display name of the user.
	// example: Alex
	Name string `json:"name" example:"Alex"`
}

// ResponseRequest is the payload for POST /response (chat completion).
type ResponseRequest struct {
	BotProfile  BotProfile    `json:"bot_profile"`
	UserProfile UserProfile   `json:"user_profile"`
	Context     []ChatMessage `json:"context"`
}

// GenerateResponse is returned by POST /generate and POST /response.
type GenerateResponse struct {
	// Generated text. Empty for a zero-token (no-op) plan.
	Response string `json:"response"`
	// Opaque id assigned to this request.
	// example: 4f6c1f9e-3a93-4f0f-9c2b-6b4f0d1f8a77
	RequestID string `json:"request_id" example:"4f6c1f9e-3a93-4f0f-9c2b-6b4f0d1f8a77"`
	// True when the prompt was truncated from the front to fit the
	// context window.
	// example: false
	Truncated bool `json:"truncated" example:"false"`
	// Estimated prompt tokens kept after truncation.
	// example: 512
	KeptPromptTokens int `json:"kept_prompt_tokens" example:"512"`
	// Generation token budget granted to the engine.
	// example: 128
	GenerationTokens int `json:"generation_tokens" example:"128"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine lifecycle state (loading, ready, busy, failed).
	// example: ready
	EngineState string `json:"engine_state" example:"ready"`
	// Requests currently executing against the engine.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Requests currently waiting for a generation slot.
	// example: 2
	QueueDepth int `json:"queue_depth" example:"2"`
	// Maximum queued requests before backpressure triggers.
	// example: 5
	MaxQueueDepth int `json:"max_queue_depth" example:"5"`
	// Concurrency ceiling for the engine slot pool.
	// example: 1
	Concurrency int `json:"concurrency" example:"1"`
	// Context window in tokens (prompt + generation).
	// example: 1024
	ContextWindow int `json:"context_window" example:"1024"`
	// Model artifact path the engine was loaded from.
	Model string `json:"model,omitempty"`
	// Last engine error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Totals since process start.
	// example: 42
	AdmittedTotal uint64 `json:"admitted_total" example:"42"`
	// example: 3
	RejectedTotal uint64 `json:"rejected_total" example:"3"`
	// example: 1
	TimeoutsTotal uint64 `json:"timeouts_total" example:"1"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
