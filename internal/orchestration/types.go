package orchestration

import (
	"context"
	"time"
)

// Message roles used in the session transcript.
const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Message is a single transcript entry. Name carries the speaker for
// participant contributions and is empty for plain assistant messages.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ParticipantSpec describes one team member requested for a run.
type ParticipantSpec struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// TurnInput is everything a participant sees when asked to speak.
type TurnInput struct {
	Task        string
	Plan        string
	Instruction string
	Transcript  []Message
}

// Participant is a named actor that produces one textual contribution per
// turn. Respond never fails: provider errors are folded into the returned
// text so the round loop can keep going and let stall detection react.
type Participant interface {
	Name() string
	Description() string
	Respond(ctx context.Context, input TurnInput) string
}

// ProgressLedger is the per-round structured verdict produced by the
// manager. It is created fresh each round and discarded after use.
type ProgressLedger struct {
	IsRequestSatisfied  bool   `json:"is_request_satisfied"`
	IsInLoop            bool   `json:"is_in_loop"`
	IsProgressBeingMade bool   `json:"is_progress_being_made"`
	NextSpeaker         string `json:"next_speaker"`
	Instruction         string `json:"instruction_or_question"`
}

// State describes where a run is in its lifecycle.
type State string

const (
	StatePlanning       State = "planning"
	StateRunning        State = "running"
	StateCompleted      State = "completed"
	StateMaxReset       State = "stopped_max_reset"
	StateMaxRound       State = "stopped_max_round"
	StateUnknownSpeaker State = "stopped_unknown_speaker"
)

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateMaxReset, StateMaxRound, StateUnknownSpeaker:
		return true
	}
	return false
}

// RunResult is the outcome of one orchestration run.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Task      string        `json:"task"`
	State     State         `json:"state"`
	Answer    string        `json:"answer"`
	Rounds    int           `json:"rounds"`
	Resets    int           `json:"resets"`
	Duration  time.Duration `json:"duration"`
	Cost      float64       `json:"cost"`
	Tokens    int64         `json:"tokens"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunOptions overrides the configured loop bounds for a single run. Zero
// values fall back to configuration (and for MaxResetCount, zero keeps the
// configured value, which may itself mean unbounded).
type RunOptions struct {
	MaxStallCount int `json:"max_stall_count,omitempty"`
	MaxRoundCount int `json:"max_round_count,omitempty"`
	MaxResetCount int `json:"max_reset_count,omitempty"`
}

// LLMProvider is the completion-service boundary. Implementations enforce a
// bounded per-call timeout and surface transport failures as errors.
type LLMProvider interface {
	// Generate generates text for a prompt using the given model.
	Generate(ctx context.Context, prompt string, system string, model string) (string, error)

	// GenerateWithTokens generates text and returns prompt/completion
	// token usage alongside it.
	GenerateWithTokens(ctx context.Context, prompt string, system string, model string) (string, int64, int64, error)

	// GetModelInfo returns information about a configured model.
	GetModelInfo(model string) (ModelInfo, error)

	// CalculateCost converts token usage into a dollar estimate.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo contains information about an LLM model
type ModelInfo struct {
	Name            string  `json:"name"`
	Provider        string  `json:"provider"`
	MaxTokens       int     `json:"max_tokens"`
	CostPer1KInput  float64 `json:"cost_per_1k_input"`
	CostPer1KOutput float64 `json:"cost_per_1k_output"`
}

// CompletionError wraps a failure of the completion service so callers can
// distinguish transport trouble from their own mistakes.
type CompletionError struct {
	Op  string
	Err error
}

func (e *CompletionError) Error() string {
	return "completion " + e.Op + ": " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error { return e.Err }
