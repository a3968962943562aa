package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/roundtable/config"
)

// LLMParticipant is a team member backed by a completion model. Its turn
// output is whatever the model says; call failures are folded into the
// returned text so a flaky provider degrades into stalled rounds instead
// of aborting the run.
type LLMParticipant struct {
	name        string
	description string
	model       string
	provider    LLMProvider
}

// NewLLMParticipant builds a participant from its roster spec. An empty
// model falls back to the configured participant routing slot.
func NewLLMParticipant(spec ParticipantSpec, model string, cfg *config.Config, provider LLMProvider) *LLMParticipant {
	if model == "" {
		model = cfg.LLM.Routing.Participant
	}
	return &LLMParticipant{
		name:        spec.Name,
		description: spec.Description,
		model:       model,
		provider:    provider,
	}
}

func (p *LLMParticipant) Name() string        { return p.name }
func (p *LLMParticipant) Description() string { return p.description }

// Respond produces the participant's contribution for one turn. It never
// returns an error: a failed completion becomes a literal error string in
// the transcript.
func (p *LLMParticipant) Respond(ctx context.Context, input TurnInput) string {
	instruction := input.Instruction
	if instruction == "" {
		instruction = "Provide your input."
	}

	history, err := json.MarshalIndent(input.Transcript, "", "  ")
	if err != nil {
		history = []byte("[]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.name, p.description)
	fmt.Fprintf(&b, "Task: %s\n", input.Task)
	fmt.Fprintf(&b, "Current plan: %s\n", input.Plan)
	fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	fmt.Fprintf(&b, "Chat history: %s\n", history)
	b.WriteString("Provide a concise response to advance the task.")

	system := fmt.Sprintf("You are %s, an expert %s.", p.name, p.description)
	response, err := p.provider.Generate(ctx, b.String(), system, p.model)
	if err != nil {
		return fmt.Sprintf("Error in LLM call: %s", err.Error())
	}
	return response
}
