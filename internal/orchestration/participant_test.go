package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLLMParticipantFoldsErrors(t *testing.T) {
	cfg := testConfig()
	provider := &stubProvider{respond: func(prompt, system, model string) (string, error) {
		return "", errors.New("connection refused")
	}}
	p := NewLLMParticipant(ParticipantSpec{Name: "Analyst", Description: "data analysis"}, "", cfg, provider)

	got := p.Respond(context.Background(), TurnInput{Task: "t", Instruction: "go"})
	if got != "Error in LLM call: connection refused" {
		t.Fatalf("unexpected folded error: %q", got)
	}
}

func TestLLMParticipantDefaultInstruction(t *testing.T) {
	cfg := testConfig()
	var seenPrompt, seenSystem string
	provider := &stubProvider{respond: func(prompt, system, model string) (string, error) {
		seenPrompt = prompt
		seenSystem = system
		return "ok", nil
	}}
	p := NewLLMParticipant(ParticipantSpec{Name: "Analyst", Description: "data analysis"}, "", cfg, provider)

	if got := p.Respond(context.Background(), TurnInput{Task: "t"}); got != "ok" {
		t.Fatalf("unexpected response: %q", got)
	}
	if !strings.Contains(seenPrompt, "Instruction: Provide your input.") {
		t.Fatalf("empty instruction must fall back to the default, prompt:\n%s", seenPrompt)
	}
	if !strings.Contains(seenSystem, "Analyst") {
		t.Fatalf("system message must name the participant, got %q", seenSystem)
	}
}

func TestLLMParticipantModelRouting(t *testing.T) {
	cfg := testConfig()
	var seenModel string
	provider := &stubProvider{respond: func(prompt, system, model string) (string, error) {
		seenModel = model
		return "ok", nil
	}}

	p := NewLLMParticipant(ParticipantSpec{Name: "A", Description: "d"}, "", cfg, provider)
	p.Respond(context.Background(), TurnInput{})
	if seenModel != cfg.LLM.Routing.Participant {
		t.Fatalf("expected routed model %q, got %q", cfg.LLM.Routing.Participant, seenModel)
	}

	p = NewLLMParticipant(ParticipantSpec{Name: "A", Description: "d"}, "gpt-4o-mini", cfg, provider)
	p.Respond(context.Background(), TurnInput{})
	if seenModel != "gpt-4o-mini" {
		t.Fatalf("explicit model must win, got %q", seenModel)
	}
}
