package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mohammad-safakhou/roundtable/config"
	"github.com/mohammad-safakhou/roundtable/internal/telemetry"
)

// Usage accumulates token and cost totals across the manager calls of a
// single run.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
}

func (u *Usage) add(in, out int64, cost float64) {
	if u == nil {
		return
	}
	u.PromptTokens += in
	u.CompletionTokens += out
	u.Cost += cost
}

// Total returns the combined token count.
func (u *Usage) Total() int64 {
	if u == nil {
		return 0
	}
	return u.PromptTokens + u.CompletionTokens
}

// Manager drives the reasoning side of a run: building and rebuilding the
// task ledger, assessing progress each round, and synthesizing the final
// answer. It holds no per-run state; everything lives on the Ledger.
type Manager struct {
	cfg       *config.Config
	provider  LLMProvider
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewManager creates a manager bound to a completion provider.
func NewManager(cfg *config.Config, provider LLMProvider, tel *telemetry.Telemetry) *Manager {
	return &Manager{
		cfg:       cfg,
		provider:  provider,
		telemetry: tel,
		logger:    log.New(os.Stdout, "[MANAGER] ", log.LstdFlags),
	}
}

// complete runs one completion call, records usage, and returns the text.
func (m *Manager) complete(ctx context.Context, prompt, system, model string, usage *Usage) (string, error) {
	response, inTok, outTok, err := m.provider.GenerateWithTokens(ctx, prompt, system, model)
	if err != nil {
		return "", &CompletionError{Op: "generate", Err: err}
	}
	cost := m.provider.CalculateCost(inTok, outTok, model)
	usage.add(inTok, outTok, cost)
	if m.telemetry != nil {
		m.telemetry.RecordLLMCall(ctx, model, inTok, outTok, cost)
	}
	return response, nil
}

// Plan builds the initial task ledger: a fact-survey call followed by a
// plan call. Each ledger field is written only after its call succeeds, so
// a failed second call leaves the facts from the first in place.
func (m *Manager) Plan(ctx context.Context, led *Ledger, usage *Usage) (string, error) {
	factsPrompt := renderTemplate(taskLedgerFactsPrompt, map[string]string{"task": led.Task()})
	facts, err := m.complete(ctx, factsPrompt, "", m.cfg.LLM.Routing.Planning, usage)
	if err != nil {
		return "", fmt.Errorf("fact survey failed: %w", err)
	}
	led.SetFacts(facts)

	planPrompt := renderTemplate(taskLedgerPlanPrompt, map[string]string{"team": led.TeamDescription()})
	plan, err := m.complete(ctx, planPrompt, "", m.cfg.LLM.Routing.Planning, usage)
	if err != nil {
		return "", fmt.Errorf("plan drafting failed: %w", err)
	}
	led.SetPlan(plan)

	return m.composeTaskLedger(led), nil
}

// Replan rewrites the task ledger after repeated stalls: the fact sheet is
// updated against its previous contents and a fresh plan is drafted from
// the failure so far.
func (m *Manager) Replan(ctx context.Context, led *Ledger, usage *Usage) (string, error) {
	factsPrompt := renderTemplate(taskLedgerFactsUpdatePrompt, map[string]string{
		"task":      led.Task(),
		"old_facts": led.Facts(),
	})
	facts, err := m.complete(ctx, factsPrompt, "", m.cfg.LLM.Routing.Planning, usage)
	if err != nil {
		return "", fmt.Errorf("fact update failed: %w", err)
	}
	led.SetFacts(facts)

	planPrompt := renderTemplate(taskLedgerPlanUpdatePrompt, map[string]string{"team": led.TeamDescription()})
	plan, err := m.complete(ctx, planPrompt, "", m.cfg.LLM.Routing.Planning, usage)
	if err != nil {
		return "", fmt.Errorf("plan revision failed: %w", err)
	}
	led.SetPlan(plan)

	return m.composeTaskLedger(led), nil
}

func (m *Manager) composeTaskLedger(led *Ledger) string {
	return renderTemplate(taskLedgerFullPrompt, map[string]string{
		"task":  led.Task(),
		"team":  led.TeamDescription(),
		"facts": led.Facts(),
		"plan":  led.Plan(),
	})
}

// CreateProgressLedger asks the assessment model for the per-round verdict.
// It never fails: any transport or parse problem yields the safe default,
// which keeps the loop moving and lets stall detection take over.
func (m *Manager) CreateProgressLedger(ctx context.Context, led *Ledger, usage *Usage) ProgressLedger {
	prompt := renderTemplate(progressLedgerPrompt, map[string]string{
		"task":  led.Task(),
		"team":  led.TeamDescription(),
		"names": strings.Join(led.ParticipantNames(), ", "),
		"facts": led.Facts(),
		"plan":  led.Plan(),
	})

	response, err := m.complete(ctx, prompt, "You are a task manager analyzing progress.", m.cfg.LLM.Routing.Assessment, usage)
	if err != nil {
		m.logger.Printf("progress assessment call failed: %v, using safe default", err)
		return m.safeDefaultLedger(led)
	}

	ledger, err := parseProgressLedger(response)
	if err != nil {
		m.logger.Printf("progress assessment parse failed: %v, using safe default", err)
		return m.safeDefaultLedger(led)
	}
	return ledger
}

// safeDefaultLedger is the verdict used when assessment cannot be trusted:
// not satisfied, not looping, still progressing, first-registered speaker.
func (m *Manager) safeDefaultLedger(led *Ledger) ProgressLedger {
	names := led.ParticipantNames()
	speaker := ""
	if len(names) > 0 {
		speaker = names[0]
	}
	return ProgressLedger{
		IsRequestSatisfied:  false,
		IsInLoop:            false,
		IsProgressBeingMade: true,
		NextSpeaker:         speaker,
		Instruction:         "Continue with the next step.",
	}
}

// parseProgressLedger extracts the first balanced JSON object from the
// response and decodes the five-field verdict. Each field arrives as a
// {reason, answer} pair; only the answer is consumed. A missing field or
// missing answer is a parse failure.
func parseProgressLedger(response string) (ProgressLedger, error) {
	jsonStr := ""
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				jsonStr = response[start : i+1]
				break
			}
		}
	}
	if jsonStr == "" {
		return ProgressLedger{}, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		IsRequestSatisfied *struct {
			Reason string `json:"reason"`
			Answer *bool  `json:"answer"`
		} `json:"is_request_satisfied"`
		IsInLoop *struct {
			Reason string `json:"reason"`
			Answer *bool  `json:"answer"`
		} `json:"is_in_loop"`
		IsProgressBeingMade *struct {
			Reason string `json:"reason"`
			Answer *bool  `json:"answer"`
		} `json:"is_progress_being_made"`
		NextSpeaker *struct {
			Reason string  `json:"reason"`
			Answer *string `json:"answer"`
		} `json:"next_speaker"`
		InstructionOrQuestion *struct {
			Reason string  `json:"reason"`
			Answer *string `json:"answer"`
		} `json:"instruction_or_question"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return ProgressLedger{}, fmt.Errorf("unmarshal progress ledger: %w", err)
	}
	if raw.IsRequestSatisfied == nil || raw.IsRequestSatisfied.Answer == nil ||
		raw.IsInLoop == nil || raw.IsInLoop.Answer == nil ||
		raw.IsProgressBeingMade == nil || raw.IsProgressBeingMade.Answer == nil ||
		raw.NextSpeaker == nil || raw.NextSpeaker.Answer == nil ||
		raw.InstructionOrQuestion == nil || raw.InstructionOrQuestion.Answer == nil {
		return ProgressLedger{}, fmt.Errorf("progress ledger missing required fields")
	}

	return ProgressLedger{
		IsRequestSatisfied:  *raw.IsRequestSatisfied.Answer,
		IsInLoop:            *raw.IsInLoop.Answer,
		IsProgressBeingMade: *raw.IsProgressBeingMade.Answer,
		NextSpeaker:         *raw.NextSpeaker.Answer,
		Instruction:         *raw.InstructionOrQuestion.Answer,
	}, nil
}

// PrepareFinalAnswer synthesizes the user-facing answer once assessment
// reports the request satisfied. The transcript is included so the model
// answers from what actually happened.
func (m *Manager) PrepareFinalAnswer(ctx context.Context, led *Ledger, usage *Usage) (string, error) {
	var b strings.Builder
	for _, msg := range led.Transcript() {
		if msg.Name != "" {
			fmt.Fprintf(&b, "%s (%s): %s\n\n", msg.Role, msg.Name, msg.Content)
		} else {
			fmt.Fprintf(&b, "%s: %s\n\n", msg.Role, msg.Content)
		}
	}
	b.WriteString(renderTemplate(finalAnswerPrompt, map[string]string{"task": led.Task()}))

	answer, err := m.complete(ctx, b.String(), "", m.cfg.LLM.Routing.Synthesis, usage)
	if err != nil {
		return "", fmt.Errorf("final answer synthesis failed: %w", err)
	}
	return answer, nil
}

// SummarizeTranscript collapses the transcript into a single assistant
// message when the estimated token count exceeds the configured cap. A
// failed summarization leaves the transcript untouched.
func (m *Manager) SummarizeTranscript(ctx context.Context, led *Ledger, usage *Usage) error {
	var b strings.Builder
	for _, msg := range led.Transcript() {
		if msg.Name != "" {
			fmt.Fprintf(&b, "%s (%s): %s\n\n", msg.Role, msg.Name, msg.Content)
		} else {
			fmt.Fprintf(&b, "%s: %s\n\n", msg.Role, msg.Content)
		}
	}
	b.WriteString(summarizePrompt)

	summary, err := m.complete(ctx, b.String(), "", m.cfg.LLM.Routing.Synthesis, usage)
	if err != nil {
		return fmt.Errorf("transcript summarization failed: %w", err)
	}
	led.ReplaceTranscript([]Message{{Role: RoleAssistant, Content: summary, Name: "Manager"}})
	return nil
}
