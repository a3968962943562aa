package orchestration

import (
	"strings"
	"testing"
)

func testTeamSpecs() []ParticipantSpec {
	return []ParticipantSpec{
		{Name: "Analyst", Description: "expert in market research and data analysis"},
		{Name: "Strategist", Description: "expert in creating marketing strategies"},
		{Name: "Writer", Description: "expert in crafting marketing content"},
	}
}

func TestLedgerResetClearsSessionOnly(t *testing.T) {
	led := NewLedger("plan a campaign", testTeamSpecs())
	led.SetFacts("facts v1")
	led.SetPlan("plan v1")
	led.AddMessage(RoleAssistant, "task ledger", "Manager")
	led.AddMessage(RoleUser, "a result", "Analyst")
	led.NextRound()
	led.NextRound()
	led.MarkStall()
	led.MarkStall()

	led.Reset()

	if len(led.Transcript()) != 0 {
		t.Fatalf("expected empty transcript after reset, got %d entries", len(led.Transcript()))
	}
	if led.StallCount() != 0 {
		t.Fatalf("expected stall count 0 after reset, got %d", led.StallCount())
	}
	if led.ResetCount() != 1 {
		t.Fatalf("expected reset count 1, got %d", led.ResetCount())
	}
	if led.RoundCount() != 2 {
		t.Fatalf("round count must survive reset, got %d", led.RoundCount())
	}
	if led.Facts() != "facts v1" || led.Plan() != "plan v1" {
		t.Fatalf("task ledger must survive reset, got facts=%q plan=%q", led.Facts(), led.Plan())
	}
}

func TestLedgerLastAssistantContent(t *testing.T) {
	led := NewLedger("task", testTeamSpecs())
	if _, ok := led.LastAssistantContent(); ok {
		t.Fatalf("expected no assistant content in empty transcript")
	}
	if got := led.PartialResult(); got != NoPartialResult {
		t.Fatalf("expected sentinel partial result, got %q", got)
	}

	led.AddMessage(RoleAssistant, "first instruction", "Manager")
	led.AddMessage(RoleUser, "participant output", "Analyst")
	led.AddMessage(RoleAssistant, "second instruction", "Manager")
	led.AddMessage(RoleUser, "more output", "Writer")

	content, ok := led.LastAssistantContent()
	if !ok || content != "second instruction" {
		t.Fatalf("expected last assistant content %q, got %q", "second instruction", content)
	}
	if got := led.PartialResult(); got != "second instruction" {
		t.Fatalf("expected partial result from last assistant message, got %q", got)
	}
}

func TestLedgerTeamDescriptionKeepsRegistrationOrder(t *testing.T) {
	led := NewLedger("task", testTeamSpecs())
	desc := led.TeamDescription()
	analyst := strings.Index(desc, "Analyst:")
	strategist := strings.Index(desc, "Strategist:")
	writer := strings.Index(desc, "Writer:")
	if analyst < 0 || strategist < 0 || writer < 0 {
		t.Fatalf("team description missing members: %q", desc)
	}
	if !(analyst < strategist && strategist < writer) {
		t.Fatalf("team description out of registration order: %q", desc)
	}

	names := led.ParticipantNames()
	if len(names) != 3 || names[0] != "Analyst" {
		t.Fatalf("expected registration-ordered names starting with Analyst, got %v", names)
	}
}

func TestLedgerEstimateTokens(t *testing.T) {
	led := NewLedger("task", testTeamSpecs())
	if led.EstimateTokens() != 0 {
		t.Fatalf("expected zero estimate for empty transcript")
	}
	led.AddMessage(RoleUser, strings.Repeat("x", 396), "")
	// role "user" (4) + 396 content chars = 400 chars -> 100 tokens
	if got := led.EstimateTokens(); got != 100 {
		t.Fatalf("expected estimate 100, got %d", got)
	}
}
