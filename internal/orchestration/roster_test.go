package orchestration

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRoster(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeRoster(t, `
participants:
  - name: Analyst
    description: expert in market research
  - name: Writer
    description: expert in marketing copy
    model: gpt-4o-mini
options:
  max_round_count: 20
  max_reset_count: 2
`)
	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	if len(roster.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(roster.Participants))
	}
	if roster.Participants[1].Model != "gpt-4o-mini" {
		t.Fatalf("expected per-participant model, got %q", roster.Participants[1].Model)
	}

	opts := roster.RunOptions()
	if opts.MaxRoundCount != 20 || opts.MaxResetCount != 2 || opts.MaxStallCount != 0 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	team := roster.BuildTeam(testConfig(), &stubProvider{})
	if len(team) != 2 || team[0].Name() != "Analyst" {
		t.Fatalf("unexpected team: %v", team)
	}
}

func TestLoadRosterRejectsDuplicates(t *testing.T) {
	path := writeRoster(t, `
participants:
  - name: Analyst
    description: one
  - name: Analyst
    description: two
`)
	if _, err := LoadRoster(path); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestLoadRosterRejectsEmpty(t *testing.T) {
	path := writeRoster(t, "participants: []\n")
	if _, err := LoadRoster(path); err == nil {
		t.Fatalf("expected error for empty roster")
	}
}
