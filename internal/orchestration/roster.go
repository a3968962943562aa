package orchestration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/roundtable/config"
)

// RosterEntry is one participant declared in a roster file. Model is
// optional and falls back to the configured participant routing slot.
type RosterEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Model       string `yaml:"model,omitempty"`
}

// Roster is the on-disk description of a team and its per-run options.
type Roster struct {
	Participants []RosterEntry `yaml:"participants"`
	Options      struct {
		MaxStallCount int `yaml:"max_stall_count"`
		MaxRoundCount int `yaml:"max_round_count"`
		MaxResetCount int `yaml:"max_reset_count"`
	} `yaml:"options"`
}

// LoadRoster reads and validates a roster YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(roster.Participants) == 0 {
		return nil, fmt.Errorf("roster has no participants")
	}
	seen := make(map[string]bool, len(roster.Participants))
	for _, p := range roster.Participants {
		if p.Name == "" {
			return nil, fmt.Errorf("roster participant without a name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate roster participant: %s", p.Name)
		}
		seen[p.Name] = true
	}
	return &roster, nil
}

// BuildTeam converts roster entries into LLM-backed participants.
func (r *Roster) BuildTeam(cfg *config.Config, provider LLMProvider) []Participant {
	team := make([]Participant, 0, len(r.Participants))
	for _, entry := range r.Participants {
		spec := ParticipantSpec{Name: entry.Name, Description: entry.Description}
		team = append(team, NewLLMParticipant(spec, entry.Model, cfg, provider))
	}
	return team
}

// RunOptions converts the roster's option block.
func (r *Roster) RunOptions() RunOptions {
	return RunOptions{
		MaxStallCount: r.Options.MaxStallCount,
		MaxRoundCount: r.Options.MaxRoundCount,
		MaxResetCount: r.Options.MaxResetCount,
	}
}
