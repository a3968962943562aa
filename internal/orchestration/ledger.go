package orchestration

import (
	"fmt"
	"strings"
	"sync"
)

// NoPartialResult is returned when a run stops before any assistant
// message made it into the transcript.
const NoPartialResult = "No partial result available."

// Ledger holds the shared state of one orchestration run: the immutable
// task, the evolving fact sheet and plan, the session transcript, and the
// round/stall/reset counters. It is owned by a single run; the manager is
// the only writer of facts and plan, the orchestrator the only caller of
// the counter mutators. The mutex exists so read-only status peeks from
// other goroutines (the HTTP layer) stay safe.
type Ledger struct {
	mu sync.RWMutex

	task         string
	names        []string // registration order
	descriptions map[string]string

	facts string
	plan  string

	transcript []Message

	roundCount int
	stallCount int
	resetCount int
}

// NewLedger creates the ledger for a run. Participant names keep their
// registration order; the safe-default speaker depends on it.
func NewLedger(task string, team []ParticipantSpec) *Ledger {
	l := &Ledger{
		task:         task,
		descriptions: make(map[string]string, len(team)),
	}
	for _, p := range team {
		l.names = append(l.names, p.Name)
		l.descriptions[p.Name] = p.Description
	}
	return l
}

// Task returns the immutable task description.
func (l *Ledger) Task() string { return l.task }

// ParticipantNames returns the team names in registration order.
func (l *Ledger) ParticipantNames() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// TeamDescription renders the roster as "name: description" lines for
// prompt insertion.
func (l *Ledger) TeamDescription() string {
	var b strings.Builder
	for _, name := range l.names {
		fmt.Fprintf(&b, "%s: %s\n", name, l.descriptions[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

// Facts returns the current fact sheet.
func (l *Ledger) Facts() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.facts
}

// Plan returns the current plan.
func (l *Ledger) Plan() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.plan
}

// SetFacts replaces the fact sheet wholesale.
func (l *Ledger) SetFacts(facts string) {
	l.mu.Lock()
	l.facts = facts
	l.mu.Unlock()
}

// SetPlan replaces the plan wholesale.
func (l *Ledger) SetPlan(plan string) {
	l.mu.Lock()
	l.plan = plan
	l.mu.Unlock()
}

// AddMessage appends an entry to the session transcript. Entries are
// append-only; nothing mutates them after insertion.
func (l *Ledger) AddMessage(role, content, name string) {
	l.mu.Lock()
	l.transcript = append(l.transcript, Message{Role: role, Content: content, Name: name})
	l.mu.Unlock()
}

// Transcript returns a copy of the session transcript.
func (l *Ledger) Transcript() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.transcript))
	copy(out, l.transcript)
	return out
}

// ReplaceTranscript swaps the session transcript for the given entries.
// Used only by transcript summarization; counters are untouched.
func (l *Ledger) ReplaceTranscript(msgs []Message) {
	l.mu.Lock()
	l.transcript = append([]Message(nil), msgs...)
	l.mu.Unlock()
}

// LastAssistantContent returns the most recent assistant-role entry, the
// best available partial result at a stop point.
func (l *Ledger) LastAssistantContent() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.transcript) - 1; i >= 0; i-- {
		if l.transcript[i].Role == RoleAssistant {
			return l.transcript[i].Content, true
		}
	}
	return "", false
}

// PartialResult returns the fallback answer for a non-completed stop.
func (l *Ledger) PartialResult() string {
	if content, ok := l.LastAssistantContent(); ok {
		return content
	}
	return NoPartialResult
}

// Reset clears the session: transcript emptied, stall counter zeroed,
// reset counter bumped. The task ledger and round counter are untouched.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.transcript = nil
	l.stallCount = 0
	l.resetCount++
	l.mu.Unlock()
}

// NextRound increments the round counter and returns the new value.
func (l *Ledger) NextRound() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roundCount++
	return l.roundCount
}

// MarkStall increments the stall counter and returns the new value.
func (l *Ledger) MarkStall() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stallCount++
	return l.stallCount
}

// RoundCount returns the number of rounds consumed so far.
func (l *Ledger) RoundCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roundCount
}

// StallCount returns the stalls accumulated in the current session.
func (l *Ledger) StallCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stallCount
}

// ResetCount returns how many times the session has been reset.
func (l *Ledger) ResetCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resetCount
}

// EstimateTokens is the rough chars/4 heuristic over the transcript used
// by the summarization cap.
func (l *Ledger) EstimateTokens() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	chars := 0
	for _, m := range l.transcript {
		chars += len(m.Role) + len(m.Content) + len(m.Name)
	}
	return chars / 4
}
