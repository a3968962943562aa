package server

import (
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/roundtable/internal/orchestration"
)

// RunRecord is one submitted run as tracked by the journal.
type RunRecord struct {
	ID          string                          `json:"id"`
	Task        string                          `json:"task"`
	Team        []orchestration.ParticipantSpec `json:"team"`
	Status      string                          `json:"status"` // pending, running, finished, failed
	Result      *orchestration.RunResult        `json:"result,omitempty"`
	Error       string                          `json:"error,omitempty"`
	SubmittedAt time.Time                       `json:"submitted_at"`
	FinishedAt  *time.Time                      `json:"finished_at,omitempty"`
}

// Journal is an in-memory record of submitted runs. Entries survive for
// the life of the process; there is no persistence behind it.
type Journal struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

// NewJournal creates an empty run journal.
func NewJournal() *Journal {
	return &Journal{runs: make(map[string]*RunRecord)}
}

// Add registers a new run record.
func (j *Journal) Add(rec *RunRecord) {
	j.mu.Lock()
	j.runs[rec.ID] = rec
	j.mu.Unlock()
}

// Get returns a copy of the record for the given ID.
func (j *Journal) Get(id string) (RunRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	rec, ok := j.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// List returns all records, newest first.
func (j *Journal) List() []RunRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]RunRecord, 0, len(j.runs))
	for _, rec := range j.runs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].SubmittedAt.After(out[k].SubmittedAt) })
	return out
}

// SetRunning marks a record as running.
func (j *Journal) SetRunning(id string) {
	j.mu.Lock()
	if rec, ok := j.runs[id]; ok {
		rec.Status = "running"
	}
	j.mu.Unlock()
}

// SetFinished stores the outcome of a run.
func (j *Journal) SetFinished(id string, result orchestration.RunResult, runErr error) {
	now := time.Now()
	j.mu.Lock()
	if rec, ok := j.runs[id]; ok {
		rec.Result = &result
		rec.FinishedAt = &now
		if runErr != nil {
			rec.Status = "failed"
			rec.Error = runErr.Error()
		} else {
			rec.Status = "finished"
		}
	}
	j.mu.Unlock()
}
