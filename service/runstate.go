package service

import (
	"sync"
	"time"
)

// RunSnapshot is the orchestrator's view of the most recent completed run,
// exposed through the healthz endpoint so operators can see what the service
// last did without scraping metrics.
type RunSnapshot struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Health      string    `json:"health"`
	PassRate    float64   `json:"pass_rate"`
	Projects    int       `json:"projects"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunState holds the last run snapshot. It is shared between the
// orchestrator (writer) and the healthz server (reader).
type RunState struct {
	mu   sync.RWMutex
	last *RunSnapshot
}

func NewRunState() *RunState {
	return &RunState{}
}

// Record replaces the stored snapshot with the given one.
func (s *RunState) Record(snap RunSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &snap
}

// Last returns the most recent snapshot, or false when no run has completed
// yet.
func (s *RunState) Last() (RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunSnapshot{}, false
	}
	return *s.last, true
}
