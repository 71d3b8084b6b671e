package ingest

import (
	"sync"
	"time"
)

// State is the driver lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID         string    `json:"run_id"`
	State         State     `json:"state"`
	Batches       int       `json:"batches"`
	Records       int64     `json:"records"`
	NextTextID    int64     `json:"next_text_id"`
	NextContentID int64     `json:"next_content_id"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type progressTracker struct {
	mu      sync.Mutex
	current Progress
}

func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *progressTracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.current)
}
