package ingest

import (
	"sync"

	"medrag/internal/domain"
)

// Progress tracks the single in-flight ingestion run. All access goes
// through the mutex; Snapshot hands out copies, never the live run.
type Progress struct {
	mu        sync.RWMutex
	running   bool
	cancelled bool
	run       domain.IngestionRun
}

// Status is the externally visible view of the tracker.
type Status struct {
	Running   bool                 `json:"running"`
	Cancelled bool                 `json:"cancelled"`
	Run       *domain.IngestionRun `json:"run,omitempty"`
}

// begin claims the tracker for a new run. Returns false when a run is
// already in flight.
func (p *Progress) begin(source string, requested int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	p.cancelled = false
	p.run = domain.IngestionRun{
		Source:         source,
		State:          domain.RunStarted,
		RequestedCount: requested,
	}
	return true
}

// update applies a mutation to the live run under the lock.
func (p *Progress) update(fn func(run *domain.IngestionRun)) {
	p.mu.Lock()
	fn(&p.run)
	p.mu.Unlock()
}

// finish releases the tracker, leaving the final run visible in status.
func (p *Progress) finish(state domain.RunState) {
	p.mu.Lock()
	p.run.State = state
	p.running = false
	p.mu.Unlock()
}

// Cancel requests that the in-flight run stop at the next candidate
// boundary. Returns false when nothing is running.
func (p *Progress) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return false
	}
	p.cancelled = true
	return true
}

func (p *Progress) isCancelled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cancelled
}

// Snapshot returns a copy of the current status. The run copy is safe to
// serialize concurrently with an active run.
func (p *Progress) Snapshot() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	run := p.run
	if run.SkipReasons != nil {
		reasons := make(map[string]int, len(run.SkipReasons))
		for k, v := range run.SkipReasons {
			reasons[k] = v
		}
		run.SkipReasons = reasons
	}
	if run.Articles != nil {
		run.Articles = append([]domain.IngestedArticle(nil), run.Articles...)
	}

	status := Status{Running: p.running, Cancelled: p.cancelled}
	if run.State != "" {
		status.Run = &run
	}
	return status
}
