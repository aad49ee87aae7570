// Package statusapi exposes a loopback-only HTTP surface the UI polls for
// batch progress instead of receiving push callbacks (spec §11 DOMAIN STACK:
// teacher's internal/server + internal/endpoints routes repointed from a
// Redis-backed multi-tenant job queue onto the in-process audiobook runner).
package statusapi

import (
	"sync"
	"time"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/audiobook"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
)

// JobSnapshot is the polled view of one batch audiobook run.
type JobSnapshot struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	ReportPath string    `json:"report_path,omitempty"`
	LastLog    string    `json:"last_log,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Registry tracks every running/finished batch job keyed by ID, mirroring the
// teacher's queue.Queue job index but held in memory for a single-user local
// process rather than Redis.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*JobSnapshot
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*JobSnapshot)}
}

// Track registers id and pumps events off queue into the registry's snapshot
// until the queue reports a Done event, then stops. Call it in its own
// goroutine alongside audiobook.Run.
func (r *Registry) Track(id string, total int, queue *boundedqueue.Queue[audiobook.Event]) {
	r.mu.Lock()
	r.jobs[id] = &JobSnapshot{ID: id, Status: string(audiobook.StatusPending), Total: total, UpdatedAt: time.Now()}
	r.mu.Unlock()

	for {
		ev, ok := queue.Pop(2 * time.Second)
		if !ok {
			continue
		}
		r.apply(id, ev)
		if ev.Done != nil {
			return
		}
	}
}

func (r *Registry) apply(id string, ev audiobook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.jobs[id]
	if !ok {
		return
	}
	switch {
	case ev.Status != nil:
		snap.Status = string(ev.Status.Status)
	case ev.Progress != nil:
		snap.Completed = ev.Progress.Completed
		snap.Total = ev.Progress.Total
	case ev.Log != nil:
		snap.LastLog = ev.Log.Line
	case ev.Done != nil:
		snap.ReportPath = ev.Done.ReportPath
	}
	snap.UpdatedAt = time.Now()
}

// Get returns the current snapshot for id.
func (r *Registry) Get(id string) (JobSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.jobs[id]
	if !ok {
		return JobSnapshot{}, false
	}
	return *snap, true
}

// List returns every tracked job snapshot.
func (r *Registry) List() []JobSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JobSnapshot, 0, len(r.jobs))
	for _, snap := range r.jobs {
		out = append(out, *snap)
	}
	return out
}
