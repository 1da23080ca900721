package task

import (
	"sort"
	"sync"
	"time"
)

// DefaultRetention is how long finished tasks stay listable before the
// registry drops them.
const DefaultRetention = 10 * time.Minute

// Registry is the process-wide index of trackers. It is constructed once at
// startup and injected wherever task lookup is needed; it never mutates a
// tracker's progress itself.
type Registry struct {
	mu        sync.Mutex
	trackers  map[string]*Tracker
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates a registry with the given retention for finished
// tasks. A non-positive retention falls back to DefaultRetention.
func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Registry{
		trackers:  make(map[string]*Tracker),
		retention: retention,
		now:       time.Now,
	}
}

// Create allocates a tracker and registers it.
func (r *Registry) Create(taskType Type, totalHint int) *Tracker {
	t := newTracker(taskType, totalHint)
	r.mu.Lock()
	r.sweepLocked()
	r.trackers[t.id] = t
	r.mu.Unlock()
	return t
}

// Get returns the tracker for a task id, or nil if unknown or expired.
func (r *Registry) Get(id string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return r.trackers[id]
}

// List returns snapshots of all active tasks plus recently finished ones,
// newest first.
func (r *Registry) List() []Progress {
	r.mu.Lock()
	r.sweepLocked()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	snaps := make([]Progress, 0, len(trackers))
	for _, t := range trackers {
		snaps = append(snaps, t.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
	return snaps
}

// sweepLocked drops trackers whose terminal transition is older than the
// retention window.
func (r *Registry) sweepLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, t := range r.trackers {
		snap := t.Snapshot()
		if snap.Status.Terminal() && snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(r.trackers, id)
		}
	}
}
