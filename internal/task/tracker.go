package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker owns one task's progress state. All mutation goes through its
// methods; every mutation becomes a no-op once the task reaches a terminal
// status, so late callbacks from finished work cannot corrupt the record.
type Tracker struct {
	mu          sync.Mutex
	id          string
	taskType    Type
	status      Status
	total       int
	processed   int
	succeeded   int
	failed      int
	currentItem string
	errors      []ItemError
	startedAt   time.Time
	completedAt *time.Time
	scan        *ScanProgress

	subscribers map[int]func(Progress)
	nextSubID   int
}

func newTracker(taskType Type, totalHint int) *Tracker {
	t := &Tracker{
		id:          uuid.New().String(),
		taskType:    taskType,
		status:      StatusPending,
		total:       totalHint,
		startedAt:   time.Now().UTC(),
		subscribers: make(map[int]func(Progress)),
	}
	if taskType == TypeScan {
		t.scan = &ScanProgress{}
	}
	return t
}

// ID returns the task's id.
func (t *Tracker) ID() string { return t.id }

// Type returns the task's type.
func (t *Tracker) Type() Type { return t.taskType }

func (t *Tracker) start() {
	t.mu.Lock()
	if t.status != StatusPending {
		t.mu.Unlock()
		return
	}
	t.status = StatusRunning
	t.notifyLocked()
}

// SetTotal records the expected item count. The total never drops below
// what has already been processed.
func (t *Tracker) SetTotal(n int) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	if n < t.processed {
		n = t.processed
	}
	t.total = n
	t.notifyLocked()
}

// SetCurrentItem updates the in-flight item label shown to observers.
func (t *Tracker) SetCurrentItem(label string) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.currentItem = label
	t.notifyLocked()
}

// UpdateScan mutates the scan-specific payload under the tracker's lock.
// It is a no-op for non-scan tasks and after a terminal transition.
func (t *Tracker) UpdateScan(fn func(*ScanProgress)) {
	t.mu.Lock()
	if t.status.Terminal() || t.scan == nil {
		t.mu.Unlock()
		return
	}
	fn(t.scan)
	t.notifyLocked()
}

// IncrementSuccess counts one item as done successfully.
func (t *Tracker) IncrementSuccess(item string) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.processed++
	t.succeeded++
	if item != "" {
		t.currentItem = item
	}
	if t.total > 0 && t.processed > t.total {
		t.total = t.processed
	}
	t.notifyLocked()
}

// IncrementFailed counts one item as failed and records its error.
func (t *Tracker) IncrementFailed(item, errMsg string) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.processed++
	t.failed++
	t.errors = append(t.errors, ItemError{Item: item, Error: errMsg})
	if t.total > 0 && t.processed > t.total {
		t.total = t.processed
	}
	t.notifyLocked()
}

// Complete marks the task completed. Repeated calls are no-ops.
func (t *Tracker) Complete() {
	t.finish(StatusCompleted, "")
}

// Fail marks the task failed. If no per-item errors were recorded, the
// reason is appended so observers always see at least one error.
func (t *Tracker) Fail(reason string) {
	t.finish(StatusFailed, reason)
}

// Cancel marks the task cancelled.
func (t *Tracker) Cancel() {
	t.finish(StatusCancelled, "")
}

func (t *Tracker) finish(status Status, reason string) {
	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		return
	}
	t.status = status
	now := time.Now().UTC()
	t.completedAt = &now
	if status == StatusFailed && len(t.errors) == 0 {
		t.errors = append(t.errors, ItemError{Item: "task", Error: reason})
	}
	t.notifyLocked()
}

// Subscribe registers a listener invoked on every state change, including
// the terminal transition. The returned function removes the listener.
func (t *Tracker) Subscribe(fn func(Progress)) func() {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Progress {
	p := Progress{
		TaskID:      t.id,
		Type:        t.taskType,
		Status:      t.status,
		Total:       t.total,
		Processed:   t.processed,
		Succeeded:   t.succeeded,
		Failed:      t.failed,
		CurrentItem: t.currentItem,
		StartedAt:   t.startedAt,
	}
	p.Errors = make([]ItemError, len(t.errors))
	copy(p.Errors, t.errors)
	if t.completedAt != nil {
		at := *t.completedAt
		p.CompletedAt = &at
	}
	if t.scan != nil {
		sc := *t.scan
		p.Scan = &sc
	}
	return p
}

// notifyLocked snapshots the state, releases the lock, and delivers the
// snapshot to all subscribers. Callers must hold t.mu; it is unlocked on
// return. Subscribers may safely call back into the tracker.
func (t *Tracker) notifyLocked() {
	snap := t.snapshotLocked()
	subs := make([]func(Progress), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		subs = append(subs, fn)
	}
	t.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
