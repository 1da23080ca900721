package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, ceiling int) (*Scheduler, *Registry, *CancelRegistry) {
	t.Helper()
	registry := NewRegistry(time.Minute)
	cancels := NewCancelRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(context.Background(), registry, cancels, ceiling, logger), registry, cancels
}

// blockingWork returns a Work that signals when it starts and blocks until
// released.
func blockingWork(started chan<- string, release <-chan struct{}) Work {
	return func(ctx context.Context, tr *Tracker) error {
		started <- tr.ID()
		<-release
		return nil
	}
}

func waitForStatus(t *testing.T, tr *Tracker, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.Snapshot().Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s never reached %q, stuck at %q", tr.ID(), want, tr.Snapshot().Status)
}

func TestCeilingEnforced(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 2)
	started := make(chan string, 5)
	release := make(chan struct{})

	trackers := make([]*Tracker, 5)
	for i := range trackers {
		trackers[i] = sched.Admit(TypeAnalyzeBulk, 0, blockingWork(started, release))
	}

	<-started
	<-started
	select {
	case id := <-started:
		t.Fatalf("third task %s started with ceiling 2", id)
	case <-time.After(50 * time.Millisecond):
	}

	running, pending := 0, 0
	for _, tr := range trackers {
		switch tr.Snapshot().Status {
		case StatusRunning:
			running++
		case StatusPending:
			pending++
		}
	}
	if running != 2 || pending != 3 {
		t.Errorf("running=%d pending=%d, want 2 and 3", running, pending)
	}

	close(release)
	for _, tr := range trackers {
		waitForStatus(t, tr, StatusCompleted)
	}
}

func TestFIFOOrder(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)
	started := make(chan string, 4)
	release := make(chan struct{}, 4)

	blocker := sched.Admit(TypeScan, 0, blockingWork(started, release))
	<-started

	queued := make([]*Tracker, 3)
	for i := range queued {
		queued[i] = sched.Admit(TypeAnalyzeBulk, 0, blockingWork(started, release))
	}

	for i := 0; i < 4; i++ {
		release <- struct{}{}
	}

	var order []string
	for i := 0; i < 3; i++ {
		order = append(order, <-started)
	}
	for i, tr := range queued {
		if order[i] != tr.ID() {
			t.Fatalf("start order %v does not match admission order", order)
		}
	}
	waitForStatus(t, blocker, StatusCompleted)
}

func TestRaisingCeilingDrainsQueue(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)
	started := make(chan string, 3)
	release := make(chan struct{})

	trackers := make([]*Tracker, 3)
	for i := range trackers {
		trackers[i] = sched.Admit(TypeScan, 0, blockingWork(started, release))
	}
	<-started

	if err := sched.SetCeiling(3); err != nil {
		t.Fatalf("SetCeiling: %v", err)
	}
	<-started
	<-started

	for _, tr := range trackers {
		if st := tr.Snapshot().Status; st != StatusRunning {
			t.Errorf("task %s status %q after raise, want running", tr.ID(), st)
		}
	}
	close(release)
	for _, tr := range trackers {
		waitForStatus(t, tr, StatusCompleted)
	}
}

func TestSetCeilingRange(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 2)
	if err := sched.SetCeiling(0); err == nil {
		t.Error("SetCeiling(0) accepted")
	}
	if err := sched.SetCeiling(11); err == nil {
		t.Error("SetCeiling(11) accepted")
	}
	if err := sched.SetCeiling(10); err != nil {
		t.Errorf("SetCeiling(10): %v", err)
	}
}

func TestWorkErrorFailsTaskAndFreesSlot(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)

	failing := sched.Admit(TypeAnalyzeFile, 0, func(ctx context.Context, tr *Tracker) error {
		return context.DeadlineExceeded
	})
	waitForStatus(t, failing, StatusFailed)

	// The slot must be free for the next task.
	next := sched.Admit(TypeAnalyzeFile, 0, func(ctx context.Context, tr *Tracker) error {
		return nil
	})
	waitForStatus(t, next, StatusCompleted)
}

func TestPanicFailsTaskAndFreesSlot(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)

	panicking := sched.Admit(TypeScan, 0, func(ctx context.Context, tr *Tracker) error {
		panic("boom")
	})
	waitForStatus(t, panicking, StatusFailed)

	p := panicking.Snapshot()
	if len(p.Errors) == 0 {
		t.Error("panicked task has no recorded error")
	}

	next := sched.Admit(TypeScan, 0, func(ctx context.Context, tr *Tracker) error { return nil })
	waitForStatus(t, next, StatusCompleted)
}

func TestCancelPendingTask(t *testing.T) {
	sched, _, cancels := newTestScheduler(t, 1)
	started := make(chan string, 1)
	release := make(chan struct{})

	blocker := sched.Admit(TypeScan, 0, blockingWork(started, release))
	<-started

	pending := sched.Admit(TypeScan, 0, func(ctx context.Context, tr *Tracker) error {
		t.Error("cancelled pending task ran")
		return nil
	})

	sched.RequestCancel(pending.ID())
	waitForStatus(t, pending, StatusCancelled)
	if cancels.IsCancelled(pending.ID()) {
		t.Error("cancellation mark not cleared for dequeued task")
	}

	close(release)
	waitForStatus(t, blocker, StatusCompleted)
}

func TestCancelRunningTaskAtCheckpoint(t *testing.T) {
	sched, _, cancels := newTestScheduler(t, 1)
	started := make(chan struct{})
	proceed := make(chan struct{})

	var processedAfterCancel atomic.Int32
	var cancelled atomic.Bool

	tr := sched.Admit(TypeAnalyzeBulk, 100, func(ctx context.Context, tr *Tracker) error {
		close(started)
		<-proceed
		for i := 0; i < 100; i++ {
			if cancels.IsCancelled(tr.ID()) {
				tr.Cancel()
				return nil
			}
			if cancelled.Load() {
				processedAfterCancel.Add(1)
			}
			tr.IncrementSuccess("")
		}
		return nil
	})

	<-started
	sched.RequestCancel(tr.ID())
	cancelled.Store(true)
	close(proceed)

	waitForStatus(t, tr, StatusCancelled)
	if n := processedAfterCancel.Load(); n != 0 {
		t.Errorf("processed %d items after cancellation request", n)
	}

	// The mark is cleared on slot release, which trails the terminal state.
	deadline := time.Now().Add(time.Second)
	for cancels.IsCancelled(tr.ID()) {
		if time.Now().After(deadline) {
			t.Fatal("cancellation mark not cleared after terminal state")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCancelCancelsTaskContext(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 1)
	started := make(chan struct{})

	tr := sched.Admit(TypeMetadataImport, 0, func(ctx context.Context, tr *Tracker) error {
		close(started)
		<-ctx.Done()
		tr.Cancel()
		return nil
	})

	<-started
	sched.RequestCancel(tr.ID())
	waitForStatus(t, tr, StatusCancelled)
}

func TestConcurrentAdmissionsNeverExceedCeiling(t *testing.T) {
	const ceiling = 3
	sched, _, _ := newTestScheduler(t, ceiling)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	done := make(chan *Tracker, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := sched.Admit(TypeAnalyzeBulk, 0, func(ctx context.Context, tr *Tracker) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
				return nil
			})
			done <- tr
		}()
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		waitForStatus(t, <-done, StatusCompleted)
	}
	if p := peak.Load(); p > ceiling {
		t.Errorf("observed %d concurrent tasks, ceiling %d", p, ceiling)
	}
}

func TestRegistryListsActiveAndRecent(t *testing.T) {
	sched, registry, _ := newTestScheduler(t, 2)
	started := make(chan string, 1)
	release := make(chan struct{})

	running := sched.Admit(TypeScan, 0, blockingWork(started, release))
	<-started

	finished := sched.Admit(TypeAnalyzeFile, 0, func(ctx context.Context, tr *Tracker) error { return nil })
	waitForStatus(t, finished, StatusCompleted)

	snaps := registry.List()
	if len(snaps) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(snaps))
	}

	if registry.Get(running.ID()) == nil {
		t.Error("Get did not find running task")
	}
	if registry.Get("nope") != nil {
		t.Error("Get returned a tracker for an unknown id")
	}

	close(release)
	waitForStatus(t, running, StatusCompleted)
}

func TestRegistrySweepsExpiredTasks(t *testing.T) {
	registry := NewRegistry(time.Minute)
	tr := registry.Create(TypeScan, 0)
	tr.start()
	tr.Complete()

	// Shift the clock past the retention window.
	registry.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	// Both lookup paths honor retention; Get must not outlive List.
	if got := registry.Get(tr.ID()); got != nil {
		t.Error("Get returned an expired tracker")
	}
	if snaps := registry.List(); len(snaps) != 0 {
		t.Errorf("List returned %d tasks after retention expiry, want 0", len(snaps))
	}
}
