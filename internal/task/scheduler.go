package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Work is one admitted unit of background work. It reports progress
// through the tracker and returns an error only for whole-task failure;
// per-item failures belong in tracker.IncrementFailed.
type Work func(ctx context.Context, tr *Tracker) error

// MinConcurrent and MaxConcurrent bound the scheduler ceiling.
const (
	MinConcurrent = 1
	MaxConcurrent = 10
)

type queuedTask struct {
	tracker *Tracker
	work    Work
}

// Scheduler admits background tasks under one global concurrency ceiling.
// Tasks past the ceiling wait in FIFO order; a slot freeing starts the
// oldest pending task.
type Scheduler struct {
	registry *Registry
	cancels  *CancelRegistry
	logger   *slog.Logger

	baseCtx context.Context

	mu      sync.Mutex
	ceiling int
	running int
	queue   []queuedTask
	cancelF map[string]context.CancelFunc
}

// NewScheduler creates a scheduler. The ceiling is clamped to the 1-10
// range; baseCtx bounds the lifetime of all task contexts.
func NewScheduler(baseCtx context.Context, registry *Registry, cancels *CancelRegistry, ceiling int, logger *slog.Logger) *Scheduler {
	if ceiling < MinConcurrent {
		ceiling = MinConcurrent
	}
	if ceiling > MaxConcurrent {
		ceiling = MaxConcurrent
	}
	return &Scheduler{
		registry: registry,
		cancels:  cancels,
		logger:   logger.With(slog.String("component", "scheduler")),
		baseCtx:  baseCtx,
		ceiling:  ceiling,
		cancelF:  make(map[string]context.CancelFunc),
	}
}

// Admit registers a task. It starts immediately when a slot is free,
// otherwise it waits pending in admission order.
func (s *Scheduler) Admit(taskType Type, totalHint int, work Work) *Tracker {
	tr := s.registry.Create(taskType, totalHint)

	s.mu.Lock()
	if s.running < s.ceiling {
		s.running++
		s.mu.Unlock()
		s.launch(tr, work)
		return tr
	}
	s.queue = append(s.queue, queuedTask{tracker: tr, work: work})
	s.mu.Unlock()

	s.logger.Info("task queued", "task_id", tr.ID(), "type", string(taskType), "queue_len", s.QueueLen())
	return tr
}

// RequestCancel marks a task for cancellation. Pending tasks are removed
// from the queue and cancelled outright; running tasks get their context
// cancelled and are expected to observe the mark at their next checkpoint.
func (s *Scheduler) RequestCancel(taskID string) {
	s.cancels.RequestCancel(taskID)

	s.mu.Lock()
	for i, q := range s.queue {
		if q.tracker.ID() == taskID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.mu.Unlock()
			q.tracker.Cancel()
			s.cancels.Clear(taskID)
			return
		}
	}
	cancel := s.cancelF[taskID]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// SetCeiling changes the concurrency limit. Lowering it never preempts
// running tasks; raising it starts queued tasks up to the new limit.
func (s *Scheduler) SetCeiling(n int) error {
	if n < MinConcurrent || n > MaxConcurrent {
		return fmt.Errorf("concurrency ceiling must be between %d and %d, got %d", MinConcurrent, MaxConcurrent, n)
	}
	s.mu.Lock()
	s.ceiling = n
	starts := s.drainLocked()
	s.mu.Unlock()

	for _, q := range starts {
		s.launch(q.tracker, q.work)
	}
	return nil
}

// Ceiling returns the current concurrency limit.
func (s *Scheduler) Ceiling() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ceiling
}

// QueueLen returns the number of pending tasks.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// drainLocked claims slots for queued tasks, in FIFO order, up to the
// ceiling. Callers must hold s.mu and launch the returned tasks after
// unlocking.
func (s *Scheduler) drainLocked() []queuedTask {
	var starts []queuedTask
	for len(s.queue) > 0 && s.running < s.ceiling {
		starts = append(starts, s.queue[0])
		s.queue = s.queue[1:]
		s.running++
	}
	return starts
}

func (s *Scheduler) launch(tr *Tracker, work Work) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.cancelF[tr.ID()] = cancel
	s.mu.Unlock()

	tr.start()
	s.logger.Info("task started", "task_id", tr.ID(), "type", string(tr.Type()))

	go func() {
		defer s.release(tr, cancel)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("task panicked", "task_id", tr.ID(), "panic", r)
				tr.Fail(fmt.Sprintf("internal error: %v", r))
			}
		}()

		if err := work(ctx, tr); err != nil {
			tr.Fail(err.Error())
			return
		}
		// A well-behaved task finalizes itself; this covers the rest.
		tr.Complete()
	}()
}

// release frees the task's slot, clears its cancellation state, and starts
// the next pending task if one is waiting.
func (s *Scheduler) release(tr *Tracker, cancel context.CancelFunc) {
	cancel()
	s.cancels.Clear(tr.ID())

	s.mu.Lock()
	delete(s.cancelF, tr.ID())
	s.running--
	starts := s.drainLocked()
	s.mu.Unlock()

	snap := tr.Snapshot()
	s.logger.Info("task finished", "task_id", tr.ID(), "type", string(tr.Type()),
		"status", string(snap.Status), "succeeded", snap.Succeeded, "failed", snap.Failed)

	for _, q := range starts {
		s.launch(q.tracker, q.work)
	}
}
