package event

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	ScanCompleted  Type = "scan.completed"
	TaskCompleted  Type = "task.completed"
	IssueCreated   Type = "issue.created"
	FileMissing    Type = "file.missing"
	ShowAdded      Type = "show.added"
	AnalysisDone   Type = "analysis.done"
	MetadataSynced Type = "metadata.synced"
	LibraryChanged Type = "library.changed"
)

// Event represents something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler is a function that processes an event.
type Handler func(Event)

// historySize bounds the recent-event ring exposed to the API.
const historySize = 100

// Bus is an in-process event bus backed by a buffered channel. Dispatch
// happens on the bus goroutine, so handlers never block publishers.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	subs    map[Type][]Handler
	allSubs map[int]Handler
	nextSub int
	history []Event
	logger  *slog.Logger
	done    chan struct{}
	stopped bool
}

// NewBus creates a new event bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:      make(chan Event, bufSize),
		subs:    make(map[Type][]Handler),
		allSubs: make(map[int]Handler),
		logger:  logger.With(slog.String("component", "event-bus")),
		done:    make(chan struct{}),
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers a handler for every event type and returns an
// unsubscribe function. Used by streaming API clients.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.allSubs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.allSubs, id)
		b.mu.Unlock()
	}
}

// Publish sends an event to the bus. Non-blocking; drops with a warning if
// the buffer is full.
func (b *Bus) Publish(t Type, data map[string]any) {
	e := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", "type", string(t))
	}
}

// Recent returns the most recently dispatched events, newest first.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.history))
	for i, e := range b.history {
		out[len(b.history)-1-i] = e
	}
	return out
}

// Start drains the channel and dispatches events to subscribers. Call it
// in a goroutine; it blocks until Stop is called, then finishes whatever
// is buffered.
func (b *Bus) Start() {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.done:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// Stop signals the bus to stop processing events after draining the buffer.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stopped {
		b.stopped = true
		close(b.done)
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	handlers := make([]Handler, 0, len(b.subs[e.Type])+len(b.allSubs))
	handlers = append(handlers, b.subs[e.Type]...)
	for _, h := range b.allSubs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			h(e)
		}()
	}
}
