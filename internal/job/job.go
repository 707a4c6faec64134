package job

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrStopped is reported by jobs that were stopped before they could start.
var ErrStopped = errors.New("job stopped")

// EventType distinguishes progress notifications from the terminal event.
type EventType int

const (
	Update EventType = iota
	Complete
)

func (t EventType) String() string {
	switch t {
	case Update:
		return "update"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners. Err is only set on Complete events and only
// for failures the job could not degrade around.
type Event struct {
	Type    EventType
	Source  Job
	Message string
	Payload any
	Err     error
}

// Listener receives job events on the goroutine that fired them.
type Listener interface {
	JobEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) JobEvent(ev Event) { f(ev) }

// Job is a unit of asynchronous work. Start performs setup and may fail, Run
// blocks until the work is done, and Stop is idempotent and safe from any
// goroutine at any time. Every implementation embeds Base.
type Job interface {
	Name() string
	ID() string
	Start() error
	Run()
	Stop()
	AddListener(Listener) func()
	base() *Base
}

type listenerEntry struct {
	l Listener
}

// Base carries the listener list, terminate flag and completion guard shared
// by every job. The zero value is ready to use once a name is set.
type Base struct {
	JobName string

	idOnce   sync.Once
	id       string
	mu       sync.Mutex
	stopCh   chan struct{}
	entries  []*listenerEntry
	stopped  atomic.Bool
	complete sync.Once
	done     atomic.Bool
}

func (b *Base) base() *Base { return b }

// Name returns the display name used in events and logs.
func (b *Base) Name() string { return b.JobName }

// ID is unique per job instance.
func (b *Base) ID() string {
	b.idOnce.Do(func() { b.id = uuid.NewString() })
	return b.id
}

// AddListener registers l and returns a function that removes it again.
func (b *Base) AddListener(l Listener) func() {
	if l == nil {
		return func() {}
	}
	entry := &listenerEntry{l: l}
	b.mu.Lock()
	b.entries = append(b.entries, entry)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.entries {
			if e == entry {
				b.entries = append(b.entries[:i:i], b.entries[i+1:]...)
				return
			}
		}
	}
}

func (b *Base) snapshot() []*listenerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*listenerEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Base) fire(ev Event) {
	for _, entry := range b.snapshot() {
		entry.l.JobEvent(ev)
	}
}

// FireUpdate sends a progress event. source is the outer job value so
// listeners can compare it against the job they started.
func (b *Base) FireUpdate(source Job, message string, payload any) {
	b.fire(Event{Type: Update, Source: source, Message: message, Payload: payload})
}

// FireComplete sends the terminal event. Only the first call has any effect.
func (b *Base) FireComplete(source Job, payload any, err error) {
	b.complete.Do(func() {
		b.done.Store(true)
		b.fire(Event{Type: Complete, Source: source, Payload: payload, Err: err})
	})
}

// Completed reports whether FireComplete has run.
func (b *Base) Completed() bool { return b.done.Load() }

func (b *Base) stopChan() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopCh == nil {
		b.stopCh = make(chan struct{})
	}
	return b.stopCh
}

// Terminate sets the terminate flag. It returns true for the first caller only.
func (b *Base) Terminate() bool {
	if !b.stopped.CompareAndSwap(false, true) {
		return false
	}
	close(b.stopChan())
	return true
}

// Terminated reports whether Terminate has been called.
func (b *Base) Terminated() bool { return b.stopped.Load() }

// Stopping is closed once Terminate has been called.
func (b *Base) Stopping() <-chan struct{} { return b.stopChan() }

// Sleep waits for d or until the job is terminated, whichever comes first.
// It returns false if the job was terminated.
func (b *Base) Sleep(d time.Duration) bool {
	return Poll(d, b.Stopping())
}
