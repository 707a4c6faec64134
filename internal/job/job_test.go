package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeJob struct {
	Base
	startErr error
	started  atomic.Bool
	ran      atomic.Bool
}

func newFakeJob(startErr error) *fakeJob {
	j := &fakeJob{startErr: startErr}
	j.JobName = "fake"
	return j
}

func (j *fakeJob) Start() error {
	j.started.Store(true)
	return j.startErr
}

func (j *fakeJob) Run() {
	j.ran.Store(true)
	j.Sleep(time.Hour)
	j.FireComplete(j, "done", nil)
}

func (j *fakeJob) Stop() { j.Terminate() }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) JobEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) completes() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == Complete {
			out = append(out, ev)
		}
	}
	return out
}

func TestContainerRunsStartThenRun(t *testing.T) {
	j := newFakeJob(nil)
	rec := &recorder{}
	j.AddListener(rec)

	c := Go(j)
	deadline := time.Now().Add(2 * time.Second)
	for !j.ran.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !j.started.Load() || !j.ran.Load() {
		t.Fatal("expected Start and Run to be called")
	}

	c.Stop()
	c.Stop()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	completes := rec.completes()
	if len(completes) != 1 {
		t.Fatalf("expected exactly one complete event, got %d", len(completes))
	}
	if completes[0].Payload != "done" || completes[0].Source != Job(j) {
		t.Fatalf("unexpected complete event %+v", completes[0])
	}
}

func TestContainerStartFailureCompletes(t *testing.T) {
	boom := errors.New("boom")
	j := newFakeJob(boom)
	rec := &recorder{}
	j.AddListener(rec)

	c := Go(j)
	if err := c.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if j.ran.Load() {
		t.Fatal("Run must not be called after a failed Start")
	}
	completes := rec.completes()
	if len(completes) != 1 || !errors.Is(completes[0].Err, boom) {
		t.Fatalf("expected failed complete event, got %+v", completes)
	}
}

func TestStopBeforeStart(t *testing.T) {
	j := newFakeJob(nil)
	rec := &recorder{}
	j.AddListener(rec)

	c := NewContainer(j)
	c.Stop()
	c.Start()
	if err := c.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if j.started.Load() {
		t.Fatal("Start must not run after Stop")
	}
	if len(rec.completes()) != 1 {
		t.Fatal("expected a complete event")
	}
}

func TestAddListenerRemove(t *testing.T) {
	var b Base
	var calls atomic.Int32
	remove := b.AddListener(ListenerFunc(func(Event) { calls.Add(1) }))
	b.FireUpdate(nil, "one", nil)
	remove()
	remove()
	b.FireUpdate(nil, "two", nil)
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestFireCompleteOnce(t *testing.T) {
	var b Base
	var calls atomic.Int32
	b.AddListener(ListenerFunc(func(ev Event) {
		if ev.Type == Complete {
			calls.Add(1)
		}
	}))
	b.FireComplete(nil, nil, nil)
	b.FireComplete(nil, nil, errors.New("late"))
	if calls.Load() != 1 || !b.Completed() {
		t.Fatalf("expected single completion, got %d", calls.Load())
	}
}

func TestPoll(t *testing.T) {
	stop := make(chan struct{})
	if !Poll(time.Millisecond, stop) {
		t.Fatal("expected poll to time out normally")
	}
	close(stop)
	start := time.Now()
	if Poll(time.Hour, stop) {
		t.Fatal("expected poll to report stop")
	}
	if time.Since(start) > time.Second {
		t.Fatal("poll did not return promptly after stop")
	}
	if Poll(0, stop) {
		t.Fatal("zero interval must still observe stop")
	}
}
