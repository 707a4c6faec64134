package job

import (
	"context"
	"testing"
	"time"
)

type valueJob struct {
	Base
	value int
	order *[]int
}

func (j *valueJob) Start() error { return nil }

func (j *valueJob) Run() {
	*j.order = append(*j.order, j.value)
	j.FireComplete(j, j.value, nil)
}

func (j *valueJob) Stop() { j.Terminate() }

func TestChainBuildsNextFromPreviousComplete(t *testing.T) {
	var order []int
	chain := NewChain("count", func(prev Event) Job {
		next := 1
		if prev.Payload != nil {
			next = prev.Payload.(int) + 1
		}
		if next > 3 {
			return nil
		}
		j := &valueJob{value: next, order: &order}
		j.JobName = "step"
		return j
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Go(chain).Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Fatalf("unexpected order %v", order)
	}
	events := chain.Events()
	if len(events) != 3 || events[2].Payload.(int) != 3 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestSequenceSkipsNilAndRecordsStartFailure(t *testing.T) {
	failing := newFakeJob(context.DeadlineExceeded)
	var order []int
	last := &valueJob{value: 7, order: &order}
	chain := Sequence("seq", nil, failing, last)
	if err := Go(chain).Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	events := chain.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Err != context.DeadlineExceeded {
		t.Fatalf("expected start error to be recorded, got %v", events[0].Err)
	}
	if len(order) != 1 || order[0] != 7 {
		t.Fatalf("chain should continue after a failed start: %v", order)
	}
}

func TestChainStopCascades(t *testing.T) {
	blocker := newFakeJob(nil)
	var order []int
	after := &valueJob{value: 1, order: &order}
	chain := Sequence("seq", blocker, after)
	c := Go(chain)
	deadline := time.Now().Add(2 * time.Second)
	for !blocker.ran.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if !blocker.Terminated() {
		t.Fatal("running job was not stopped")
	}
	if len(order) != 0 {
		t.Fatal("no job may start after Stop")
	}
}
