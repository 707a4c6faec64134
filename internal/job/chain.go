package job

import (
	"fmt"
	"sync"
)

// Step builds the next job of a chain from the Complete event of the previous
// one. The first call receives a zero Event. Returning nil ends the chain.
type Step func(prev Event) Job

// Chain runs jobs strictly one after another: the next job is only built once
// the previous one has completed. It completes with the Complete events of
// every job it ran, in order.
type Chain struct {
	Base

	next Step

	mu      sync.Mutex
	current *Container
	events  []Event
}

// NewChain builds a chain that asks next for each job in turn.
func NewChain(name string, next Step) *Chain {
	c := &Chain{next: next}
	c.JobName = name
	return c
}

// Sequence is a chain over a fixed list of jobs.
func Sequence(name string, jobs ...Job) *Chain {
	i := 0
	return NewChain(name, func(Event) Job {
		for i < len(jobs) {
			j := jobs[i]
			i++
			if j != nil {
				return j
			}
		}
		return nil
	})
}

func (c *Chain) Start() error {
	if c.next == nil {
		return fmt.Errorf("chain %s: no step function", c.JobName)
	}
	return nil
}

func (c *Chain) Run() {
	var prev Event
	for !c.Terminated() {
		j := c.next(prev)
		if j == nil {
			break
		}
		completed := make(chan Event, 1)
		remove := j.AddListener(ListenerFunc(func(ev Event) {
			switch ev.Type {
			case Complete:
				completed <- ev
			case Update:
				c.FireUpdate(c, ev.Message, ev.Payload)
			}
		}))
		container := NewContainer(j)
		c.mu.Lock()
		c.current = container
		c.mu.Unlock()
		if c.Terminated() {
			j.Stop()
		}
		container.Start()
		<-container.Done()
		remove()

		select {
		case prev = <-completed:
		default:
			prev = Event{Type: Complete, Source: j, Err: container.StartErr()}
		}
		c.mu.Lock()
		c.current = nil
		c.events = append(c.events, prev)
		c.mu.Unlock()
	}
	c.FireComplete(c, c.Events(), nil)
}

// Stop stops the running job and prevents any further job from starting.
func (c *Chain) Stop() {
	if !c.Terminate() {
		return
	}
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// Events returns the Complete events collected so far.
func (c *Chain) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
