package hdhr

import (
	"sync"
	"time"

	"tvrec/internal/job"
)

// targetJob points a tuner at a UDP target and holds until stopped. The
// reset stage clears the target again.
type targetJob struct {
	job.Base

	command job.Command
	grace   time.Duration

	mu  sync.Mutex
	set *job.Container
}

func newTargetJob(command job.Command, grace time.Duration) *targetJob {
	t := &targetJob{command: command, grace: grace}
	t.JobName = "target"
	return t
}

func (t *targetJob) Start() error {
	proc := job.NewProcess("set-target", t.command, job.WithGrace(t.grace))
	proc.AddListener(job.ListenerFunc(func(ev job.Event) {
		if ev.Type == job.Update {
			t.FireUpdate(t, ev.Message, nil)
		}
	}))
	t.mu.Lock()
	t.set = job.NewContainer(proc)
	t.mu.Unlock()
	return nil
}

func (t *targetJob) Run() {
	t.mu.Lock()
	set := t.set
	t.mu.Unlock()
	set.Start()
	<-set.Done()
	<-t.Stopping()
	t.FireComplete(t, nil, nil)
}

func (t *targetJob) Stop() {
	if !t.Terminate() {
		return
	}
	t.mu.Lock()
	set := t.set
	t.mu.Unlock()
	if set != nil {
		set.Stop()
	}
}
