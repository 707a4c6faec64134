package job

import (
	"context"
	"sync"
	"time"
)

// Container runs one job on its own goroutine: Start, then Run. A failed Start
// completes the job with the start error so chained listeners still advance.
type Container struct {
	job      Job
	done     chan struct{}
	startErr error
	once     sync.Once
}

// NewContainer wraps j without starting it.
func NewContainer(j Job) *Container {
	return &Container{job: j, done: make(chan struct{})}
}

// Start launches the job goroutine. Calling it more than once has no effect.
func (c *Container) Start() {
	c.once.Do(func() {
		go c.loop()
	})
}

func (c *Container) loop() {
	defer close(c.done)
	b := c.job.base()
	if b.Terminated() {
		c.startErr = ErrStopped
		b.FireComplete(c.job, nil, ErrStopped)
		return
	}
	if err := c.job.Start(); err != nil {
		c.startErr = err
		b.FireComplete(c.job, nil, err)
		return
	}
	c.job.Run()
}

// Job returns the wrapped job.
func (c *Container) Job() Job { return c.job }

// Stop forwards to the job. It is safe before Start and from any goroutine.
func (c *Container) Stop() {
	c.job.Stop()
}

// Done is closed once Run (or a failed Start) has returned.
func (c *Container) Done() <-chan struct{} { return c.done }

// Wait blocks until the job goroutine exits or ctx is cancelled.
func (c *Container) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.startErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartErr is the error returned by the job's Start, valid after Done.
func (c *Container) StartErr() error {
	select {
	case <-c.done:
		return c.startErr
	default:
		return nil
	}
}

// Go wraps and starts j in one call.
func Go(j Job) *Container {
	c := NewContainer(j)
	c.Start()
	return c
}

// Poll sleeps for interval unless stop closes first. It returns false when
// stopped. A non-positive interval returns immediately.
func Poll(interval time.Duration, stop <-chan struct{}) bool {
	if interval <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
