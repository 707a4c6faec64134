package job

import "time"

// recordLeadSeconds is subtracted from every requested duration so the
// pipeline has time to detune before the next scheduled recording starts.
const recordLeadSeconds = 3

// zeroDurationFloorSeconds replaces a computed duration of exactly zero.
const zeroDurationFloorSeconds = 60

// Timing controls how capture pipelines wait for their deadline. Unit is the
// length of one requested second, which lets tests run pipelines quickly.
type Timing struct {
	Unit       time.Duration
	Coarse     time.Duration
	Fine       time.Duration
	FineWindow time.Duration
}

// DefaultTiming polls every five seconds and every 100ms in the final 20s.
func DefaultTiming() Timing {
	return Timing{
		Unit:       time.Second,
		Coarse:     5 * time.Second,
		Fine:       100 * time.Millisecond,
		FineWindow: 20 * time.Second,
	}
}

func (t Timing) normalized() Timing {
	def := DefaultTiming()
	if t.Unit <= 0 {
		t.Unit = def.Unit
	}
	if t.Coarse <= 0 {
		t.Coarse = def.Coarse
	}
	if t.Fine <= 0 {
		t.Fine = def.Fine
	}
	if t.FineWindow < 0 {
		t.FineWindow = def.FineWindow
	}
	return t
}

// RecordSeconds converts a requested duration into the number of seconds the
// capture stage actually runs: D-3, except that exactly zero becomes 60.
// Negative results are clamped to zero.
func RecordSeconds(durationSeconds int) int {
	secs := durationSeconds - recordLeadSeconds
	if secs == 0 {
		return zeroDurationFloorSeconds
	}
	if secs < 0 {
		return 0
	}
	return secs
}

// Deadline is when a capture started at now must be stopped.
func (t Timing) Deadline(now time.Time, durationSeconds int) time.Time {
	t = t.normalized()
	return now.Add(time.Duration(RecordSeconds(durationSeconds)) * t.Unit)
}

// NextInterval returns how long to sleep before checking the deadline again.
// A coarse step stops at the start of the fine window, and no step overshoots
// the deadline.
func (t Timing) NextInterval(now, deadline time.Time) time.Duration {
	t = t.normalized()
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	step := t.Fine
	if outside := remaining - t.FineWindow; outside > 0 {
		step = min(t.Coarse, outside)
	}
	if step > remaining {
		step = remaining
	}
	return step
}

// WaitUntil polls until deadline, stop closing or done closing. It returns
// true only when the deadline was reached.
func (t Timing) WaitUntil(deadline time.Time, stop <-chan struct{}, done <-chan struct{}) bool {
	for {
		now := time.Now()
		if !now.Before(deadline) {
			return true
		}
		interval := t.NextInterval(now, deadline)
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return false
		case <-done:
			timer.Stop()
			return false
		}
	}
}

// Hold lets c run until deadline, stop closing or c finishing by itself, then
// stops c without waiting for it. A zero deadline holds until stop or c ends.
// It reports how long c was held and whether it ended on its own.
func (t Timing) Hold(c *Container, deadline time.Time, stop <-chan struct{}) (time.Duration, bool) {
	started := time.Now()
	if deadline.IsZero() {
		select {
		case <-c.Done():
		case <-stop:
		}
	} else {
		t.WaitUntil(deadline, stop, c.Done())
	}
	ended := false
	select {
	case <-c.Done():
		ended = true
	default:
	}
	c.Stop()
	return time.Since(started), ended
}
