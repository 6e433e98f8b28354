package sync

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop cancels the timer and reports whether it was still pending.
	Stop() bool
}

// Scheduler abstracts the clock so the center can be driven without real
// timers in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) (stop func())
	Now() time.Time
}

// RealScheduler uses the wall clock. Periodic jobs run on a cron
// scheduler.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Every implements Scheduler. Intervals are rounded down to whole
// seconds, with a minimum of one second.
func (RealScheduler) Every(d time.Duration, f func()) func() {
	c := cron.New()
	c.Schedule(cron.Every(d), cron.FuncJob(f))
	c.Start()
	return func() { c.Stop() }
}

// Now implements Scheduler.
func (RealScheduler) Now() time.Time { return time.Now() }
