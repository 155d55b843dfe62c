package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hearthlabs/homeboard/pkg/logger"
)

// refresher owns the polling schedule for one data source. Overlapping
// triggers are coalesced: while a refresh is in flight, further ticks and
// manual triggers are dropped instead of piling up.
type refresher struct {
	name     string
	interval time.Duration
	run      func(context.Context)
	log      *logger.Logger

	inFlight atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func newRefresher(name string, interval time.Duration, run func(context.Context), log *logger.Logger) *refresher {
	if log == nil {
		log = logger.NewDefault(name)
	}
	return &refresher{
		name:     name,
		interval: interval,
		run:      run,
		log:      log,
	}
}

// start begins periodic execution. Idempotent.
func (r *refresher) start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	c := cron.New()
	c.Schedule(cron.Every(r.interval), cron.FuncJob(func() {
		r.trigger(ctx)
	}))
	c.Start()
	r.cron = c
	r.running = true
	r.log.WithField("interval", r.interval.String()).Info("refresher started")
}

// stop cancels the schedule. A refresh already in flight is not aborted;
// its result is dropped by the controller's closed check.
func (r *refresher) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cron.Stop()
	r.cron = nil
	r.running = false
	r.log.Info("refresher stopped")
}

// trigger runs one refresh unless one is already in flight.
func (r *refresher) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Debug("refresh already in flight, coalescing trigger")
		return
	}
	defer r.inFlight.Store(false)
	r.run(ctx)
}

// triggerAsync fires a refresh without blocking the caller, used for
// user-initiated refreshes such as switching back to the dashboard page.
func (r *refresher) triggerAsync(ctx context.Context) {
	go r.trigger(ctx)
}
