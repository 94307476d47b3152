// Package schedule runs the SLA sweep on a cron schedule.
package schedule

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"escalator/internal/domain"
)

type Sweeper interface {
	RunSLASweep(ctx context.Context) (domain.Result, error)
}

type Scheduler struct {
	spec    string
	sched   cron.Schedule
	loc     *time.Location
	sweeper Sweeper
	timeout time.Duration

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New parses spec as a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), evaluated in loc.
// Examples: "*/15 * * * *" (every 15 minutes), "0 * * * 1-5" (hourly on weekdays).
func New(spec string, loc *time.Location, sweeper Sweeper, timeout time.Duration) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		spec:    spec,
		sched:   sched,
		loc:     loc,
		sweeper: sweeper,
		timeout: timeout,
		now:     time.Now,
		after:   time.After,
	}, nil
}

// Run fires a sweep at every scheduled time until ctx is done. A sweep that
// outlasts the interval does not delay the next one; overlapping sweeps are
// safe because the ledger arbitrates. Run waits for in-flight sweeps before
// returning.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("SLA sweep scheduled (cron: %s, tz: %s)", s.spec, s.loc)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		now := s.now().In(s.loc)
		next := s.sched.Next(now)
		wait := next.Sub(now)
		log.Printf("Next SLA sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Second))

		select {
		case <-ctx.Done():
			log.Printf("SLA sweep scheduler stopped: %v", ctx.Err())
			return
		case <-s.after(wait):
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runOnce(ctx)
		}()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.sweeper.RunSLASweep(ctx)
	if err != nil {
		log.Printf("Scheduled SLA sweep error: %v", err)
		return
	}
	sent, _, failed := res.Counts()
	log.Printf("Scheduled SLA sweep complete: run=%s processed=%d notified=%d sent=%d failed=%d",
		res.RunID, res.Processed, len(res.Notified), sent, failed)
}
