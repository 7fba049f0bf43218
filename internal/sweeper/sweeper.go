// Package sweeper times out help requests no supervisor answered.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shubh-37/blown-salon-voice-agent/internal/escalation"
	"github.com/shubh-37/blown-salon-voice-agent/internal/hub"
)

// Defaults for the sweep cadence and the pending-request age limit.
const (
	DefaultInterval  = time.Hour
	DefaultThreshold = 24 * time.Hour
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Opts configures a Sweeper.
type Opts struct {
	Escalations *escalation.Service
	Dashboard   *hub.Hub // may be nil; timeouts are then not announced

	Interval  time.Duration // fixed period between passes
	Schedule  string        // optional cron expression, overrides Interval
	Threshold time.Duration // pending age beyond which a request times out

	Now func() time.Time // test clock
}

// Sweeper periodically scans pending requests and fires the timeout
// transition on stale ones. The lifecycle service's conditional update
// guarantees a request resolved in the same instant keeps exactly one
// outcome.
type Sweeper struct {
	esc       *escalation.Service
	dashboard *hub.Hub
	interval  time.Duration
	schedule  cron.Schedule
	threshold time.Duration
	now       func() time.Time
}

// New creates a sweeper. Returns an error only for an unparseable cron
// schedule.
func New(opts Opts) (*Sweeper, error) {
	if opts.Escalations == nil {
		return nil, fmt.Errorf("sweeper: escalation service is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Sweeper{
		esc:       opts.Escalations,
		dashboard: opts.Dashboard,
		interval:  opts.Interval,
		threshold: opts.Threshold,
		now:       opts.Now,
	}
	if opts.Schedule != "" {
		sched, err := cronParser.Parse(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("sweeper: parse schedule %q: %w", opts.Schedule, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Run blocks until ctx is cancelled, sweeping at the configured
// cadence. Sweep failures are logged and retried at the next pass; the
// loop never terminates on error.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.next()):
			if err := s.Sweep(); err != nil {
				log.Printf("sweeper: %v", err)
			}
		}
	}
}

// next returns the wait before the following pass.
func (s *Sweeper) next() time.Duration {
	if s.schedule != nil {
		d := time.Until(s.schedule.Next(s.now()))
		if d > 0 {
			return d
		}
	}
	return s.interval
}

// Sweep runs one pass: every pending request older than the threshold
// is transitioned to timeout and announced on the dashboard channel.
func (s *Sweeper) Sweep() error {
	pending, err := s.esc.Pending()
	if err != nil {
		return fmt.Errorf("sweeper: list pending: %w", err)
	}

	now := s.now()
	for _, req := range pending {
		if now.Sub(req.CreatedAt) <= s.threshold {
			continue
		}

		ok, err := s.esc.Timeout(req.ID)
		if err != nil {
			log.Printf("sweeper: timeout %s: %v", req.ID, err)
			continue
		}
		if !ok {
			// Lost the race to a concurrent resolve; nothing to announce.
			continue
		}
		log.Printf("sweeper: request %s timed out after %s pending", req.ID, now.Sub(req.CreatedAt).Round(time.Minute))

		if s.dashboard != nil {
			s.dashboard.Broadcast(hub.NewRequestTimeout(req.ID))
			if stats, err := s.esc.Stats(); err == nil {
				s.dashboard.Broadcast(hub.NewStatsUpdate(stats))
			}
		}
	}
	return nil
}
