package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// staleSweeps is how many missed intervals make the sweeper unhealthy.
const staleSweeps = 3

// Sweeper runs Limiter.Sweep on a fixed interval in the background. A panic
// inside one sweep is logged and the next interval sweeps again.
type Sweeper struct {
	interval time.Duration
	cron     *cron.Cron
	log      zerolog.Logger

	sweep   func() SweepResult
	onSweep func(SweepResult)

	lastSweep atomic.Int64 // unix nanos
}

// NewSweeper schedules sweeps of l every cfg.SweepInterval (whole seconds,
// minimum one). onSweep, if set, observes every completed sweep.
func NewSweeper(l *Limiter, log zerolog.Logger, onSweep func(SweepResult)) *Sweeper {
	interval := l.Config().SweepInterval.Truncate(time.Second)
	if interval < time.Second {
		interval = time.Second
	}
	s := &Sweeper{
		interval: interval,
		log:      log.With().Str("component", "sweeper").Logger(),
		sweep:    l.Sweep,
		onSweep:  onSweep,
	}
	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.run))
	return s
}

func (s *Sweeper) Start() {
	s.lastSweep.Store(time.Now().UnixNano())
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
}

// Stop halts scheduling and waits for an in-flight sweep to return.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	res := s.sweep()
	s.lastSweep.Store(time.Now().UnixNano())
	if s.onSweep != nil {
		s.onSweep(res)
	}
	if res.Expired > 0 || res.Evicted > 0 {
		s.log.Debug().
			Int("expired", res.Expired).
			Int("evicted", res.Evicted).
			Int("remaining", res.Remaining).
			Msg("sweep")
	}
}

// LastSweep is the wall time of the last completed sweep (or of Start).
func (s *Sweeper) LastSweep() time.Time {
	return time.Unix(0, s.lastSweep.Load())
}

// Healthy reports whether a sweep completed within the last few intervals.
func (s *Sweeper) Healthy(now time.Time) bool {
	last := s.lastSweep.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) <= staleSweeps*s.interval
}

// cronLogger routes cron's own logging into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
