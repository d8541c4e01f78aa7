package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"settlement-service/metrics"
	aws_pkg "settlement-service/pkg/aws"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 60 * time.Second

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

// Schedule yields the next fire time strictly after the given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

type interval time.Duration

// Every fires at a fixed interval measured from the previous fire.
func Every(d time.Duration) Schedule { return interval(d) }

func (i interval) Next(after time.Time) time.Time { return after.Add(time.Duration(i)) }

type daily struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt fires once a day at hour:minute wall-clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return daily{hour: hour, minute: minute, loc: loc}
}

func (d daily) Next(after time.Time) time.Time {
	t := after.In(d.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

type entry struct {
	job      Job
	schedule Schedule
	running  atomic.Bool
}

// Config tunes a Scheduler. Zero values fall back to defaults.
type Config struct {
	Timeout time.Duration
	Now     func() time.Time
}

// Scheduler runs registered jobs on their schedules and on demand. A job
// never overlaps itself within one process.
type Scheduler struct {
	mu      sync.RWMutex
	entries map[string]*entry
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Collectors
	cw      aws_pkg.MetricsRecorder
}

// New creates a Scheduler. m and cw may be nil.
func New(cfg Config, logger *zap.Logger, m *metrics.Collectors, cw aws_pkg.MetricsRecorder) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		timeout: cfg.Timeout,
		now:     cfg.Now,
		logger:  logger,
		metrics: m,
		cw:      cw,
	}
}

// Register adds a job. A nil schedule makes the job trigger-only.
func (s *Scheduler) Register(job Job, schedule Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[job.Name()] = &entry{job: job, schedule: schedule}
}

// Jobs lists the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunOnce runs the named job immediately.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

// Start runs every scheduled job until ctx is cancelled and waits for
// in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	var wg sync.WaitGroup
	for _, e := range s.entries {
		if e.schedule == nil {
			continue
		}
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	s.mu.RUnlock()

	s.logger.Info("Scheduler started", zap.Strings("jobs", s.Jobs()))
	wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	next := e.schedule.Next(s.now())
	s.logger.Debug("Job scheduled", zap.String("job", e.job.Name()), zap.Time("next_run", next))

	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.run(ctx, e); errors.Is(err, ErrJobRunning) {
			s.logger.Warn("Skipping run, previous run still in progress", zap.String("job", e.job.Name()))
		}
		next = e.schedule.Next(next)
		if now := s.now(); next.Before(now) {
			next = e.schedule.Next(now)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	defer e.running.Store(false)

	name := e.job.Name()
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err := e.job.Run(runCtx, start)
	elapsed := time.Since(start)

	s.metrics.ObserveJob(name, elapsed, err)
	if s.cw != nil {
		_ = s.cw.RecordLatency(ctx, aws_pkg.MetricJobDuration, elapsed, map[string]string{"Job": name})
	}

	if err != nil {
		s.logger.Error("Job failed", zap.String("job", name), zap.Duration("duration", elapsed), zap.Error(err))
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.logger.Debug("Job finished", zap.String("job", name), zap.Duration("duration", elapsed))
	return nil
}
