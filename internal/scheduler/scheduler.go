package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fireshare/internal/logging"
)

// ErrStopped is returned by Trigger after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Job is a unit of scheduled work. The context is cancelled on Stop.
type Job func(ctx context.Context)

// Scheduler runs jobs on cron schedules. A job never overlaps with itself:
// a run that fires while the previous one is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	entries   map[string]cron.EntryID
	stopped   bool
	triggered sync.WaitGroup
}

// New creates a stopped Scheduler. Jobs receive a context derived from ctx.
func New(ctx context.Context) *Scheduler {
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(ctx)

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateSchedule checks a standard five-field cron expression or
// descriptor such as "@every 5m".
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Add registers job under name.
func (s *Scheduler) Add(name, expr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already scheduled", name)
	}

	id, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		logging.Debug("Scheduled job %s starting", name)
		job(s.ctx)
		logging.Debug("Scheduled job %s finished in %v", name, time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", expr, name, err)
	}

	s.entries[name] = id
	logging.Info("Scheduled %s (%s)", name, expr)
	return nil
}

// Trigger runs the named job now in the background, subject to the same
// overlap rule as scheduled runs.
func (s *Scheduler) Trigger(name string) error {
	entry, err := s.entry(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.triggered.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.triggered.Done()
		entry.WrappedJob.Run()
	}()
	return nil
}

// Next returns the next scheduled run of the named job. It is zero until
// the scheduler has started.
func (s *Scheduler) Next(name string) (time.Time, error) {
	entry, err := s.entry(name)
	if err != nil {
		return time.Time{}, err
	}
	return entry.Next, nil
}

func (s *Scheduler) entry(name string) (cron.Entry, error) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return cron.Entry{}, fmt.Errorf("job %q not scheduled", name)
	}
	return s.cron.Entry(id), nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs' context and waits up to timeout for both
// scheduled and triggered runs to return.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.triggered.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logging.Warn("Scheduled jobs did not finish within %v", timeout)
	}
}

// cronLogger adapts cron's logger to the logging package.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if logging.IsDebugEnabled() {
		logging.Debug("cron: %s %v", msg, keysAndValues)
	}
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
