// Package scheduler dispatches recurring sync runs. A job is scheduled
// only while an account is logged in, runs immediately when scheduled,
// and skips ticks while the network is unreachable. Runs execute one at
// a time on the scheduler goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/models"
)

// Runner executes one sync run.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Credentials reports the stored login state.
type Credentials interface {
	Load(ctx context.Context) (*models.AuthTicket, *models.User)
}

// Checker is the network-connectivity precondition for a tick.
type Checker interface {
	Online(ctx context.Context) bool
}

// Scheduler owns the recurring job. Schedule, Cancel and NextRun may be
// called from any goroutine.
type Scheduler struct {
	runner   Runner
	creds    Credentials
	checker  Checker
	interval time.Duration
	rec      metrics.Recorder
	log      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	nextRun time.Time
}

// New constructs a Scheduler dispatching runner every interval.
func New(runner Runner, creds Credentials, checker Checker, interval time.Duration, rec metrics.Recorder, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		creds:    creds,
		checker:  checker,
		interval: interval,
		rec:      rec,
		log:      log,
	}
}

// Schedule cancels any previous job and starts a new one, so calling it
// again is a reschedule, not a second job. It refuses to schedule while
// no ticket is stored and reports whether a job was started. The first
// run happens immediately, then every interval until ctx is done or
// Cancel is called.
func (s *Scheduler) Schedule(ctx context.Context) bool {
	s.Cancel()

	if ticket, _ := s.creds.Load(ctx); ticket == nil {
		s.log.Info("not logged in, sync job not scheduled")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.nextRun = time.Now().Add(s.interval)

	s.log.Info("sync job scheduled", zap.Duration("interval", s.interval))

	go func() {
		defer close(done)
		defer s.clearNextRun()

		s.tick(runCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.setNextRun(time.Now().Add(s.interval))
				s.tick(runCtx)
			}
		}
	}()

	return true
}

// Cancel stops the current job, if any, and waits for an in-flight run
// to return.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("sync job cancelled")
}

// NextRun reports when the next run is due, false when no job is
// scheduled.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun, !s.nextRun.IsZero()
}

func (s *Scheduler) setNextRun(at time.Time) {
	s.mu.Lock()
	s.nextRun = at
	s.mu.Unlock()
}

func (s *Scheduler) clearNextRun() { s.setNextRun(time.Time{}) }

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.checker.Online(ctx) {
		s.log.Info("skipping sync run while offline")
		s.rec.RecordSyncSkipped()
		return
	}
	// Run outcome is logged and counted by the runner.
	_ = s.runner.RunOnce(ctx)
}
