package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// Scheduler wraps a gocron scheduler running the periodic rebuild.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu   sync.Mutex
	job  gocron.Job
	task func()
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running task.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePeriodicBuild runs task every interval. Runs never overlap; a run
// due while the previous one is still going is skipped. With immediate the
// first run starts as soon as the scheduler does. Returns the job ID.
func (s *Scheduler) SchedulePeriodicBuild(interval time.Duration, task func(), immediate bool) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("invalid rebuild interval %s", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := []gocron.JobOption{
		gocron.WithName("periodic-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(task), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic build job: %w", err)
	}
	s.job = job
	s.task = task
	return job.ID().String(), nil
}

// Reschedule changes the interval of the periodic build.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid rebuild interval %s", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return fmt.Errorf("no periodic build scheduled")
	}
	job, err := s.scheduler.Update(s.job.ID(), gocron.DurationJob(interval), gocron.NewTask(s.task),
		gocron.WithName("periodic-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("failed to reschedule periodic build: %w", err)
	}
	s.job = job
	slog.Info("Rescheduled periodic build", logfields.ScheduleID(job.ID().String()), slog.Duration("interval", interval))
	return nil
}

// NextRun returns when the periodic build runs next. Zero when unscheduled.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}
	}
	next, err := s.job.NextRun()
	if err != nil {
		return time.Time{}
	}
	return next
}
