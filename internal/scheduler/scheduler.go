package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work.
type Job interface {
	// GetName is used in logs and for on-demand runs.
	GetName() string

	// GetSchedule returns a cron expression ("@every 1h", "0 3 * * *"). Empty means on-demand only.
	GetSchedule() string

	Execute(ctx context.Context) error
}

// Scheduler runs registered jobs on their cron schedules. A job still running when its next
// tick fires is skipped rather than run twice.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Register(job Job) error {
	s.jobs = append(s.jobs, job)
	log := s.log.WithField("job", job.GetName())

	schedule := job.GetSchedule()
	if schedule == "" {
		log.Info("job registered for on-demand runs only")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %s with %q: %w", job.GetName(), schedule, err)
	}
	log.WithField("schedule", schedule).Info("job scheduled")
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	log := s.log.WithField("job", job.GetName())
	start := time.Now()

	err := job.Execute(ctx)
	if err != nil {
		log.WithError(err).WithField("duration", time.Since(start)).Error("job failed")
		return err
	}
	log.WithField("duration", time.Since(start)).Info("job completed")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
	s.log.Info("scheduler stopped")
}

// RunByName executes a registered job immediately, outside its schedule.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.GetName() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q is not registered", name)
}

func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.GetName()
	}
	return names
}
