package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"appointment-checker/internal/utils/logger"
)

// Job is one probe-and-notify cycle.
type Job func(ctx context.Context)

// Scheduler runs a Job until it decides to stop or ctx is cancelled.
// Runs never overlap.
type Scheduler interface {
	Run(ctx context.Context, job Job) error
}

// Once runs the job a single time, for cron-style external triggering.
type Once struct{}

func (Once) Run(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return nil
	}
	job(ctx)
	return nil
}

// Interval runs the job, sleeps for Every, and repeats until ctx is cancelled.
type Interval struct {
	Every time.Duration
	Log   *logger.Logger
}

func (s Interval) Run(ctx context.Context, job Job) error {
	if s.Every <= 0 {
		return fmt.Errorf("interval must be positive, got %s", s.Every)
	}
	s.log().Infof("starting continuous monitoring (every %s)", s.Every)

	for {
		if ctx.Err() != nil {
			break
		}
		job(ctx)
		if ctx.Err() != nil {
			break
		}

		s.log().Infof("next check in %s", s.Every)
		select {
		case <-ctx.Done():
		case <-time.After(s.Every):
		}
	}
	s.log().Infof("stopping checker")
	return nil
}

func (s Interval) log() *logger.Logger {
	if s.Log == nil {
		return logger.Discard()
	}
	return s.Log
}

// Cron runs the job immediately and then on Spec (five fields, minute first).
// A tick that fires while a cycle is still running is skipped.
type Cron struct {
	Spec string
	Log  *logger.Logger
}

func (s Cron) Run(ctx context.Context, job Job) error {
	log := s.Log
	if log == nil {
		log = logger.Discard()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(s.Spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.Spec, err)
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		if ctx.Err() == nil {
			job(ctx)
		}
	}))

	log.Infof("starting scheduled monitoring (%s)", s.Spec)
	wrapped.Run()

	c := cron.New(cron.WithParser(parser))
	c.Schedule(schedule, wrapped)
	c.Start()
	if next := schedule.Next(time.Now()); !next.IsZero() {
		log.Infof("next check at %s", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	log.Infof("stopping checker")
	<-c.Stop().Done()
	return nil
}
