package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer expires stale pending challenges.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs background maintenance jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

// New registers the expiry sweep to run every interval. Overlapping runs are skipped.
func New(expirer Expirer, interval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { Sweep(context.Background(), expirer, time.Now()) }),
		gocron.WithName("expire-stale-challenges"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	log.Printf("scheduler: %d jobs registered", len(sched.Jobs()))
	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// Sweep runs one expiry pass.
func Sweep(ctx context.Context, expirer Expirer, now time.Time) {
	expired, err := expirer.ExpireStale(ctx, now)
	if err != nil {
		log.Printf("scheduler: expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("scheduler: expired %d stale challenges", expired)
	}
}
