package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/queue"
)

const (
	sweepSpec   = "0 0 * * * *" // hourly
	cleanupSpec = "0 30 3 * * *"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	log   zerolog.Logger
}

func NewScheduler(queue Enqueuer, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(sweepSpec, func() { s.enqueue(queue.TaskStorageSweep) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(cleanupSpec, func() { s.enqueue(queue.TaskSessionCleanup) }); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueue(taskType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := s.queue.Enqueue(ctx, taskType, struct{}{})
	if err != nil {
		s.log.Error().Err(err).Str("type", taskType).Msg("enqueue scheduled task failed")
		return
	}
	s.log.Debug().Str("type", taskType).Str("task_id", id).Msg("scheduled task enqueued")
}
