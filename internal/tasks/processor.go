package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/mail"
	"github.com/Kouriin1/Servicio-Comunitario/internal/metrics"
	"github.com/Kouriin1/Servicio-Comunitario/internal/queue"
	"github.com/Kouriin1/Servicio-Comunitario/internal/storage"
)

const sweepBatch = 100

type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

type OrphanSweeper interface {
	Sweep(ctx context.Context, remover storage.Remover, batch int64, log zerolog.Logger) (int, error)
}

type SessionCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Processor dispatches queued tasks to their handlers.
type Processor struct {
	mailer   Sender
	orphans  OrphanSweeper
	objects  storage.Remover
	sessions SessionCleaner
	logger   zerolog.Logger
}

func NewProcessor(mailer Sender, orphans OrphanSweeper, objects storage.Remover, sessions SessionCleaner, logger zerolog.Logger) *Processor {
	return &Processor{
		mailer:   mailer,
		orphans:  orphans,
		objects:  objects,
		sessions: sessions,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	var err error
	switch task.Type {
	case queue.TaskRecoveryMail:
		err = p.handleMail(ctx, task, mail.RecoveryMessage)
	case queue.TaskConfirmMail:
		err = p.handleMail(ctx, task, mail.ConfirmationMessage)
	case queue.TaskStorageSweep:
		err = p.handleSweep(ctx)
	case queue.TaskSessionCleanup:
		err = p.handleSessionCleanup(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("task_id", task.ID).Msg("unknown task type")
		metrics.TasksProcessed.WithLabelValues("unknown", "skipped").Inc()
		return nil
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.TasksProcessed.WithLabelValues(task.Type, result).Inc()
	return err
}

func (p *Processor) handleMail(ctx context.Context, task queue.Task, build func(to, name, link string) mail.Message) error {
	var payload queue.MailPayload
	if err := task.Decode(&payload); err != nil {
		return err
	}
	if payload.To == "" || payload.Link == "" {
		return fmt.Errorf("%w: mail task %s lacks recipient or link", queue.ErrMalformedTask, task.ID)
	}
	return p.mailer.Send(ctx, build(payload.To, payload.Name, payload.Link))
}

func (p *Processor) handleSweep(ctx context.Context) error {
	removed, err := p.orphans.Sweep(ctx, p.objects, sweepBatch, p.logger)
	if removed > 0 {
		metrics.OrphansRemoved.Add(float64(removed))
	}
	if err != nil {
		return fmt.Errorf("storage sweep: %w", err)
	}
	p.logger.Info().Int("removed", removed).Msg("storage sweep finished")
	return nil
}

func (p *Processor) handleSessionCleanup(ctx context.Context) error {
	deleted, err := p.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("session cleanup: %w", err)
	}
	p.logger.Info().Int64("deleted", deleted).Msg("expired sessions removed")
	return nil
}
