package worker

import (
	"context"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/soukmarket/settlement/internal/config"
)

// Scheduler runs the workers on their configured intervals under one gocron
// scheduler so main has a single thing to start and shut down.
type Scheduler struct {
	inner  gocron.Scheduler
	logger *slog.Logger
}

func NewScheduler(
	settle *SettlementWorker,
	escalate *EscalationWorker,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) (*Scheduler, error) {
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = inner.NewJob(
		gocron.DurationJob(cfg.SettleInterval),
		gocron.NewTask(func(ctx context.Context) {
			if err := settle.RunOnce(ctx); err != nil {
				logger.Error("settlement sweep failed", "error", err)
			}
		}),
		gocron.WithName("order-settlement"),
	)
	if err != nil {
		return nil, err
	}

	_, err = inner.NewJob(
		gocron.DurationJob(cfg.EscalateInterval),
		gocron.NewTask(func(ctx context.Context) {
			if err := escalate.RunOnce(ctx); err != nil {
				logger.Error("ticket escalation failed", "error", err)
			}
		}),
		gocron.WithName("ticket-escalation"),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{inner: inner, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("background workers started")
	s.inner.Start()
}

func (s *Scheduler) Shutdown() error {
	s.logger.Info("background workers stopping")
	return s.inner.Shutdown()
}
