package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/soukmarket/settlement/internal/application/services"
)

// EscalationWorker bumps tickets nobody has touched past the stale cutoff.
type EscalationWorker struct {
	tickets   *services.TicketService
	batchSize int
	logger    *slog.Logger
}

func NewEscalationWorker(tickets *services.TicketService, batchSize int, logger *slog.Logger) *EscalationWorker {
	return &EscalationWorker{
		tickets:   tickets,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *EscalationWorker) RunOnce(ctx context.Context) error {
	escalated, err := w.tickets.EscalateStale(ctx, time.Now(), w.batchSize)
	if err != nil {
		return err
	}

	if escalated > 0 {
		w.logger.Info("escalated stale tickets", "escalated", escalated)
	}
	return nil
}
