// Package worker holds the background sweeps: automatic order settlement and
// stale ticket escalation. Each worker owns one run's logic; the Scheduler
// decides when runs happen.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/soukmarket/settlement/internal/application/services"
)

// SettlementWorker drives the periodic order settlement sweep.
type SettlementWorker struct {
	settlements *services.SettlementService
	logger      *slog.Logger
}

func NewSettlementWorker(settlements *services.SettlementService, logger *slog.Logger) *SettlementWorker {
	return &SettlementWorker{
		settlements: settlements,
		logger:      logger,
	}
}

// RunOnce executes a single sweep. Per-order failures are already absorbed and
// logged by the service; an error here means the batch query itself failed.
func (w *SettlementWorker) RunOnce(ctx context.Context) error {
	start := time.Now()

	settled, err := w.settlements.SettleDeliveredOrders(ctx, start)
	if err != nil {
		return err
	}

	if settled > 0 {
		w.logger.Info("settlement sweep finished",
			"settled", settled,
			"duration", time.Since(start))
	}
	return nil
}
