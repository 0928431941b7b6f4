package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/catalog"
	"github.com/optica-erp/optica-erp/internal/relations"
	"github.com/optica-erp/optica-erp/internal/stock"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIntegrityScan checks frame stock levels against the ledger.
	TaskStockIntegrityScan = "stock:integrity_scan"
	// TaskDebtWarmup pre-loads the debt cache for accounts with a balance.
	TaskDebtWarmup = "relations:debt_warmup"
)

// StockIntegrityPayload narrows the scan to one product when set.
type StockIntegrityPayload struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}

// NewStockIntegrityTask constructs the nightly integrity scan task.
func NewStockIntegrityTask(payload StockIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIntegrityScan, data), nil
}

// NewDebtWarmupTask constructs the debt cache warmup task.
func NewDebtWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDebtWarmup, nil)
}

// FrameLister enumerates stock-tracked products.
type FrameLister interface {
	ListFrames(ctx context.Context) ([]catalog.Product, error)
}

// LedgerReader reads recent stock movements.
type LedgerReader interface {
	ListLogEntries(ctx context.Context, filter stock.LogFilter) ([]stock.LogEntry, error)
}

// NewStockIntegrityHandler compares each frame's stored stock against the
// newest ledger entry and reports drift. Ledger writes are non-fatal on the
// hot path, so a gap here is expected occasionally; the scan surfaces it.
func NewStockIntegrityHandler(frames FrameLister, ledger LedgerReader, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockIntegrityPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}

		products, err := frames.ListFrames(ctx)
		if err != nil {
			return err
		}

		drifted := 0
		for _, product := range products {
			if payload.ProductID != nil && product.ID != *payload.ProductID {
				continue
			}
			entries, err := ledger.ListLogEntries(ctx, stock.LogFilter{ProductID: product.ID, Limit: 1})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				continue
			}
			if entries[0].NewStock != product.StockOrZero() {
				drifted++
				logger.Warn("stock drift detected",
					slog.String("product_id", product.ID.String()),
					slog.Int("stored", product.StockOrZero()),
					slog.Int("ledger", entries[0].NewStock),
				)
			}
		}
		logger.Info("stock integrity scan finished",
			slog.Int("frames", len(products)),
			slog.Int("drifted", drifted),
		)
		return nil
	}
}

// DebtorLister enumerates accounts with an outstanding balance.
type DebtorLister interface {
	ListDebtorIDs(ctx context.Context) ([]uuid.UUID, error)
}

// NewDebtWarmupHandler reloads the debt cache through the relations service so
// the first balance lookup after the nightly invalidation window stays cheap.
func NewDebtWarmupHandler(debtors DebtorLister, svc *relations.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		ids, err := debtors.ListDebtorIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := svc.RecalculateClientDebt(ctx, id); err != nil {
				logger.Warn("debt warmup lookup failed",
					slog.String("client_id", id.String()),
					slog.Any("error", err),
				)
			}
		}
		logger.Info("debt warmup finished", slog.Int("clients", len(ids)))
		return nil
	}
}
