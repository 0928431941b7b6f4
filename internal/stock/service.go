package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/catalog"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock mutations. Every mutation pairs the product
// lookup, the stock write and the ledger write inside one transaction; the
// three commit together or not at all.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// DecreaseStock consumes stock for a frame product. Lens variants pass
// through unchanged. Decreasing below zero fails without any partial write.
func (s *Service) DecreaseStock(ctx context.Context, input MovementInput) (*catalog.Product, error) {
	return s.move(ctx, input, OperationDecrease)
}

// IncreaseStock restores stock for a frame product, with no upper bound.
func (s *Service) IncreaseStock(ctx context.Context, input MovementInput) (*catalog.Product, error) {
	return s.move(ctx, input, OperationIncrease)
}

func (s *Service) move(ctx context.Context, input MovementInput, op Operation) (*catalog.Product, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	productID, err := uuid.Parse(input.ProductID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	performedBy := NormalizeActorID(input.PerformedBy)

	var product *catalog.Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		product, err = s.apply(ctx, tx, productID, input.Quantity, op, input.Reason, performedBy, input.OrderID)
		return err
	})
	if err != nil {
		return nil, wrapStockErr(err)
	}

	if s.audit != nil && product.HasStock() {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  performedBy.String(),
			Action:   fmt.Sprintf("stock:%s", op),
			Entity:   "product",
			EntityID: productID.String(),
			Meta: map[string]any{
				"quantity": input.Quantity,
				"reason":   input.Reason,
			},
		})
	}
	return product, nil
}

// apply performs one movement against an open transaction.
func (s *Service) apply(ctx context.Context, tx TxRepository, productID uuid.UUID, quantity int, op Operation, reason string, performedBy uuid.UUID, orderID *uuid.UUID) (*catalog.Product, error) {
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	// Stock semantics do not apply to lens variants.
	if !product.HasStock() {
		return product, nil
	}

	current := product.StockOrZero()
	mode := catalog.StockModeAdd
	newStock := current + quantity
	if op == OperationDecrease {
		if current < quantity {
			return nil, &InsufficientStockError{Available: current, Required: quantity}
		}
		mode = catalog.StockModeSubtract
		newStock = current - quantity
	}

	updated, err := tx.UpdateStock(ctx, productID, quantity, mode)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrStockUpdateFailed
	}

	entry := LogEntry{
		ID:            uuid.New(),
		ProductID:     productID,
		OrderID:       orderID,
		PreviousStock: current,
		NewStock:      newStock,
		Quantity:      quantity,
		Operation:     op,
		Reason:        reason,
		PerformedBy:   performedBy,
	}
	if err := tx.InsertLogEntry(ctx, entry); err != nil {
		// Ledger writes are deliberately non-fatal: a history gap is
		// preferred over rejecting the sale.
		s.logger.Warn("stock log write failed",
			slog.String("product_id", productID.String()),
			slog.Any("error", err),
		)
	}
	return updated, nil
}

// ProcessOrderProducts applies the operation to every line item, attempting
// all items even after failures, and raises one aggregated error at the end.
func (s *Service) ProcessOrderProducts(ctx context.Context, items []OrderItem, op Operation, performedBy string, orderID *uuid.UUID) error {
	reason := "order created"
	if op == OperationIncrease {
		reason = "order cancelled"
	}

	var failures []ItemFailure
	for _, item := range items {
		input := MovementInput{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Reason:      reason,
			PerformedBy: performedBy,
			OrderID:     orderID,
		}
		var err error
		if op == OperationDecrease {
			_, err = s.DecreaseStock(ctx, input)
		} else {
			_, err = s.IncreaseStock(ctx, input)
		}
		if err != nil {
			failures = append(failures, ItemFailure{ProductID: item.ProductID, Err: err})
		}
	}
	if len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	return nil
}

// ProcessOrderProductsAtomic applies every line item inside a single
// transaction: the first failure aborts the whole batch and no stock moves.
func (s *Service) ProcessOrderProductsAtomic(ctx context.Context, items []OrderItem, op Operation, performedBy string, orderID *uuid.UUID) error {
	reason := "order created"
	if op == OperationIncrease {
		reason = "order cancelled"
	}
	actor := NormalizeActorID(performedBy)

	parsed := make([]struct {
		id  uuid.UUID
		qty int
	}, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return ErrInvalidProductID
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		parsed = append(parsed, struct {
			id  uuid.UUID
			qty int
		}{id, qty})
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range parsed {
			if _, err := s.apply(ctx, tx, item.id, item.qty, op, reason, actor, orderID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapStockErr(err)
	}
	return nil
}

// CheckStockAvailability is a read-only dry run returning the items whose
// available stock is below the required quantity. Items whose product lookup
// fails are reported with Available=0. Nothing is mutated.
func (s *Service) CheckStockAvailability(ctx context.Context, items []OrderItem) ([]Shortage, error) {
	var shortages []Shortage
	for _, item := range items {
		required := item.Quantity
		if required <= 0 {
			required = 1
		}
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			shortages = append(shortages, Shortage{ProductID: item.ProductID, Available: 0, Required: required})
			continue
		}
		product, err := s.repo.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				shortages = append(shortages, Shortage{ProductID: item.ProductID, Available: 0, Required: required})
				continue
			}
			return nil, err
		}
		if !product.HasStock() {
			continue
		}
		if available := product.StockOrZero(); available < required {
			shortages = append(shortages, Shortage{ProductID: item.ProductID, Available: available, Required: required})
		}
	}
	return shortages, nil
}

// UpdateProductStock sets a frame product's stock to an absolute value,
// outside the order flow, still producing a ledger entry.
func (s *Service) UpdateProductStock(ctx context.Context, productID string, newStock int, reason, performedBy string) (*catalog.Product, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	if newStock < 0 {
		return nil, ErrNegativeStock
	}
	actor := NormalizeActorID(performedBy)

	var product *catalog.Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return ErrProductNotFound
			}
			return err
		}
		if !current.HasStock() {
			return ErrNoStockControl
		}

		previous := current.StockOrZero()
		if previous == newStock {
			product = current
			return nil
		}

		updated, err := tx.UpdateStock(ctx, id, newStock, catalog.StockModeSet)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrStockUpdateFailed
		}

		op := OperationIncrease
		quantity := newStock - previous
		if quantity < 0 {
			op = OperationDecrease
			quantity = -quantity
		}
		entry := LogEntry{
			ID:            uuid.New(),
			ProductID:     id,
			PreviousStock: previous,
			NewStock:      newStock,
			Quantity:      quantity,
			Operation:     op,
			Reason:        reason,
			PerformedBy:   actor,
		}
		if err := tx.InsertLogEntry(ctx, entry); err != nil {
			s.logger.Warn("stock log write failed",
				slog.String("product_id", id.String()),
				slog.Any("error", err),
			)
		}
		product = updated
		return nil
	})
	if err != nil {
		return nil, wrapStockErr(err)
	}
	return product, nil
}

// History returns recent ledger entries for a product, newest first.
func (s *Service) History(ctx context.Context, productID string, limit int) ([]LogEntry, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	return s.repo.ListLogEntries(ctx, LogFilter{ProductID: id, Limit: limit})
}

// wrapStockErr passes domain errors through and wraps anything unexpected.
func wrapStockErr(err error) error {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient),
		errors.Is(err, ErrInvalidProductID),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrStockUpdateFailed),
		errors.Is(err, ErrNoStockControl),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrNegativeStock):
		return err
	}
	return fmt.Errorf("%w: %v", ErrOperation, err)
}
