package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/accounts"
	"github.com/optica-erp/optica-erp/internal/relations"
	"github.com/optica-erp/optica-erp/internal/shared"
	"github.com/optica-erp/optica-erp/internal/stock"
)

// StockEngine is the slice of the stock service the orchestrator drives.
type StockEngine interface {
	ProcessOrderProducts(ctx context.Context, items []stock.OrderItem, op stock.Operation, performedBy string, orderID *uuid.UUID) error
}

// RelationshipLedger maintains the order-derived aggregates.
type RelationshipLedger interface {
	UpdateOrderRelationships(ctx context.Context, order relations.OrderData) error
	RemoveOrderRelationships(ctx context.Context, order relations.OrderData) error
}

// RepositoryPort persists orders.
type RepositoryPort interface {
	Create(ctx context.Context, ord *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, ord *Order) error
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error
}

// ListFilter restricts order listings.
type ListFilter struct {
	ClientID *uuid.UUID
	Status   *Status
	Page     int
	PerPage  int
}

// UpdateInput is a partial edit of an order. Nil fields are left untouched.
type UpdateInput struct {
	Items        *[]Item
	TotalPrice   *float64
	Discount     *float64
	PaymentEntry *float64
	Installments *int
	DeliveryDate *time.Time
	Observations *string
	Prescription *Prescription
}

// Service orchestrates the order workflows: it validates, persists, drives the
// stock engine per line item and keeps the relationship ledger in sync. Stock
// and relationship state is never written directly from here.
type Service struct {
	repo      RepositoryPort
	validator *Validator
	stock     StockEngine
	relations RelationshipLedger
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, validator *Validator, stockEngine StockEngine, ledger RelationshipLedger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validator: validator, stock: stockEngine, relations: ledger, logger: logger}
}

// CreateOrder validates and persists a new order, consumes stock for each line
// item and records the relationship effects. Stock failures after the order is
// persisted fail the call without deleting the order; the persisted order is
// left for reconciliation rather than silently rolled back.
func (s *Service) CreateOrder(ctx context.Context, ord *Order) (*Order, error) {
	if ord.Status == "" {
		ord.Status = StatusPending
	}
	if err := s.validator.ValidateOrder(ctx, ord); err != nil {
		return nil, orchestrateErr(err)
	}

	if ord.ID == uuid.Nil {
		ord.ID = uuid.New()
	}
	ord.RecomputeFinalPrice()
	if err := s.repo.Create(ctx, ord); err != nil {
		return nil, err
	}

	if err := s.stock.ProcessOrderProducts(ctx, s.stockItems(ord.Items), stock.OperationDecrease, ord.EmployeeID.String(), &ord.ID); err != nil {
		return nil, err
	}

	if err := s.relations.UpdateOrderRelationships(ctx, toOrderData(ord)); err != nil {
		return nil, err
	}
	return ord, nil
}

// UpdateOrderStatus moves an order through the state machine. Transitioning to
// delivered stamps the delivery date.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next Status, actorRole accounts.Role) (*Order, error) {
	if !next.Valid() {
		return nil, orchestrateErr(newValidationError("Status inválido: %s", next))
	}
	ord, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	if err := s.validator.ValidateUpdatePermissions(actorRole, ord.Status, &next); err != nil {
		return nil, orchestrateErr(err)
	}

	ord.Status = next
	if next == StatusDelivered {
		now := time.Now()
		ord.DeliveryDate = &now
	}
	if err := s.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// UpdateOrder applies a field edit. Changed financials are re-validated, and a
// changed product list issues compensating stock moves; stock failures during
// an edit are logged, never fatal.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, patch UpdateInput, actorID uuid.UUID, actorRole accounts.Role) (*Order, error) {
	ord, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	if err := s.validator.ValidateUpdatePermissions(actorRole, ord.Status, nil); err != nil {
		return nil, orchestrateErr(err)
	}

	previousItems := ord.Items
	applyPatch(ord, patch)

	if patch.TotalPrice != nil || patch.Discount != nil || patch.PaymentEntry != nil || patch.Installments != nil {
		if err := s.validator.ValidateFinancialData(ord.TotalPrice, ord.Discount, ord.PaymentEntry, ord.Installments); err != nil {
			return nil, orchestrateErr(err)
		}
	}

	if patch.Items != nil {
		s.adjustStockForEdit(ctx, ord.ID, previousItems, ord.Items, actorID)
	}

	ord.RecomputeFinalPrice()
	if err := s.repo.Update(ctx, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// CancelOrder restores stock for every line item, moves the order to cancelled
// and reverses the relationship effects.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole accounts.Role) (*Order, error) {
	ord, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	if err := s.validator.ValidateCancellation(ord.Status, actorRole); err != nil {
		return nil, orchestrateErr(err)
	}

	if err := s.stock.ProcessOrderProducts(ctx, s.stockItems(ord.Items), stock.OperationIncrease, actorID.String(), &ord.ID); err != nil {
		return nil, err
	}

	ord.Status = StatusCancelled
	if err := s.repo.Update(ctx, ord); err != nil {
		return nil, err
	}

	if err := s.relations.RemoveOrderRelationships(ctx, toOrderData(ord)); err != nil {
		return nil, err
	}
	return ord, nil
}

// SoftDeleteOrder hides an order without touching stock or relationships.
// Distinct from cancellation and restricted to admins.
func (s *Service) SoftDeleteOrder(ctx context.Context, id, actorID uuid.UUID, actorRole accounts.Role) error {
	if actorRole != accounts.RoleAdmin {
		return orchestrateErr(newValidationError("Apenas administradores podem excluir pedidos"))
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return s.notFound(err)
	}
	return s.repo.SoftDelete(ctx, id, actorID)
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	ord, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err)
	}
	return ord, nil
}

// ListOrders returns a page of orders.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// stockItems converts order lines into stock line items, skipping references
// that are not well-formed identifiers.
func (s *Service) stockItems(items []Item) []stock.OrderItem {
	out := make([]stock.OrderItem, 0, len(items))
	for _, item := range items {
		if _, err := uuid.Parse(item.ProductID); err != nil {
			s.logger.Warn("skipping malformed product reference", slog.String("product_id", item.ProductID))
			continue
		}
		out = append(out, stock.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// adjustStockForEdit diffs the old and new product-id sets and issues
// compensating moves: increases for removed items, decreases for added ones.
func (s *Service) adjustStockForEdit(ctx context.Context, orderID uuid.UUID, before, after []Item, actorID uuid.UUID) {
	removed := diffItems(before, after)
	added := diffItems(after, before)

	if len(removed) > 0 {
		if err := s.stock.ProcessOrderProducts(ctx, removed, stock.OperationIncrease, actorID.String(), &orderID); err != nil {
			s.logger.Warn("stock restore during order edit failed",
				slog.String("order_id", orderID.String()),
				slog.Any("error", err),
			)
		}
	}
	if len(added) > 0 {
		if err := s.stock.ProcessOrderProducts(ctx, added, stock.OperationDecrease, actorID.String(), &orderID); err != nil {
			s.logger.Warn("stock consume during order edit failed",
				slog.String("order_id", orderID.String()),
				slog.Any("error", err),
			)
		}
	}
}

// diffItems returns the items of a whose product id does not appear in b.
func diffItems(a, b []Item) []stock.OrderItem {
	present := make(map[string]struct{}, len(b))
	for _, item := range b {
		present[item.ProductID] = struct{}{}
	}
	var out []stock.OrderItem
	for _, item := range a {
		if _, ok := present[item.ProductID]; ok {
			continue
		}
		if _, err := uuid.Parse(item.ProductID); err != nil {
			continue
		}
		out = append(out, stock.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func applyPatch(ord *Order, patch UpdateInput) {
	if patch.Items != nil {
		ord.Items = *patch.Items
	}
	if patch.TotalPrice != nil {
		ord.TotalPrice = *patch.TotalPrice
	}
	if patch.Discount != nil {
		ord.Discount = *patch.Discount
	}
	if patch.PaymentEntry != nil {
		ord.PaymentEntry = *patch.PaymentEntry
	}
	if patch.Installments != nil {
		ord.Installments = patch.Installments
	}
	if patch.DeliveryDate != nil {
		ord.DeliveryDate = patch.DeliveryDate
	}
	if patch.Observations != nil {
		ord.Observations = patch.Observations
	}
	if patch.Prescription != nil {
		ord.Prescription = patch.Prescription
	}
}

func toOrderData(ord *Order) relations.OrderData {
	return relations.OrderData{
		ID:                  ord.ID,
		ClientID:            ord.ClientID,
		EmployeeID:          ord.EmployeeID,
		ResponsibleClientID: ord.ResponsibleClientID,
		TotalPrice:          ord.TotalPrice,
		Discount:            ord.Discount,
		PaymentEntry:        ord.PaymentEntry,
	}
}

func (s *Service) notFound(err error) error {
	if errors.Is(err, ErrOrderNotFound) {
		return wrapOrderError(ErrOrderNotFound)
	}
	return err
}

// orchestrateErr wraps displayable rule violations in the domain error type.
func orchestrateErr(err error) error {
	var verr *ValidationError
	var terr *InvalidTransitionError
	if errors.As(err, &verr) || errors.As(err, &terr) {
		return wrapOrderError(err)
	}
	return err
}
