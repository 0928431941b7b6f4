package orders

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/optica-erp/optica-erp/internal/accounts"
	"github.com/optica-erp/optica-erp/internal/catalog"
)

// AccountReader resolves order actors.
type AccountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error)
}

// ProductReader resolves order line items.
type ProductReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

// Validator checks proposed order payloads against the business rules. It has
// no side effects; the first failed rule wins.
type Validator struct {
	accounts AccountReader
	products ProductReader
}

// NewValidator builds Validator.
func NewValidator(accountReader AccountReader, productReader ProductReader) *Validator {
	return &Validator{accounts: accountReader, products: productReader}
}

// ValidateClient checks the purchasing account exists and is a customer.
func (v *Validator) ValidateClient(ctx context.Context, id uuid.UUID) error {
	acc, err := v.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return newValidationError("Cliente não encontrado")
		}
		return err
	}
	if acc.Role != accounts.RoleCustomer {
		return newValidationError("A conta informada não pertence a um cliente")
	}
	return nil
}

// ValidateEmployee checks the selling account exists and may manage orders.
func (v *Validator) ValidateEmployee(ctx context.Context, id uuid.UUID) error {
	acc, err := v.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return newValidationError("Funcionário não encontrado")
		}
		return err
	}
	if !acc.Role.CanManageOrders() {
		return newValidationError("A conta informada não pertence a um funcionário")
	}
	return nil
}

// ValidateProducts resolves every line item and returns the products, in item
// order, for the delivery-date check.
func (v *Validator) ValidateProducts(ctx context.Context, items []Item) ([]*catalog.Product, error) {
	if len(items) == 0 {
		return nil, newValidationError("O pedido deve conter pelo menos um produto")
	}

	resolved := make([]*catalog.Product, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, newValidationError("Formato de produto inválido: %s", item.ProductID)
		}
		product, err := v.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, newValidationError("Produto não encontrado: %s", item.ProductID)
			}
			return nil, err
		}
		resolved = append(resolved, product)
	}
	return resolved, nil
}

// ValidateFinancialData checks the price arithmetic of the payload.
func (v *Validator) ValidateFinancialData(total, discount, entry float64, installments *int) error {
	if total <= 0 {
		return newValidationError("O preço total deve ser maior que zero")
	}
	if discount < 0 {
		return newValidationError("O desconto não pode ser negativo")
	}
	if discount > total {
		return newValidationError("O desconto não pode ser maior que o preço total")
	}
	if installments != nil && *installments <= 0 {
		return newValidationError("O número de parcelas deve ser maior que zero")
	}
	if entry < 0 {
		return newValidationError("O valor de entrada não pode ser negativo")
	}
	return nil
}

// ValidateDeliveryDate rejects past delivery dates when the order contains a
// lens product. A nil date or empty product list is a no-op.
func (v *Validator) ValidateDeliveryDate(date *time.Time, products []*catalog.Product) error {
	if date == nil || len(products) == 0 {
		return nil
	}
	hasLens := false
	for _, p := range products {
		if isLensProduct(p) {
			hasLens = true
			break
		}
	}
	if !hasLens {
		return nil
	}
	today := time.Now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return newValidationError("A data de entrega não pode estar no passado para pedidos com lentes")
	}
	return nil
}

// ValidatePrescriptionData bounds the appointment date to the last year.
func (v *Validator) ValidatePrescriptionData(p *Prescription) error {
	if p == nil || p.AppointmentDate == nil {
		return nil
	}
	now := time.Now()
	if p.AppointmentDate.After(now) {
		return newValidationError("A data da consulta não pode estar no futuro")
	}
	if p.AppointmentDate.Before(now.AddDate(-1, 0, 0)) {
		return newValidationError("A data da consulta não pode ser anterior a um ano")
	}
	return nil
}

// ValidateOrder runs the full rule set over a proposed order: client and
// employee concurrently, then products, financials, delivery date and
// prescription, short-circuiting on the first failure.
func (v *Validator) ValidateOrder(ctx context.Context, ord *Order) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return v.ValidateClient(gctx, ord.ClientID) })
	g.Go(func() error { return v.ValidateEmployee(gctx, ord.EmployeeID) })
	if err := g.Wait(); err != nil {
		return err
	}

	products, err := v.ValidateProducts(ctx, ord.Items)
	if err != nil {
		return err
	}
	if err := v.ValidateFinancialData(ord.TotalPrice, ord.Discount, ord.PaymentEntry, ord.Installments); err != nil {
		return err
	}
	if err := v.ValidateDeliveryDate(ord.DeliveryDate, products); err != nil {
		return err
	}
	return v.ValidatePrescriptionData(ord.Prescription)
}

// ValidateUpdatePermissions gates edits by role and current status. When a new
// status is proposed it also runs the state-machine check.
func (v *Validator) ValidateUpdatePermissions(role accounts.Role, current Status, next *Status) error {
	if current == StatusCancelled {
		return newValidationError("Pedidos cancelados não podem ser alterados")
	}
	if next != nil && *next == StatusCancelled && role != accounts.RoleAdmin {
		return newValidationError("Apenas administradores podem cancelar pedidos")
	}
	if current == StatusDelivered && role != accounts.RoleAdmin {
		return newValidationError("Apenas administradores podem alterar pedidos entregues")
	}
	if next != nil && *next != current {
		if !current.CanTransitionTo(*next) {
			return &InvalidTransitionError{From: current, To: *next}
		}
	}
	return nil
}

// ValidateCancellation gates the cancel workflow.
func (v *Validator) ValidateCancellation(status Status, role accounts.Role) error {
	if status == StatusCancelled {
		return newValidationError("O pedido já está cancelado")
	}
	if status == StatusDelivered {
		return newValidationError("Pedidos entregues não podem ser cancelados")
	}
	if role != accounts.RoleAdmin {
		return newValidationError("Apenas administradores podem cancelar pedidos")
	}
	return nil
}

// stripAccents removes combining marks so "lente" matches "lênte" and friends.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(name string) string {
	folded, _, err := transform.String(stripAccents, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(folded)
}

// isLensProduct classifies by type tag first and falls back to a loose name
// match, mirroring how the shop catalogs lens products.
func isLensProduct(p *catalog.Product) bool {
	if p == nil {
		return false
	}
	if p.Type == catalog.ProductTypeLenses || p.Type == catalog.ProductTypeCleanLenses {
		return true
	}
	name := foldName(p.Name)
	return strings.Contains(name, "lens") || strings.Contains(name, "lente")
}
