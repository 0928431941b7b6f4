package relations

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/accounts"
)

// OrderData carries the order fields the ledger needs. The orchestrator maps
// its own order type onto this before calling in.
type OrderData struct {
	ID                  uuid.UUID
	ClientID            uuid.UUID
	EmployeeID          uuid.UUID
	ResponsibleClientID *uuid.UUID
	TotalPrice          float64
	Discount            float64
	PaymentEntry        float64
}

// RemainingAmount is the unpaid balance attributed to debt.
func (o OrderData) RemainingAmount() float64 {
	return (o.TotalPrice - o.Discount) - o.PaymentEntry
}

var (
	// ErrEmployeeNotFound indicates the sales-list owner does not exist.
	ErrEmployeeNotFound = errors.New("Funcionário não encontrado")
	// ErrClientNotFound indicates the purchase-list owner does not exist.
	ErrClientNotFound = errors.New("Cliente não encontrado")
	// ErrSourceClientNotFound indicates an unresolved transfer source.
	ErrSourceClientNotFound = errors.New("Cliente de origem não encontrado")
	// ErrTargetClientNotFound indicates an unresolved transfer destination.
	ErrTargetClientNotFound = errors.New("Cliente de destino não encontrado")
	// ErrInvalidTransferAmount indicates a non-positive transfer amount.
	ErrInvalidTransferAmount = errors.New("O valor da transferência deve ser maior que zero")
	// ErrInsufficientDebt indicates the source balance cannot cover the transfer.
	ErrInsufficientDebt = errors.New("Cliente de origem não possui débito suficiente")
)

// AccountStore is the slice of the accounts repository the ledger consumes.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error)
	AppendSale(ctx context.Context, employeeID, orderID uuid.UUID) error
	RemoveSale(ctx context.Context, employeeID, orderID uuid.UUID) error
	AppendPurchase(ctx context.Context, clientID, orderID uuid.UUID) error
	RemovePurchase(ctx context.Context, clientID, orderID uuid.UUID) error
	AddDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
	SubtractDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
	GetDebt(ctx context.Context, id uuid.UUID) (float64, bool, error)
}

// LegacyStore is the fallback debt ledger for legacy clients.
type LegacyStore interface {
	AddDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
	SubtractDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
	GetDebt(ctx context.Context, id uuid.UUID) (float64, bool, error)
}
