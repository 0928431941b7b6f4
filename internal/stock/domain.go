package stock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation enumerates ledger movement directions.
type Operation string

const (
	// OperationIncrease records stock being added back.
	OperationIncrease Operation = "increase"
	// OperationDecrease records stock being consumed.
	OperationDecrease Operation = "decrease"
)

// LogEntry is an immutable audit record of one stock mutation. It is written
// in the same transaction as the mutation it describes and never updated.
type LogEntry struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	PreviousStock int        `json:"previous_stock"`
	NewStock      int        `json:"new_stock"`
	Quantity      int        `json:"quantity"`
	Operation     Operation  `json:"operation"`
	Reason        string     `json:"reason"`
	PerformedBy   uuid.UUID  `json:"performed_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MovementInput describes one stock mutation request.
type MovementInput struct {
	ProductID   string
	Quantity    int
	Reason      string
	PerformedBy string
	OrderID     *uuid.UUID
}

// OrderItem is a line item reference handed over by the order workflows.
type OrderItem struct {
	ProductID string
	Quantity  int
}

// Shortage reports a product whose available stock is below the required
// quantity. Products that could not be resolved are reported with Available=0.
type Shortage struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}

// LogFilter restricts ledger listings.
type LogFilter struct {
	ProductID uuid.UUID
	Limit     int
}

var (
	// ErrInvalidProductID indicates a malformed product identifier.
	ErrInvalidProductID = errors.New("ID de produto inválido")
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("Produto não encontrado")
	// ErrStockUpdateFailed indicates the stock write matched no row.
	ErrStockUpdateFailed = errors.New("Falha ao atualizar o estoque do produto")
	// ErrNoStockControl indicates an absolute set on a stock-less variant.
	ErrNoStockControl = errors.New("Este produto não possui controle de estoque")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("A quantidade deve ser maior que zero")
	// ErrNegativeStock indicates an absolute set below zero.
	ErrNegativeStock = errors.New("O estoque não pode ser negativo")
	// ErrOperation wraps unexpected persistence failures.
	ErrOperation = errors.New("Erro ao processar operação de estoque")
)

// InsufficientStockError is raised when a decrease would drive stock negative.
type InsufficientStockError struct {
	Available int
	Required  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Estoque insuficiente. Disponível: %d, Necessário: %d", e.Available, e.Required)
}

// ItemFailure pairs a line item with the error it produced.
type ItemFailure struct {
	ProductID string
	Err       error
}

// BatchError aggregates per-item failures from a best-effort batch. Every item
// is attempted before the batch raises.
type BatchError struct {
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ProductID, f.Err))
	}
	return fmt.Sprintf("Falha ao processar %d item(ns) do pedido: %s", len(e.Failures), strings.Join(parts, "; "))
}

// NormalizeActorID maps a raw performed-by value to an identifier usable in
// the ledger. The sentinel values "system" and "anonymous", and any value that
// is not a well-formed identifier, are mapped to a generated placeholder
// rather than rejected, keeping the ledger always-writable.
func NormalizeActorID(raw string) uuid.UUID {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "system", "anonymous":
		return uuid.New()
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.New()
	}
	return id
}
