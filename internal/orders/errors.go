package orders

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a user-facing rule violation. Validation raises on the
// first failed rule and never partially applies state.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is raised when a status change is not in the state
// machine, naming the allowed next states.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := e.From.AllowedNext()
	if len(allowed) == 0 {
		return fmt.Sprintf("Não é possível alterar o status de %s para %s: status %s é final", e.From, e.To, e.From)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("Não é possível alterar o status de %s para %s. Status permitidos: %s",
		e.From, e.To, strings.Join(names, ", "))
}

// OrderError is the domain error surfaced by the orchestrator. It wraps
// validation failures and order-lookup misses with a displayable message.
type OrderError struct {
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	return e.Message
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func wrapOrderError(err error) error {
	if err == nil {
		return nil
	}
	return &OrderError{Message: err.Error(), Err: err}
}

// ErrOrderNotFound indicates the order does not exist or was soft-deleted.
var ErrOrderNotFound = errors.New("Pedido não encontrado")
