package relations

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/optica-erp/optica-erp/internal/accounts"
)

// Service keeps the denormalized, order-derived aggregates consistent:
// employee sales lists, client purchase lists and client debt balances.
type Service struct {
	accounts AccountStore
	legacy   LegacyStore
	cache    *DebtCache
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(accountStore AccountStore, legacyStore LegacyStore, cache *DebtCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accountStore, legacy: legacyStore, cache: cache, logger: logger}
}

// UpdateEmployeeSales appends the order to the employee's sales list. The
// append is idempotent: a second call with the same order id changes nothing.
func (s *Service) UpdateEmployeeSales(ctx context.Context, employeeID, orderID uuid.UUID) error {
	if _, err := s.accounts.FindByID(ctx, employeeID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrEmployeeNotFound
		}
		return err
	}
	return s.accounts.AppendSale(ctx, employeeID, orderID)
}

// UpdateCustomerPurchases appends the order to the client's purchase list,
// idempotently.
func (s *Service) UpdateCustomerPurchases(ctx context.Context, clientID, orderID uuid.UUID) error {
	if _, err := s.accounts.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	return s.accounts.AppendPurchase(ctx, clientID, orderID)
}

// RemoveOrderFromEmployeeSales filters the order out of the employee's sales
// list. A missing employee is a no-op.
func (s *Service) RemoveOrderFromEmployeeSales(ctx context.Context, employeeID, orderID uuid.UUID) error {
	if _, err := s.accounts.FindByID(ctx, employeeID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.accounts.RemoveSale(ctx, employeeID, orderID)
}

// RemoveOrderFromCustomerPurchases filters the order out of the client's
// purchase list. A missing client is a no-op.
func (s *Service) RemoveOrderFromCustomerPurchases(ctx context.Context, clientID, orderID uuid.UUID) error {
	if _, err := s.accounts.FindByID(ctx, clientID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.accounts.RemovePurchase(ctx, clientID, orderID)
}

// UpdateCustomerDebts adds the order's remaining amount to the liable
// account's debt balance. Liability is redirected to the responsible client
// when one is set. The regular account store is probed first, then the legacy
// store; when neither resolves, or nothing remains unpaid, this is a no-op.
func (s *Service) UpdateCustomerDebts(ctx context.Context, clientID uuid.UUID, order OrderData) error {
	target := clientID
	if order.ResponsibleClientID != nil {
		target = *order.ResponsibleClientID
	}
	remaining := order.RemainingAmount()
	if remaining <= 0 {
		return nil
	}

	ok, err := s.accounts.AddDebt(ctx, target, remaining)
	if err != nil {
		return err
	}
	if !ok {
		ok, err = s.legacy.AddDebt(ctx, target, remaining)
		if err != nil {
			return err
		}
	}
	if ok {
		s.cache.Invalidate(ctx, target)
	}
	return nil
}

// RevertCustomerDebts is the mirror of UpdateCustomerDebts: the remaining
// amount is subtracted from the liable account, floored at zero.
func (s *Service) RevertCustomerDebts(ctx context.Context, clientID uuid.UUID, order OrderData) error {
	target := clientID
	if order.ResponsibleClientID != nil {
		target = *order.ResponsibleClientID
	}
	remaining := order.RemainingAmount()
	if remaining <= 0 {
		return nil
	}

	ok, err := s.accounts.SubtractDebt(ctx, target, remaining)
	if err != nil {
		return err
	}
	if !ok {
		ok, err = s.legacy.SubtractDebt(ctx, target, remaining)
		if err != nil {
			return err
		}
	}
	if ok {
		s.cache.Invalidate(ctx, target)
	}
	return nil
}

// UpdateOrderRelationships runs the employee-sales, customer-purchases and
// customer-debt updates concurrently after an order is created.
func (s *Service) UpdateOrderRelationships(ctx context.Context, order OrderData) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.UpdateEmployeeSales(ctx, order.EmployeeID, order.ID) })
	g.Go(func() error { return s.UpdateCustomerPurchases(ctx, order.ClientID, order.ID) })
	g.Go(func() error { return s.UpdateCustomerDebts(ctx, order.ClientID, order) })
	return g.Wait()
}

// RemoveOrderRelationships runs the three reversal operations concurrently,
// used on cancellation.
func (s *Service) RemoveOrderRelationships(ctx context.Context, order OrderData) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.RemoveOrderFromEmployeeSales(ctx, order.EmployeeID, order.ID) })
	g.Go(func() error { return s.RemoveOrderFromCustomerPurchases(ctx, order.ClientID, order.ID) })
	g.Go(func() error { return s.RevertCustomerDebts(ctx, order.ClientID, order) })
	return g.Wait()
}

// RecalculateClientDebt returns the stored balance for whichever account kind
// resolves, 0 when neither does.
func (s *Service) RecalculateClientDebt(ctx context.Context, clientID uuid.UUID) (float64, error) {
	if value, ok := s.cache.Get(ctx, clientID); ok {
		return value, nil
	}

	balance, found, err := s.accounts.GetDebt(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if !found {
		balance, found, err = s.legacy.GetDebt(ctx, clientID)
		if err != nil {
			return 0, err
		}
	}
	if !found {
		return 0, nil
	}
	s.cache.Set(ctx, clientID, balance)
	return balance, nil
}

type debtorKind int

const (
	kindRegular debtorKind = iota
	kindLegacy
)

func (s *Service) resolveDebtor(ctx context.Context, id uuid.UUID) (float64, debtorKind, bool, error) {
	balance, found, err := s.accounts.GetDebt(ctx, id)
	if err != nil {
		return 0, kindRegular, false, err
	}
	if found {
		return balance, kindRegular, true, nil
	}
	balance, found, err = s.legacy.GetDebt(ctx, id)
	if err != nil {
		return 0, kindLegacy, false, err
	}
	return balance, kindLegacy, found, nil
}

// TransferDebt moves an amount of debt from one client to another. Both sides
// may be regular or legacy accounts.
func (s *Service) TransferDebt(ctx context.Context, fromID, toID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return ErrInvalidTransferAmount
	}

	fromBalance, fromKind, found, err := s.resolveDebtor(ctx, fromID)
	if err != nil {
		return err
	}
	if !found {
		return ErrSourceClientNotFound
	}
	_, toKind, found, err := s.resolveDebtor(ctx, toID)
	if err != nil {
		return err
	}
	if !found {
		return ErrTargetClientNotFound
	}
	if fromBalance < amount {
		return ErrInsufficientDebt
	}

	if fromKind == kindRegular {
		_, err = s.accounts.SubtractDebt(ctx, fromID, amount)
	} else {
		_, err = s.legacy.SubtractDebt(ctx, fromID, amount)
	}
	if err != nil {
		return err
	}
	if toKind == kindRegular {
		_, err = s.accounts.AddDebt(ctx, toID, amount)
	} else {
		_, err = s.legacy.AddDebt(ctx, toID, amount)
	}
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, fromID)
	s.cache.Invalidate(ctx, toID)
	return nil
}
