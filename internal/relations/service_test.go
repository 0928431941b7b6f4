package relations

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/accounts"
)

type memoryAccounts struct {
	byID map[uuid.UUID]*accounts.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: make(map[uuid.UUID]*accounts.Account)}
}

func (m *memoryAccounts) add(acc *accounts.Account) {
	m.byID[acc.ID] = acc
}

func (m *memoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*accounts.Account, error) {
	acc, ok := m.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return acc, nil
}

func (m *memoryAccounts) AppendSale(_ context.Context, employeeID, orderID uuid.UUID) error {
	acc := m.byID[employeeID]
	for _, existing := range acc.Sales {
		if existing == orderID {
			return nil
		}
	}
	acc.Sales = append(acc.Sales, orderID)
	return nil
}

func (m *memoryAccounts) RemoveSale(_ context.Context, employeeID, orderID uuid.UUID) error {
	acc := m.byID[employeeID]
	acc.Sales = remove(acc.Sales, orderID)
	return nil
}

func (m *memoryAccounts) AppendPurchase(_ context.Context, clientID, orderID uuid.UUID) error {
	acc := m.byID[clientID]
	for _, existing := range acc.Purchases {
		if existing == orderID {
			return nil
		}
	}
	acc.Purchases = append(acc.Purchases, orderID)
	return nil
}

func (m *memoryAccounts) RemovePurchase(_ context.Context, clientID, orderID uuid.UUID) error {
	acc := m.byID[clientID]
	acc.Purchases = remove(acc.Purchases, orderID)
	return nil
}

func (m *memoryAccounts) AddDebt(_ context.Context, id uuid.UUID, amount float64) (bool, error) {
	acc, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	acc.Debts += amount
	return true, nil
}

func (m *memoryAccounts) SubtractDebt(_ context.Context, id uuid.UUID, amount float64) (bool, error) {
	acc, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	acc.Debts -= amount
	if acc.Debts < 0 {
		acc.Debts = 0
	}
	return true, nil
}

func (m *memoryAccounts) GetDebt(_ context.Context, id uuid.UUID) (float64, bool, error) {
	acc, ok := m.byID[id]
	if !ok {
		return 0, false, nil
	}
	return acc.Debts, true, nil
}

type memoryLegacy struct {
	debts map[uuid.UUID]float64
}

func newMemoryLegacy() *memoryLegacy {
	return &memoryLegacy{debts: make(map[uuid.UUID]float64)}
}

func (m *memoryLegacy) AddDebt(_ context.Context, id uuid.UUID, amount float64) (bool, error) {
	if _, ok := m.debts[id]; !ok {
		return false, nil
	}
	m.debts[id] += amount
	return true, nil
}

func (m *memoryLegacy) SubtractDebt(_ context.Context, id uuid.UUID, amount float64) (bool, error) {
	balance, ok := m.debts[id]
	if !ok {
		return false, nil
	}
	balance -= amount
	if balance < 0 {
		balance = 0
	}
	m.debts[id] = balance
	return true, nil
}

func (m *memoryLegacy) GetDebt(_ context.Context, id uuid.UUID) (float64, bool, error) {
	balance, ok := m.debts[id]
	return balance, ok, nil
}

func remove(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func newTestService(store *memoryAccounts, legacy *memoryLegacy) *Service {
	return NewService(store, legacy, nil, slog.Default())
}

func TestUpdateOrderRelationships(t *testing.T) {
	store := newMemoryAccounts()
	employee := &accounts.Account{ID: uuid.New(), Role: accounts.RoleEmployee}
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	store.add(employee)
	store.add(client)
	svc := newTestService(store, newMemoryLegacy())

	order := OrderData{
		ID:           uuid.New(),
		ClientID:     client.ID,
		EmployeeID:   employee.ID,
		TotalPrice:   200,
		Discount:     20,
		PaymentEntry: 50,
	}
	require.NoError(t, svc.UpdateOrderRelationships(context.Background(), order))

	require.Equal(t, []uuid.UUID{order.ID}, employee.Sales)
	require.Equal(t, []uuid.UUID{order.ID}, client.Purchases)
	require.InDelta(t, 130.0, client.Debts, 1e-9)
}

func TestUpdateOrderRelationshipsIdempotent(t *testing.T) {
	store := newMemoryAccounts()
	employee := &accounts.Account{ID: uuid.New(), Role: accounts.RoleEmployee}
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	store.add(employee)
	store.add(client)
	svc := newTestService(store, newMemoryLegacy())

	orderID := uuid.New()
	require.NoError(t, svc.UpdateEmployeeSales(context.Background(), employee.ID, orderID))
	require.NoError(t, svc.UpdateEmployeeSales(context.Background(), employee.ID, orderID))
	require.NoError(t, svc.UpdateCustomerPurchases(context.Background(), client.ID, orderID))
	require.NoError(t, svc.UpdateCustomerPurchases(context.Background(), client.ID, orderID))

	require.Len(t, employee.Sales, 1)
	require.Len(t, client.Purchases, 1)
}

func TestUpdateEmployeeSalesMissingEmployee(t *testing.T) {
	svc := newTestService(newMemoryAccounts(), newMemoryLegacy())

	err := svc.UpdateEmployeeSales(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrEmployeeNotFound)
	require.EqualError(t, err, "Funcionário não encontrado")
}

func TestUpdateCustomerDebtsResponsibleClient(t *testing.T) {
	store := newMemoryAccounts()
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	responsible := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	store.add(client)
	store.add(responsible)
	svc := newTestService(store, newMemoryLegacy())

	order := OrderData{
		ID:                  uuid.New(),
		ClientID:            client.ID,
		ResponsibleClientID: &responsible.ID,
		TotalPrice:          100,
		PaymentEntry:        40,
	}
	require.NoError(t, svc.UpdateCustomerDebts(context.Background(), client.ID, order))

	require.Zero(t, client.Debts)
	require.InDelta(t, 60.0, responsible.Debts, 1e-9)
}

func TestUpdateCustomerDebtsFullyPaidIsNoop(t *testing.T) {
	store := newMemoryAccounts()
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	store.add(client)
	svc := newTestService(store, newMemoryLegacy())

	order := OrderData{ID: uuid.New(), ClientID: client.ID, TotalPrice: 100, Discount: 10, PaymentEntry: 90}
	require.NoError(t, svc.UpdateCustomerDebts(context.Background(), client.ID, order))
	require.Zero(t, client.Debts)
}

func TestUpdateCustomerDebtsLegacyFallback(t *testing.T) {
	legacy := newMemoryLegacy()
	legacyID := uuid.New()
	legacy.debts[legacyID] = 25
	svc := newTestService(newMemoryAccounts(), legacy)

	order := OrderData{ID: uuid.New(), ClientID: legacyID, TotalPrice: 80}
	require.NoError(t, svc.UpdateCustomerDebts(context.Background(), legacyID, order))
	require.InDelta(t, 105.0, legacy.debts[legacyID], 1e-9)
}

func TestRevertCustomerDebtsFloorsAtZero(t *testing.T) {
	store := newMemoryAccounts()
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 50}
	store.add(client)
	svc := newTestService(store, newMemoryLegacy())

	order := OrderData{ID: uuid.New(), ClientID: client.ID, TotalPrice: 140}
	require.NoError(t, svc.RevertCustomerDebts(context.Background(), client.ID, order))
	require.Zero(t, client.Debts)
}

func TestRemoveOrderRelationships(t *testing.T) {
	store := newMemoryAccounts()
	orderID := uuid.New()
	employee := &accounts.Account{ID: uuid.New(), Role: accounts.RoleEmployee, Sales: []uuid.UUID{orderID}}
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Purchases: []uuid.UUID{orderID}, Debts: 130}
	store.add(employee)
	store.add(client)
	svc := newTestService(store, newMemoryLegacy())

	order := OrderData{
		ID:           orderID,
		ClientID:     client.ID,
		EmployeeID:   employee.ID,
		TotalPrice:   200,
		Discount:     20,
		PaymentEntry: 50,
	}
	require.NoError(t, svc.RemoveOrderRelationships(context.Background(), order))

	require.Empty(t, employee.Sales)
	require.Empty(t, client.Purchases)
	require.Zero(t, client.Debts)
}

func TestRemoveOrderRelationshipsMissingActorsNoop(t *testing.T) {
	svc := newTestService(newMemoryAccounts(), newMemoryLegacy())

	order := OrderData{ID: uuid.New(), ClientID: uuid.New(), EmployeeID: uuid.New(), TotalPrice: 100}
	require.NoError(t, svc.RemoveOrderRelationships(context.Background(), order))
}

func TestTransferDebt(t *testing.T) {
	store := newMemoryAccounts()
	from := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 100}
	to := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 50}
	store.add(from)
	store.add(to)
	svc := newTestService(store, newMemoryLegacy())

	require.NoError(t, svc.TransferDebt(context.Background(), from.ID, to.ID, 30))
	require.InDelta(t, 70.0, from.Debts, 1e-9)
	require.InDelta(t, 80.0, to.Debts, 1e-9)
}

func TestTransferDebtInsufficientBalance(t *testing.T) {
	store := newMemoryAccounts()
	from := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 100}
	to := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	store.add(from)
	store.add(to)
	svc := newTestService(store, newMemoryLegacy())

	err := svc.TransferDebt(context.Background(), from.ID, to.ID, 150)
	require.ErrorIs(t, err, ErrInsufficientDebt)
	require.InDelta(t, 100.0, from.Debts, 1e-9)
	require.Zero(t, to.Debts)
}

func TestTransferDebtValidation(t *testing.T) {
	store := newMemoryAccounts()
	from := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 100}
	store.add(from)
	svc := newTestService(store, newMemoryLegacy())

	require.ErrorIs(t, svc.TransferDebt(context.Background(), from.ID, uuid.New(), 0), ErrInvalidTransferAmount)
	require.ErrorIs(t, svc.TransferDebt(context.Background(), uuid.New(), from.ID, 10), ErrSourceClientNotFound)
	require.ErrorIs(t, svc.TransferDebt(context.Background(), from.ID, uuid.New(), 10), ErrTargetClientNotFound)
}

func TestTransferDebtAcrossStores(t *testing.T) {
	store := newMemoryAccounts()
	regular := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 40}
	store.add(regular)
	legacy := newMemoryLegacy()
	legacyID := uuid.New()
	legacy.debts[legacyID] = 10
	svc := newTestService(store, legacy)

	require.NoError(t, svc.TransferDebt(context.Background(), regular.ID, legacyID, 25))
	require.InDelta(t, 15.0, regular.Debts, 1e-9)
	require.InDelta(t, 35.0, legacy.debts[legacyID], 1e-9)
}

func TestRecalculateClientDebt(t *testing.T) {
	store := newMemoryAccounts()
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer, Debts: 42.5}
	store.add(client)
	legacy := newMemoryLegacy()
	legacyID := uuid.New()
	legacy.debts[legacyID] = 7
	svc := newTestService(store, legacy)

	balance, err := svc.RecalculateClientDebt(context.Background(), client.ID)
	require.NoError(t, err)
	require.InDelta(t, 42.5, balance, 1e-9)

	balance, err = svc.RecalculateClientDebt(context.Background(), legacyID)
	require.NoError(t, err)
	require.InDelta(t, 7.0, balance, 1e-9)

	balance, err = svc.RecalculateClientDebt(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Zero(t, balance)
}
