package orders

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/accounts"
	"github.com/optica-erp/optica-erp/internal/catalog"
	"github.com/optica-erp/optica-erp/internal/relations"
	"github.com/optica-erp/optica-erp/internal/stock"
)

// fakeStockEngine mimics the real engine's per-item best-effort semantics over
// an in-memory stock level table. Lens products pass through untouched.
type fakeStockEngine struct {
	levels map[string]int
	lens   map[string]bool
}

func newFakeStockEngine() *fakeStockEngine {
	return &fakeStockEngine{levels: make(map[string]int), lens: make(map[string]bool)}
}

func (f *fakeStockEngine) ProcessOrderProducts(_ context.Context, items []stock.OrderItem, op stock.Operation, _ string, _ *uuid.UUID) error {
	var failures []stock.ItemFailure
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if f.lens[item.ProductID] {
			continue
		}
		level, ok := f.levels[item.ProductID]
		if !ok {
			failures = append(failures, stock.ItemFailure{ProductID: item.ProductID, Err: stock.ErrProductNotFound})
			continue
		}
		if op == stock.OperationDecrease {
			if level < qty {
				failures = append(failures, stock.ItemFailure{
					ProductID: item.ProductID,
					Err:       &stock.InsufficientStockError{Available: level, Required: qty},
				})
				continue
			}
			f.levels[item.ProductID] = level - qty
		} else {
			f.levels[item.ProductID] = level + qty
		}
	}
	if len(failures) > 0 {
		return &stock.BatchError{Failures: failures}
	}
	return nil
}

type fakeLedger struct {
	applied []relations.OrderData
	removed []relations.OrderData
}

func (f *fakeLedger) UpdateOrderRelationships(_ context.Context, order relations.OrderData) error {
	f.applied = append(f.applied, order)
	return nil
}

func (f *fakeLedger) RemoveOrderRelationships(_ context.Context, order relations.OrderData) error {
	f.removed = append(f.removed, order)
	return nil
}

type memOrderRepo struct {
	byID map[uuid.UUID]*Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: make(map[uuid.UUID]*Order)}
}

func (m *memOrderRepo) Create(_ context.Context, ord *Order) error {
	clone := *ord
	m.byID[ord.ID] = &clone
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	ord, ok := m.byID[id]
	if !ok || ord.IsDeleted {
		return nil, ErrOrderNotFound
	}
	clone := *ord
	return &clone, nil
}

func (m *memOrderRepo) Update(_ context.Context, ord *Order) error {
	if _, ok := m.byID[ord.ID]; !ok {
		return ErrOrderNotFound
	}
	clone := *ord
	m.byID[ord.ID] = &clone
	return nil
}

func (m *memOrderRepo) List(_ context.Context, _ ListFilter) ([]Order, int, error) {
	out := make([]Order, 0, len(m.byID))
	for _, ord := range m.byID {
		if !ord.IsDeleted {
			out = append(out, *ord)
		}
	}
	return out, len(out), nil
}

func (m *memOrderRepo) SoftDelete(_ context.Context, id, deletedBy uuid.UUID) error {
	ord, ok := m.byID[id]
	if !ok || ord.IsDeleted {
		return ErrOrderNotFound
	}
	ord.IsDeleted = true
	ord.DeletedBy = &deletedBy
	return nil
}

type orderFixture struct {
	service  *Service
	repo     *memOrderRepo
	engine   *fakeStockEngine
	ledger   *fakeLedger
	products *fakeProducts

	client   *accounts.Account
	employee *accounts.Account
	frame    *catalog.Product
}

func newOrderFixture(t *testing.T, frameStock int) *orderFixture {
	t.Helper()
	client := &accounts.Account{ID: uuid.New(), Role: accounts.RoleCustomer}
	employee := &accounts.Account{ID: uuid.New(), Role: accounts.RoleEmployee}
	frame := frameProduct(frameStock)

	engine := newFakeStockEngine()
	engine.levels[frame.ID.String()] = frameStock

	repo := newMemOrderRepo()
	ledger := &fakeLedger{}
	products := newFakeProducts(frame)
	validator := NewValidator(newFakeAccounts(client, employee), products)
	service := NewService(repo, validator, engine, ledger, slog.Default())

	return &orderFixture{
		service:  service,
		repo:     repo,
		engine:   engine,
		ledger:   ledger,
		products: products,
		client:   client,
		employee: employee,
		frame:    frame,
	}
}

func (f *orderFixture) newOrder(quantity int) *Order {
	return &Order{
		ClientID:   f.client.ID,
		EmployeeID: f.employee.ID,
		Items:      []Item{{ProductID: f.frame.ID.String(), Quantity: quantity, UnitPrice: 150}},
		TotalPrice: 150,
		Discount:   10,
	}
}

func TestCreateOrder(t *testing.T) {
	f := newOrderFixture(t, 10)

	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ord.ID)
	require.Equal(t, StatusPending, ord.Status)
	require.InDelta(t, 140.0, ord.FinalPrice, 1e-9)

	require.Equal(t, 9, f.engine.levels[f.frame.ID.String()])
	require.Len(t, f.ledger.applied, 1)
	require.Equal(t, ord.ID, f.ledger.applied[0].ID)

	stored, err := f.repo.FindByID(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t, 1)

	_, err := f.service.CreateOrder(context.Background(), f.newOrder(5))
	require.Error(t, err)
	require.ErrorContains(t, err, "Disponível: 1, Necessário: 5")

	// Stock is untouched and no relationship effects were recorded; the
	// persisted order stays behind for reconciliation.
	require.Equal(t, 1, f.engine.levels[f.frame.ID.String()])
	require.Empty(t, f.ledger.applied)
	require.Len(t, f.repo.byID, 1)
}

func TestCreateOrderValidationFailure(t *testing.T) {
	f := newOrderFixture(t, 10)

	ord := f.newOrder(1)
	ord.ClientID = uuid.New()
	_, err := f.service.CreateOrder(context.Background(), ord)

	var orderErr *OrderError
	require.ErrorAs(t, err, &orderErr)
	require.EqualError(t, err, "Cliente não encontrado")
	require.Empty(t, f.repo.byID)
	require.Equal(t, 10, f.engine.levels[f.frame.ID.String()])
}

func TestCreateOrderLensDoesNotTouchStock(t *testing.T) {
	f := newOrderFixture(t, 10)
	lens := lensProduct("Lente Transitions")
	f.products.byID[lens.ID] = lens
	f.engine.lens[lens.ID.String()] = true

	ord := f.newOrder(1)
	ord.Items = []Item{{ProductID: lens.ID.String(), Quantity: 1, UnitPrice: 150}}
	_, err := f.service.CreateOrder(context.Background(), ord)
	require.NoError(t, err)
	require.Equal(t, 10, f.engine.levels[f.frame.ID.String()])
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	updated, err := f.service.UpdateOrderStatus(context.Background(), ord.ID, StatusInProduction, accounts.RoleEmployee)
	require.NoError(t, err)
	require.Equal(t, StatusInProduction, updated.Status)

	updated, err = f.service.UpdateOrderStatus(context.Background(), ord.ID, StatusReady, accounts.RoleEmployee)
	require.NoError(t, err)
	require.Equal(t, StatusReady, updated.Status)

	updated, err = f.service.UpdateOrderStatus(context.Background(), ord.ID, StatusDelivered, accounts.RoleEmployee)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveryDate)
}

func TestUpdateOrderStatusInvalidTransition(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	_, err = f.service.UpdateOrderStatus(context.Background(), ord.ID, StatusDelivered, accounts.RoleAdmin)
	require.Error(t, err)
	require.ErrorContains(t, err, "in_production, cancelled")

	stored, err := f.repo.FindByID(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestStatusTransitionClosure(t *testing.T) {
	statuses := []Status{StatusPending, StatusInProduction, StatusReady, StatusDelivered, StatusCancelled}

	for _, from := range statuses {
		for _, to := range statuses {
			if from == to {
				continue
			}
			f := newOrderFixture(t, 10)
			ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
			require.NoError(t, err)
			ord.Status = from
			require.NoError(t, f.repo.Update(context.Background(), ord))

			_, err = f.service.UpdateOrderStatus(context.Background(), ord.ID, to, accounts.RoleAdmin)
			if from.CanTransitionTo(to) {
				require.NoError(t, err, "%s -> %s should be allowed", from, to)
				stored, findErr := f.repo.FindByID(context.Background(), ord.ID)
				require.NoError(t, findErr)
				require.Equal(t, to, stored.Status)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", from, to)
				stored, findErr := f.repo.FindByID(context.Background(), ord.ID)
				require.NoError(t, findErr)
				require.Equal(t, from, stored.Status)
			}
		}
	}
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	f := newOrderFixture(t, 10)

	_, err := f.service.UpdateOrderStatus(context.Background(), uuid.New(), StatusInProduction, accounts.RoleAdmin)
	require.EqualError(t, err, "Pedido não encontrado")
}

func TestUpdateOrderFinancialRevalidation(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	badDiscount := 500.0
	_, err = f.service.UpdateOrder(context.Background(), ord.ID, UpdateInput{Discount: &badDiscount}, f.employee.ID, accounts.RoleEmployee)
	require.EqualError(t, err, "O desconto não pode ser maior que o preço total")

	newTotal := 200.0
	newDiscount := 50.0
	updated, err := f.service.UpdateOrder(context.Background(), ord.ID, UpdateInput{TotalPrice: &newTotal, Discount: &newDiscount}, f.employee.ID, accounts.RoleEmployee)
	require.NoError(t, err)
	require.InDelta(t, 150.0, updated.FinalPrice, 1e-9)
}

func TestUpdateOrderProductDiff(t *testing.T) {
	f := newOrderFixture(t, 10)
	other := frameProduct(3)
	f.products.byID[other.ID] = other
	f.engine.levels[other.ID.String()] = 3

	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(2))
	require.NoError(t, err)
	require.Equal(t, 8, f.engine.levels[f.frame.ID.String()])

	// Swap the frame for the other product: the removed item is restored and
	// the added one consumed.
	items := []Item{{ProductID: other.ID.String(), Quantity: 1, UnitPrice: 150}}
	_, err = f.service.UpdateOrder(context.Background(), ord.ID, UpdateInput{Items: &items}, f.employee.ID, accounts.RoleEmployee)
	require.NoError(t, err)
	require.Equal(t, 10, f.engine.levels[f.frame.ID.String()])
	require.Equal(t, 2, f.engine.levels[other.ID.String()])
}

func TestUpdateOrderStockFailureIsNonFatal(t *testing.T) {
	f := newOrderFixture(t, 10)
	scarce := frameProduct(0)
	f.products.byID[scarce.ID] = scarce
	f.engine.levels[scarce.ID.String()] = 0

	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	// Adding an out-of-stock product to an existing order logs the stock
	// failure but still applies the edit.
	items := append(ord.Items, Item{ProductID: scarce.ID.String(), Quantity: 1, UnitPrice: 80})
	updated, err := f.service.UpdateOrder(context.Background(), ord.ID, UpdateInput{Items: &items}, f.employee.ID, accounts.RoleEmployee)
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	require.Equal(t, 0, f.engine.levels[scarce.ID.String()])
}

func TestCancelOrderNonAdmin(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	_, err = f.service.CancelOrder(context.Background(), ord.ID, f.employee.ID, accounts.RoleEmployee)
	require.EqualError(t, err, "Apenas administradores podem cancelar pedidos")

	stored, err := f.repo.FindByID(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Equal(t, 9, f.engine.levels[f.frame.ID.String()])
}

func TestCancelOrder(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(2))
	require.NoError(t, err)
	require.Equal(t, 8, f.engine.levels[f.frame.ID.String()])

	cancelled, err := f.service.CancelOrder(context.Background(), ord.ID, uuid.New(), accounts.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 10, f.engine.levels[f.frame.ID.String()])
	require.Len(t, f.ledger.removed, 1)
	require.Equal(t, ord.ID, f.ledger.removed[0].ID)
}

func TestCancelOrderSkipsMalformedItemRefs(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	// Simulate legacy data with a malformed reference alongside a valid one.
	stored := f.repo.byID[ord.ID]
	stored.Items = append(stored.Items, Item{ProductID: "legacy-ref-007", Quantity: 1})

	_, err = f.service.CancelOrder(context.Background(), ord.ID, uuid.New(), accounts.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 10, f.engine.levels[f.frame.ID.String()])
}

func TestSoftDeleteOrder(t *testing.T) {
	f := newOrderFixture(t, 10)
	ord, err := f.service.CreateOrder(context.Background(), f.newOrder(1))
	require.NoError(t, err)

	err = f.service.SoftDeleteOrder(context.Background(), ord.ID, f.employee.ID, accounts.RoleEmployee)
	require.EqualError(t, err, "Apenas administradores podem excluir pedidos")

	admin := uuid.New()
	require.NoError(t, f.service.SoftDeleteOrder(context.Background(), ord.ID, admin, accounts.RoleAdmin))

	_, err = f.service.GetOrder(context.Background(), ord.ID)
	require.EqualError(t, err, "Pedido não encontrado")

	// Soft delete does not restore stock and leaves the ledger alone.
	require.Equal(t, 9, f.engine.levels[f.frame.ID.String()])
	require.Empty(t, f.ledger.removed)
}
