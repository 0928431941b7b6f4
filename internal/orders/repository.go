package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Repository persists orders in PostgreSQL. Line items live in a companion
// table and are written in the same transaction as the order row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, client_id, employee_id, responsible_client_id,
       total_price, discount, payment_entry, installments, final_price,
       status, delivery_date, observations, prescription,
       is_deleted, deleted_at, deleted_by, created_at, updated_at`

// Create inserts the order and its line items atomically.
func (r *Repository) Create(ctx context.Context, ord *Order) error {
	prescription, err := marshalPrescription(ord.Prescription)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, client_id, employee_id, responsible_client_id,
			                    total_price, discount, payment_entry, installments, final_price,
			                    status, delivery_date, observations, prescription,
			                    is_deleted, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE, NOW(), NOW())`,
			ord.ID, ord.ClientID, ord.EmployeeID, ord.ResponsibleClientID,
			ord.TotalPrice, ord.Discount, ord.PaymentEntry, ord.Installments, ord.FinalPrice,
			string(ord.Status), ord.DeliveryDate, ord.Observations, prescription,
		)
		if err != nil {
			return fmt.Errorf("orders: insert order: %w", err)
		}
		return insertItems(ctx, tx, ord.ID, ord.Items)
	})
}

// FindByID fetches one order with its line items. Soft-deleted orders are
// treated as missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 AND is_deleted = FALSE`, orderColumns)
	row := r.pool.QueryRow(ctx, query, id)
	ord, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	ord.Items = items
	return ord, nil
}

// Update rewrites the mutable order fields and replaces the line items.
func (r *Repository) Update(ctx context.Context, ord *Order) error {
	prescription, err := marshalPrescription(ord.Prescription)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET total_price = $2, discount = $3, payment_entry = $4, installments = $5,
			    final_price = $6, status = $7, delivery_date = $8, observations = $9,
			    prescription = $10, updated_at = NOW()
			WHERE id = $1 AND is_deleted = FALSE`,
			ord.ID, ord.TotalPrice, ord.Discount, ord.PaymentEntry, ord.Installments,
			ord.FinalPrice, string(ord.Status), ord.DeliveryDate, ord.Observations, prescription,
		)
		if err != nil {
			return fmt.Errorf("orders: update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, ord.ID); err != nil {
			return fmt.Errorf("orders: clear items: %w", err)
		}
		return insertItems(ctx, tx, ord.ID, ord.Items)
	})
}

// List returns a page of orders plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where := "is_deleted = FALSE"
	args := []interface{}{}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.PageOffset(page, perPage))
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ord)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Items = items
	}
	return out, total, nil
}

// SoftDelete marks the order hidden without removing it.
func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET is_deleted = TRUE, deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`,
		id, deletedBy,
	)
	if err != nil {
		return fmt.Errorf("orders: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) loadItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []Item) error {
	for position, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, position, item.ProductID, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("orders: insert item: %w", err)
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var ord Order
	var status string
	var prescription []byte
	err := row.Scan(
		&ord.ID, &ord.ClientID, &ord.EmployeeID, &ord.ResponsibleClientID,
		&ord.TotalPrice, &ord.Discount, &ord.PaymentEntry, &ord.Installments, &ord.FinalPrice,
		&status, &ord.DeliveryDate, &ord.Observations, &prescription,
		&ord.IsDeleted, &ord.DeletedAt, &ord.DeletedBy, &ord.CreatedAt, &ord.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	ord.Status = Status(status)
	if len(prescription) > 0 {
		var p Prescription
		if err := json.Unmarshal(prescription, &p); err != nil {
			return nil, fmt.Errorf("orders: decode prescription: %w", err)
		}
		ord.Prescription = &p
	}
	return &ord, nil
}

func marshalPrescription(p *Prescription) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("orders: encode prescription: %w", err)
	}
	return raw, nil
}
