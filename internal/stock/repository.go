package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/catalog"
)

// TxRepository exposes the transactional operations used by the engine. The
// product lookup, stock write and ledger write of one movement always run
// against the same transaction.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, amount int, mode catalog.StockMode) (*catalog.Product, error)
	InsertLogEntry(ctx context.Context, entry LogEntry) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	ListLogEntries(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	products *catalog.Repository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, products *catalog.Repository) *Repository {
	return &Repository{pool: pool, products: products}
}

type txRepo struct {
	tx       pgx.Tx
	products *catalog.Repository
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	wrapper := &txRepo{tx: tx, products: r.products.Bind(tx)}
	if err := fn(ctx, wrapper); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetProduct reads a product outside any transaction, used by the dry-run
// availability check.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.products.FindByID(ctx, id)
}

// ListLogEntries returns ledger entries for a product, newest first.
func (r *Repository) ListLogEntries(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, order_id, previous_stock, new_stock, quantity, operation, reason, performed_by, created_at
		FROM stock_logs
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		filter.ProductID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var operation string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OrderID, &e.PreviousStock, &e.NewStock, &e.Quantity, &operation, &e.Reason, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Operation = Operation(operation)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.products.FindByIDForUpdate(ctx, id)
}

func (r *txRepo) UpdateStock(ctx context.Context, id uuid.UUID, amount int, mode catalog.StockMode) (*catalog.Product, error) {
	return r.products.UpdateStock(ctx, id, amount, mode)
}

func (r *txRepo) InsertLogEntry(ctx context.Context, entry LogEntry) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO stock_logs (id, product_id, order_id, previous_stock, new_stock, quantity, operation, reason, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		entry.ID, entry.ProductID, entry.OrderID, entry.PreviousStock, entry.NewStock,
		entry.Quantity, string(entry.Operation), entry.Reason, entry.PerformedBy,
	)
	return err
}
