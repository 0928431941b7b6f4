package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository persists products in PostgreSQL.
type Repository struct {
	db dbtx
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Bind returns a repository executing against the given transaction.
func (r *Repository) Bind(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const productColumns = `id, product_type, name, description, sell_price, cost_price,
       color, shape, reference, frame_type, stock, created_at, updated_at`

// FindByID fetches one product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.scanOne(ctx, query, id)
}

// FindByIDForUpdate fetches one product locking its row for the duration of
// the surrounding transaction. Must be called on a tx-bound repository.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns)
	return r.scanOne(ctx, query, id)
}

// UpdateStock applies amount to the stock column according to mode and
// returns the updated product, or nil when no row matched.
func (r *Repository) UpdateStock(ctx context.Context, id uuid.UUID, amount int, mode StockMode) (*Product, error) {
	var setClause string
	switch mode {
	case StockModeAdd:
		setClause = "stock = COALESCE(stock, 0) + $2"
	case StockModeSubtract:
		setClause = "stock = COALESCE(stock, 0) - $2"
	case StockModeSet:
		setClause = "stock = $2"
	default:
		return nil, fmt.Errorf("catalog: unknown stock mode %q", mode)
	}
	query := fmt.Sprintf(`UPDATE products SET %s, updated_at = NOW() WHERE id = $1 RETURNING %s`, setClause, productColumns)
	p, err := r.scanOne(ctx, query, id, amount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, p Product) error {
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, product_type, name, description, sell_price, cost_price,
		                      color, shape, reference, frame_type, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		p.ID, string(p.Type), p.Name, p.Description, p.SellPrice, p.CostPrice,
		p.Color, p.Shape, p.Reference, p.FrameType, p.Stock,
	)
	return err
}

// ListFrames returns every stock-tracked product, used by the integrity scan.
func (r *Repository) ListFrames(ctx context.Context) ([]Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE product_type = ANY($1) ORDER BY name`, productColumns)
	rows, err := r.db.Query(ctx, query, []string{string(ProductTypePrescriptionFrame), string(ProductTypeSunglassesFrame)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *Repository) scanOne(ctx context.Context, query string, args ...interface{}) (*Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanProduct(rows)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var productType string
	err := row.Scan(
		&p.ID, &productType, &p.Name, &p.Description, &p.SellPrice, &p.CostPrice,
		&p.Color, &p.Shape, &p.Reference, &p.FrameType, &p.Stock,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Type = ProductType(productType)
	return &p, nil
}
