package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, name, email, role, password_hash, debts, purchases, sales, created_at, updated_at`

// FindByID fetches one account.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// Create inserts an account.
func (r *Repository) Create(ctx context.Context, a Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, email, role, password_hash, debts, purchases, sales, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		a.ID, a.Name, a.Email, string(a.Role), a.PasswordHash, a.Debts, a.Purchases, a.Sales,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// AppendSale adds an order id to the employee's sales list. The guard on the
// array keeps the append idempotent.
func (r *Repository) AppendSale(ctx context.Context, employeeID, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET sales = array_append(sales, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(sales))`,
		employeeID, orderID,
	)
	return err
}

// RemoveSale filters an order id out of the employee's sales list.
func (r *Repository) RemoveSale(ctx context.Context, employeeID, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET sales = array_remove(sales, $2), updated_at = NOW()
		WHERE id = $1`,
		employeeID, orderID,
	)
	return err
}

// AppendPurchase adds an order id to the customer's purchase list, idempotently.
func (r *Repository) AppendPurchase(ctx context.Context, clientID, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET purchases = array_append(purchases, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(purchases))`,
		clientID, orderID,
	)
	return err
}

// RemovePurchase filters an order id out of the customer's purchase list.
func (r *Repository) RemovePurchase(ctx context.Context, clientID, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET purchases = array_remove(purchases, $2), updated_at = NOW()
		WHERE id = $1`,
		clientID, orderID,
	)
	return err
}

// AddDebt increments the customer's debt balance. Returns false when the
// account does not exist.
func (r *Repository) AddDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET debts = debts + $2, updated_at = NOW() WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SubtractDebt decrements the customer's debt balance, floored at zero.
// Returns false when the account does not exist.
func (r *Repository) SubtractDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET debts = GREATEST(debts - $2, 0), updated_at = NOW() WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetDebt returns the stored balance. The second result reports whether the
// account exists.
func (r *Repository) GetDebt(ctx context.Context, id uuid.UUID) (float64, bool, error) {
	var debts float64
	err := r.pool.QueryRow(ctx, `SELECT debts FROM accounts WHERE id = $1`, id).Scan(&debts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return debts, true, nil
}

// ListDebtorIDs returns every account carrying an outstanding balance, used
// by the debt cache warmup job.
func (r *Repository) ListDebtorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM accounts WHERE debts > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePasswordHash replaces the stored password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var role string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &role, &a.PasswordHash, &a.Debts, &a.Purchases, &a.Sales, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = Role(role)
	return &a, nil
}

// LegacyRepository persists legacy clients.
type LegacyRepository struct {
	pool *pgxpool.Pool
}

// NewLegacyRepository constructs LegacyRepository.
func NewLegacyRepository(pool *pgxpool.Pool) *LegacyRepository {
	return &LegacyRepository{pool: pool}
}

// FindByID fetches one legacy client.
func (r *LegacyRepository) FindByID(ctx context.Context, id uuid.UUID) (*LegacyClient, error) {
	var c LegacyClient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, document, phone, total_debt, created_at, updated_at
		FROM legacy_clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Document, &c.Phone, &c.TotalDebt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AddDebt increments the legacy client's debt total.
func (r *LegacyRepository) AddDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE legacy_clients SET total_debt = total_debt + $2, updated_at = NOW() WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SubtractDebt decrements the legacy client's debt total, floored at zero.
func (r *LegacyRepository) SubtractDebt(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE legacy_clients SET total_debt = GREATEST(total_debt - $2, 0), updated_at = NOW() WHERE id = $1`,
		id, amount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetDebt returns the stored total. The second result reports existence.
func (r *LegacyRepository) GetDebt(ctx context.Context, id uuid.UUID) (float64, bool, error) {
	var debt float64
	err := r.pool.QueryRow(ctx, `SELECT total_debt FROM legacy_clients WHERE id = $1`, id).Scan(&debt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return debt, true, nil
}
