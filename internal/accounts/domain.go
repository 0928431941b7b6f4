package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role classifies an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// CanManageOrders reports whether the role may act as the selling employee.
func (r Role) CanManageOrders() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// Account is a registered user of the shop: a customer, an employee or an
// admin. Customers carry a debt balance and a purchase history; employees and
// admins carry a sales history.
type Account struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Role         Role
	PasswordHash string

	Debts     float64
	Purchases []uuid.UUID
	Sales     []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LegacyClient is an account kind predating the regular user model. It only
// tracks identification and an outstanding debt total.
type LegacyClient struct {
	ID        uuid.UUID
	Name      string
	Document  *string
	Phone     *string
	TotalDebt float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrEmailTaken indicates a duplicate email on creation.
	ErrEmailTaken = errors.New("accounts: email already registered")
)
