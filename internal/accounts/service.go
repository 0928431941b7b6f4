package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service provides account management on top of the repository.
type Service struct {
	repo *Repository
}

// NewService builds Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string, role Role) (*Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, errors.New("accounts: name and email are required")
	}
	if len(password) < 8 {
		return nil, errors.New("accounts: password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	account := Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		Purchases:    []uuid.UUID{},
		Sales:        []uuid.UUID{},
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SetPassword replaces an account's password.
func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if len(password) < 8 {
		return errors.New("accounts: password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, id, string(hash))
}

// CheckPassword verifies a password against the stored hash.
func (s *Service) CheckPassword(account *Account, password string) bool {
	if account == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) == nil
}
