package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.Register(context.Background(), "", "a@b.c", "longenough", RoleCustomer)
	require.Error(t, err)

	_, err = svc.Register(context.Background(), "Maria", "", "longenough", RoleCustomer)
	require.Error(t, err)

	_, err = svc.Register(context.Background(), "Maria", "maria@shop.local", "short", RoleCustomer)
	require.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	svc := NewService(nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	account := &Account{PasswordHash: string(hash)}

	require.True(t, svc.CheckPassword(account, "correct horse"))
	require.False(t, svc.CheckPassword(account, "wrong horse"))
	require.False(t, svc.CheckPassword(nil, "anything"))
}
