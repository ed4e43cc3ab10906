package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/accounts/models"
	"landledger/internal/accounts/store"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/testutil"
)

func validParams() models.NewAccountParams {
	return models.NewAccountParams{
		Name:          "Asha Rao",
		Email:         "asha@example.org",
		WalletAddress: "0x00112233445566778899AABBCCDDEEFF00112233",
		Role:          "citizen",
	}
}

func TestRegisterNormalizesAndStores(t *testing.T) {
	testutil.Given(t, "params with a mixed-case wallet address")
	svc := New(store.NewInMemoryStore())

	testutil.When(t, "the account is registered")
	account, err := svc.Register(context.Background(), validParams())

	testutil.Then(t, "the wallet is stored lowercase and resolvable")
	require.NoError(t, err)
	assert.Equal(t, "0x00112233445566778899aabbccddeeff00112233", account.WalletAddress.String())
	assert.False(t, account.ID.IsNil())

	resolved, err := svc.ResolveByWallet(context.Background(), account.WalletAddress)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)
}

func TestRegisterRejectsDuplicateWallet(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	_, err := svc.Register(context.Background(), validParams())
	require.NoError(t, err)

	params := validParams()
	params.Name = "Someone Else"
	_, err = svc.Register(context.Background(), params)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	svc := New(store.NewInMemoryStore())

	cases := []struct {
		name   string
		mutate func(*models.NewAccountParams)
	}{
		{"missing name", func(p *models.NewAccountParams) { p.Name = "" }},
		{"bad email", func(p *models.NewAccountParams) { p.Email = "not-an-email" }},
		{"bad wallet", func(p *models.NewAccountParams) { p.WalletAddress = "0x123" }},
		{"bad role", func(p *models.NewAccountParams) { p.Role = "admin" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			_, err := svc.Register(context.Background(), params)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error")
		})
	}
}

func TestResolveByWalletUnknown(t *testing.T) {
	svc := New(store.NewInMemoryStore())
	_, err := svc.ResolveByWallet(context.Background(), domain.MustAddress("0x1111111111111111111111111111111111111111"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
