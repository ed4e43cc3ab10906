// Package store persists accounts. The wallet address is unique: one wallet,
// one account.
package store

import (
	"context"

	"landledger/internal/accounts/models"
	"landledger/pkg/domain"
)

type Store interface {
	// Create inserts an account. sentinel.ErrDuplicate when the wallet is
	// already registered.
	Create(ctx context.Context, account *models.Account) error

	// GetByID loads an account, or sentinel.ErrNotFound.
	GetByID(ctx context.Context, id domain.AccountID) (*models.Account, error)

	// GetByWallet loads the account behind a wallet, or sentinel.ErrNotFound.
	GetByWallet(ctx context.Context, wallet domain.Address) (*models.Account, error)
}
