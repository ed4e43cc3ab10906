// Package service implements account registration and lookup. Accounts exist
// so chain-side wallet addresses can be resolved to the people behind them;
// a buyer must be registered before a sale confirmation can credit them.
package service

import (
	"context"
	"errors"
	"log/slog"

	"landledger/internal/accounts/models"
	"landledger/internal/accounts/store"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store store.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account for a wallet. One account per wallet.
func (s *Service) Register(ctx context.Context, params models.NewAccountParams) (*models.Account, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	wallet, err := domain.ParseAddress(params.WalletAddress)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "wallet_address is invalid")
	}

	account := &models.Account{
		ID:            domain.NewAccountID(),
		Name:          params.Name,
		Email:         params.Email,
		WalletAddress: wallet,
		Role:          models.Role(params.Role),
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "wallet address is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(),
		"wallet", account.WalletAddress.String(),
		"role", string(account.Role),
	)
	return account, nil
}

// GetByID loads one account.
func (s *Service) GetByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	account, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// ResolveByWallet maps a chain-side wallet address to its local account.
func (s *Service) ResolveByWallet(ctx context.Context, wallet domain.Address) (*models.Account, error) {
	account, err := s.store.GetByWallet(ctx, wallet)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no account is registered for wallet "+wallet.String())
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve wallet")
	}
	return account, nil
}
