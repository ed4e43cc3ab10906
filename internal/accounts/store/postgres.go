package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"landledger/internal/accounts/models"
	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, name, email, wallet_address, role, created_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	const query = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.WalletAddress.String(),
		string(account.Role),
		account.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) GetByWallet(ctx context.Context, wallet domain.Address) (*models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE wallet_address = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, wallet.String()))
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		account models.Account
		wallet  string
	)
	err := row.Scan(&account.ID, &account.Name, &account.Email, &wallet, &account.Role, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	addr, err := domain.ParseAddress(wallet)
	if err != nil {
		return nil, fmt.Errorf("stored wallet address is invalid: %w", err)
	}
	account.WalletAddress = addr
	return &account, nil
}

var _ Store = (*PostgresStore)(nil)
