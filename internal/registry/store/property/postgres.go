package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/lib/pq"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	platformtx "landledger/pkg/platform/tx"
)

// PostgresStore persists property records in postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const propertyColumns = `property_id, survey_number, asset_id, property_address, area,
	owner_name, owner_wallet, description, document_hashes, verifier_ref, owner_ref,
	status, mint_tx_hash, sale_tx_hash, consent_signature, sale_price,
	listed_at, sold_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.PropertyRecord) error {
	const query = `
		INSERT INTO properties (` + propertyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := s.q(ctx).ExecContext(ctx, query, insertArgs(record)...)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, record *models.PropertyRecord) (bool, error) {
	const query = `
		INSERT INTO properties (` + propertyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (mint_tx_hash) DO NOTHING`

	res, err := s.q(ctx).ExecContext(ctx, query, insertArgs(record)...)
	if isUniqueViolation(err) {
		// A different uniqueness gate fired: same property id or asset id
		// under a different mint transaction.
		return false, sentinel.ErrDuplicate
	}
	if err != nil {
		return false, fmt.Errorf("insert property: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert property: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) GetByPropertyID(ctx context.Context, propertyID string) (*models.PropertyRecord, error) {
	const query = `SELECT ` + propertyColumns + ` FROM properties WHERE property_id = $1`
	return scanProperty(s.q(ctx).QueryRowContext(ctx, query, propertyID))
}

func (s *PostgresStore) GetByAssetID(ctx context.Context, assetID domain.AssetID) (*models.PropertyRecord, error) {
	const query = `SELECT ` + propertyColumns + ` FROM properties WHERE asset_id = $1`
	return scanProperty(s.q(ctx).QueryRowContext(ctx, query, int64(assetID)))
}

func (s *PostgresStore) ExistsByPropertyID(ctx context.Context, propertyID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM properties WHERE property_id = $1)`
	var exists bool
	if err := s.q(ctx).QueryRowContext(ctx, query, propertyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check property existence: %w", err)
	}
	return exists, nil
}

// UpdateIfStatus runs the conditional update and, when it matches no row, the
// stale-vs-missing read in one transaction so both observe the same snapshot.
// A transaction already carried in ctx is reused instead.
func (s *PostgresStore) UpdateIfStatus(ctx context.Context, record *models.PropertyRecord, expected models.Status) error {
	if _, ok := platformtx.From(ctx); ok {
		return s.updateIfStatus(ctx, record, expected)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin property update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.updateIfStatus(platformtx.WithTx(ctx, tx), record, expected); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit property update: %w", err)
	}
	return nil
}

func (s *PostgresStore) updateIfStatus(ctx context.Context, record *models.PropertyRecord, expected models.Status) error {
	const query = `
		UPDATE properties
		SET owner_name = $1, owner_wallet = $2, owner_ref = $3, status = $4,
		    sale_tx_hash = $5, sale_price = $6, listed_at = $7, sold_at = $8,
		    updated_at = $9
		WHERE property_id = $10 AND status = $11`

	res, err := s.q(ctx).ExecContext(ctx, query,
		record.OwnerName,
		record.OwnerWallet.String(),
		ownerRefArg(record.OwnerRef),
		string(record.Status),
		nullString(string(record.SaleTxHash)),
		priceArg(record.SalePrice),
		nullTime(record.ListedAt),
		nullTime(record.SoldAt),
		record.UpdatedAt,
		record.PropertyID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := s.ExistsByPropertyID(ctx, record.PropertyID)
	if err != nil {
		return err
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrStaleStatus
}

func (s *PostgresStore) List(ctx context.Context, status *models.Status) ([]*models.PropertyRecord, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties ORDER BY created_at DESC`
	args := []any{}
	if status != nil {
		query = `SELECT ` + propertyColumns + ` FROM properties WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, string(*status))
	}
	return s.queryProperties(ctx, query, args...)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.Address) ([]*models.PropertyRecord, error) {
	const query = `SELECT ` + propertyColumns + ` FROM properties WHERE owner_wallet = $1 ORDER BY created_at DESC`
	return s.queryProperties(ctx, query, owner.String())
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...any) ([]*models.PropertyRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var records []*models.PropertyRecord
	for rows.Next() {
		record, err := scanPropertyRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return records, nil
}

func insertArgs(record *models.PropertyRecord) []any {
	return []any{
		record.PropertyID,
		record.SurveyNumber,
		assetIDArg(record.AssetID),
		record.PropertyAddress,
		record.Area,
		record.OwnerName,
		record.OwnerWallet.String(),
		record.Description,
		pq.Array(record.DocumentHashes),
		record.VerifierRef,
		ownerRefArg(record.OwnerRef),
		string(record.Status),
		record.MintTxHash.String(),
		nullString(string(record.SaleTxHash)),
		priceArg(record.SalePrice),
		nullTime(record.ListedAt),
		nullTime(record.SoldAt),
		record.CreatedAt,
		record.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row *sql.Row) (*models.PropertyRecord, error) {
	record, err := scanPropertyFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func scanPropertyRows(rows *sql.Rows) (*models.PropertyRecord, error) {
	return scanPropertyFrom(rows)
}

func scanPropertyFrom(row rowScanner) (*models.PropertyRecord, error) {
	var (
		record     models.PropertyRecord
		assetID    sql.NullInt64
		ownerWallet string
		docs       pq.StringArray
		ownerRef   sql.NullString
		mintTx     string
		saleTx     sql.NullString
		salePrice  sql.NullString
		listedAt   sql.NullTime
		soldAt     sql.NullTime
	)
	err := row.Scan(
		&record.PropertyID,
		&record.SurveyNumber,
		&assetID,
		&record.PropertyAddress,
		&record.Area,
		&record.OwnerName,
		&ownerWallet,
		&record.Description,
		&docs,
		&record.VerifierRef,
		&ownerRef,
		&record.Status,
		&mintTx,
		&saleTx,
		&salePrice,
		&listedAt,
		&soldAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scan property: %w", err)
	}

	if assetID.Valid {
		record.AssetID = domain.AssetID(assetID.Int64)
	}
	wallet, err := domain.ParseAddress(ownerWallet)
	if err != nil {
		return nil, fmt.Errorf("stored owner wallet is invalid: %w", err)
	}
	record.OwnerWallet = wallet
	record.DocumentHashes = []string(docs)
	if ownerRef.Valid {
		ref, err := domain.ParseAccountID(ownerRef.String)
		if err != nil {
			return nil, fmt.Errorf("stored owner ref is invalid: %w", err)
		}
		record.OwnerRef = &ref
	}
	record.MintTxHash = domain.Hash(mintTx)
	if saleTx.Valid {
		record.SaleTxHash = domain.Hash(saleTx.String)
	}
	if salePrice.Valid {
		price, ok := new(big.Int).SetString(salePrice.String, 10)
		if !ok {
			return nil, fmt.Errorf("stored sale price is invalid: %q", salePrice.String)
		}
		record.SalePrice = price
	}
	if listedAt.Valid {
		t := listedAt.Time
		record.ListedAt = &t
	}
	if soldAt.Valid {
		t := soldAt.Time
		record.SoldAt = &t
	}
	return &record, nil
}

func assetIDArg(id domain.AssetID) any {
	if id.IsZero() {
		return nil
	}
	return int64(id)
}

func ownerRefArg(ref *domain.AccountID) any {
	if ref == nil {
		return nil
	}
	return *ref
}

func priceArg(price *big.Int) any {
	if price == nil {
		return nil
	}
	return price.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

var _ Store = (*PostgresStore)(nil)
