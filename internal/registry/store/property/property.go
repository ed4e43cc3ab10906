// Package property is the off-chain title ledger. Uniqueness constraints on
// property id, asset id and mint transaction hash are the idempotency gates
// for registration and replay; conditional status updates serialize lifecycle
// transitions without in-process locks.
package property

import (
	"context"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
)

// Store persists property records.
type Store interface {
	// Create inserts a new record. Returns sentinel.ErrDuplicate when the
	// property id, asset id or mint transaction hash already exists.
	Create(ctx context.Context, record *models.PropertyRecord) error

	// CreateIfAbsent inserts the record unless its mint transaction hash is
	// already recorded. Returns created=false without error on replay.
	CreateIfAbsent(ctx context.Context, record *models.PropertyRecord) (bool, error)

	// GetByPropertyID loads one record, or sentinel.ErrNotFound.
	GetByPropertyID(ctx context.Context, propertyID string) (*models.PropertyRecord, error)

	// GetByAssetID loads one record by chain asset id, or sentinel.ErrNotFound.
	GetByAssetID(ctx context.Context, assetID domain.AssetID) (*models.PropertyRecord, error)

	// ExistsByPropertyID reports whether a property id is taken.
	ExistsByPropertyID(ctx context.Context, propertyID string) (bool, error)

	// UpdateIfStatus writes the record's mutable fields only while the stored
	// status still equals expected. A concurrent transition surfaces as
	// sentinel.ErrStaleStatus; a missing record as sentinel.ErrNotFound.
	UpdateIfStatus(ctx context.Context, record *models.PropertyRecord, expected models.Status) error

	// List returns records, optionally filtered by status, newest first.
	List(ctx context.Context, status *models.Status) ([]*models.PropertyRecord, error)

	// ListByOwner returns records currently owned by the wallet, newest first.
	ListByOwner(ctx context.Context, owner domain.Address) ([]*models.PropertyRecord, error)
}
