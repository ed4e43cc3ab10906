// Package chain is the service's only view of the blockchain: a small
// operation set with typed failures, centralized retry and confirmation
// waiting. Everything above it treats the chain as an external,
// eventually-observed source of truth.
package chain

import (
	"context"
	"math/big"

	"landledger/pkg/domain"
)

// MintRequest carries the attributes recorded on-chain at mint time.
type MintRequest struct {
	Owner           domain.Address
	PropertyID      string
	SurveyNumber    string
	PropertyAddress string
	Area            string
	OwnerName       string
	Description     string
	DocumentHashes  []string
}

// MintResult is the parsed outcome of a successful mint: the transaction
// hash and the chain-assigned asset identifier from the TitleMinted event.
type MintResult struct {
	TxHash     domain.Hash
	AssetID    domain.AssetID
	Owner      domain.Address
	PropertyID string
}

// TxResult is the outcome of a confirmed state-changing call.
type TxResult struct {
	TxHash domain.Hash
}

// SaleEvent is the PropertySold event captured from a buyer's purchase
// transaction.
type SaleEvent struct {
	AssetID     domain.AssetID
	Buyer       domain.Address
	Seller      domain.Address
	Price       *big.Int
	TxHash      domain.Hash
	BlockNumber uint64
}

// Gateway exposes the chain operations the registry consumes. Each write
// submits, waits for confirmation, and returns a parsed result or a typed
// *Error. Transient submission failures are retried internally with backoff
// up to a fixed ceiling; rejections surface immediately.
type Gateway interface {
	// EncodeMintCall returns the encoded call data for the mint, handed to
	// the caller at prepare time alongside the payload hash.
	EncodeMintCall(req MintRequest) ([]byte, error)

	// MintAsset mints a new title and parses the TitleMinted event. A
	// confirmed transaction without the event fails with ClassRejected: a
	// contract/ABI mismatch is not safe to silently accept.
	MintAsset(ctx context.Context, req MintRequest) (*MintResult, error)

	// MintEventByTx re-reads the TitleMinted event from an already-confirmed
	// transaction. Reconciliation path: replays a mint whose ledger write
	// was lost.
	MintEventByTx(ctx context.Context, txHash domain.Hash) (*MintResult, error)

	// SetVerified flips the on-chain verified flag for an asset.
	SetVerified(ctx context.Context, assetID domain.AssetID) (*TxResult, error)

	// ApproveForSale authorizes the marketplace to move the asset.
	ApproveForSale(ctx context.Context, assetID domain.AssetID) (*TxResult, error)

	// ListForSale lists the asset on the marketplace at the given wei price.
	ListForSale(ctx context.Context, assetID domain.AssetID, price *big.Int) (*TxResult, error)

	// SaleEventByTx reads the PropertySold event from the buyer's purchase
	// transaction.
	SaleEventByTx(ctx context.Context, txHash domain.Hash) (*SaleEvent, error)

	// EscrowBalance reads the pending escrow balance for a seller address.
	EscrowBalance(ctx context.Context, seller domain.Address) (*big.Int, error)

	// WithdrawEscrow pays out the escrow balance held for the given seller.
	WithdrawEscrow(ctx context.Context, seller domain.Address) (*TxResult, error)
}
