package models

import (
	"math/big"
	"time"

	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// Status is the lifecycle state of a registered title. Transitions are
// monotonic: pending → verified → listed_for_sale → sold. Records are never
// deleted, only advanced.
type Status string

const (
	StatusPending       Status = "pending"
	StatusVerified      Status = "verified"
	StatusListedForSale Status = "listed_for_sale"
	StatusSold          Status = "sold"
)

// RequiredDocumentCount is the number of title documents a registration
// carries: the mother deed and the encumbrance certificate.
const RequiredDocumentCount = 2

// PropertyRecord is the off-chain projection of one minted title. The chain
// is the source of truth for ownership and escrow; this record exists so the
// service can enforce lifecycle preconditions and serve reads without a node
// round trip.
type PropertyRecord struct {
	PropertyID   string         `json:"property_id"`
	SurveyNumber string         `json:"survey_number"`
	AssetID      domain.AssetID `json:"asset_id"`

	PropertyAddress string         `json:"property_address"`
	Area            string         `json:"area"`
	OwnerName       string         `json:"owner_name"`
	OwnerWallet     domain.Address `json:"owner_wallet_address"`
	Description     string         `json:"description,omitempty"`

	DocumentHashes []string         `json:"document_hashes"`
	VerifierRef    domain.AccountID `json:"verifier_ref"`
	OwnerRef       *domain.AccountID `json:"owner_ref,omitempty"`

	Status     Status      `json:"status"`
	MintTxHash domain.Hash `json:"mint_transaction_hash"`
	SaleTxHash domain.Hash `json:"sale_transaction_hash,omitempty"`

	// ConsentSignature is kept for dispute resolution: it proves the owner
	// signed the canonical payload this title was minted from.
	ConsentSignature string `json:"-"`

	SalePrice *big.Int   `json:"-"`
	ListedAt  *time.Time `json:"listed_at,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanVerify reports whether the record may advance to verified.
func (p *PropertyRecord) CanVerify() error {
	if p.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "only pending properties can be verified")
	}
	return nil
}

// ApplyVerification advances pending → verified.
func (p *PropertyRecord) ApplyVerification(now time.Time) {
	p.Status = StatusVerified
	p.UpdatedAt = now
}

// CanList reports whether the record may be listed for sale.
func (p *PropertyRecord) CanList() error {
	if p.Status != StatusVerified {
		return dErrors.New(dErrors.CodeConflict, "only verified properties can be listed")
	}
	return nil
}

// ApplyListing advances verified → listed_for_sale.
func (p *PropertyRecord) ApplyListing(price *big.Int, now time.Time) {
	p.Status = StatusListedForSale
	p.SalePrice = new(big.Int).Set(price)
	p.ListedAt = &now
	p.UpdatedAt = now
}

// CanConfirmSale reports whether a sale may be confirmed.
func (p *PropertyRecord) CanConfirmSale() error {
	if p.Status != StatusListedForSale {
		return dErrors.New(dErrors.CodeConflict, "only listed properties can be sold")
	}
	return nil
}

// ApplySale advances listed_for_sale → sold, transferring local ownership to
// the buyer and clearing the listing.
func (p *PropertyRecord) ApplySale(buyerWallet domain.Address, buyerRef domain.AccountID, txHash domain.Hash, price *big.Int, now time.Time) {
	p.Status = StatusSold
	p.OwnerWallet = buyerWallet
	p.OwnerRef = &buyerRef
	p.SaleTxHash = txHash
	if price != nil {
		p.SalePrice = new(big.Int).Set(price)
	}
	p.ListedAt = nil
	p.SoldAt = &now
	p.UpdatedAt = now
}
