// Package audit defines the event trail for registry and marketplace
// operations. Chain truth is the system of record; the audit stream exists
// for operator visibility and dispute reconstruction, so emission is
// fail-open: a failed append is logged, never blocks the business operation.
package audit

import (
	"context"
	"time"
)

// Action names. Past tense, one per completed state transition or notable
// failure.
const (
	ActionRegistrationPrepared = "registration_prepared"
	ActionTitleMinted          = "title_minted"
	ActionMintReplayed         = "mint_replayed"
	ActionPropertyVerified     = "property_verified"
	ActionPropertyListed       = "property_listed"
	ActionSaleConfirmed        = "sale_confirmed"
	ActionEscrowWithdrawn      = "escrow_withdrawn"
	ActionConsistencyFailure   = "consistency_failure"
	ActionIntegrityRejected    = "integrity_rejected"
	ActionSignatureRejected    = "signature_rejected"
)

// Event is one audit trail entry.
type Event struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	PropertyID string    `json:"property_id,omitempty"`
	AssetID    string    `json:"asset_id,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Wallet     string    `json:"wallet,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists audit events. Implementations: in-memory (tests), Kafka
// (production stream).
type Store interface {
	Append(ctx context.Context, event Event) error
}
