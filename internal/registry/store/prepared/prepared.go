// Package prepared holds registrations between the prepare and execute calls.
// Entries are keyed by payload hash and expire: a hash that was never signed
// should not accumulate forever, and an expired hash forces a fresh prepare
// whose integrity check starts from current inputs.
package prepared

import (
	"context"
	"time"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
)

// Registration is the server-side half of a prepared registration: everything
// needed to recompute the canonical payload and submit the mint once the
// owner's signature arrives.
type Registration struct {
	PayloadHash    domain.Hash               `json:"payload_hash"`
	Fields         models.RegistrationFields `json:"fields"`
	DocumentHashes []string                  `json:"document_hashes"`
	CallData       []byte                    `json:"call_data"`
	PreparedBy     domain.AccountID          `json:"prepared_by"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// Store persists prepared registrations with a bounded lifetime.
type Store interface {
	// Save stores the registration under its payload hash for ttl.
	Save(ctx context.Context, reg Registration, ttl time.Duration) error

	// Get returns the registration for a payload hash, or sentinel.ErrNotFound
	// when it is absent or expired.
	Get(ctx context.Context, payloadHash domain.Hash) (*Registration, error)

	// Delete removes a consumed registration. Missing entries are not an
	// error: execute deletes best-effort after the mint is recorded.
	Delete(ctx context.Context, payloadHash domain.Hash) error
}
