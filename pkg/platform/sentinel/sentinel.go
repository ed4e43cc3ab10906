package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrDuplicate: unique constraint (property id, asset id, wallet) violated
// - ErrStaleStatus: conditional status update lost the race, precondition no longer holds
// - ErrExpired: prepared registration past its TTL
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate")
	ErrStaleStatus = errors.New("stale status")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
