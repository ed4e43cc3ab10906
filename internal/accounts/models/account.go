package models

import (
	"strings"
	"time"

	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// Role partitions accounts into the two actors the registry knows: verifying
// authority staff and citizens who own or buy titles.
type Role string

const (
	RoleVerifier Role = "verifier"
	RoleCitizen  Role = "citizen"
)

// Account links a person to the wallet address that represents them on chain.
// The wallet is the join key between local accounts and chain events: a sale
// confirmation resolves the buyer's account through it.
type Account struct {
	ID            domain.AccountID `json:"id"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	WalletAddress domain.Address   `json:"wallet_address"`
	Role          Role             `json:"role"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewAccountParams is the input for account creation.
type NewAccountParams struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
}

func (p *NewAccountParams) Normalize() {
	if p == nil {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.WalletAddress = strings.ToLower(strings.TrimSpace(p.WalletAddress))
	p.Role = strings.ToLower(strings.TrimSpace(p.Role))
}

func (p *NewAccountParams) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "account params are required")
	}
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if _, err := domain.ParseAddress(p.WalletAddress); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "wallet_address is invalid")
	}
	switch Role(p.Role) {
	case RoleVerifier, RoleCitizen:
	default:
		return dErrors.New(dErrors.CodeValidation, "role must be verifier or citizen")
	}
	return nil
}
