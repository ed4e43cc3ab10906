package models

import (
	"strings"

	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// RegistrationFields are the descriptive attributes a verifying authority
// submits for a new title. The same struct is submitted at prepare and again
// at execute; the canonical payload is recomputed from it both times, so any
// drift between the two submissions is detectable.
type RegistrationFields struct {
	PropertyID      string `json:"property_id"`
	SurveyNumber    string `json:"survey_number"`
	PropertyAddress string `json:"property_address"`
	Area            string `json:"area"`
	OwnerName       string `json:"owner_name"`
	OwnerWallet     string `json:"owner_wallet_address"`
	Description     string `json:"description"`
}

// Normalize trims all fields and lowercases the wallet address.
func (f *RegistrationFields) Normalize() {
	if f == nil {
		return
	}
	f.PropertyID = strings.TrimSpace(f.PropertyID)
	f.SurveyNumber = strings.TrimSpace(f.SurveyNumber)
	f.PropertyAddress = strings.TrimSpace(f.PropertyAddress)
	f.Area = strings.TrimSpace(f.Area)
	f.OwnerName = strings.TrimSpace(f.OwnerName)
	f.OwnerWallet = strings.ToLower(strings.TrimSpace(f.OwnerWallet))
	f.Description = strings.TrimSpace(f.Description)
}

// Validate checks required fields. Area format and wallet format get their
// precise validation in the canonical payload builder and domain.ParseAddress;
// this catches missing input early with a field-specific message.
func (f *RegistrationFields) Validate() error {
	if f == nil {
		return dErrors.New(dErrors.CodeBadRequest, "registration fields are required")
	}
	if f.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property_id is required")
	}
	if f.SurveyNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "survey_number is required")
	}
	if f.PropertyAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "property_address is required")
	}
	if f.Area == "" {
		return dErrors.New(dErrors.CodeValidation, "area is required")
	}
	if f.OwnerName == "" {
		return dErrors.New(dErrors.CodeValidation, "owner_name is required")
	}
	if _, err := domain.ParseAddress(f.OwnerWallet); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "owner_wallet_address is invalid")
	}
	return nil
}

// WalletAddress returns the parsed owner wallet. Call after Validate.
func (f *RegistrationFields) WalletAddress() domain.Address {
	addr, _ := domain.ParseAddress(f.OwnerWallet)
	return addr
}
