// Package domain holds the typed identifiers and value objects shared across
// modules. Keeping them in one place prevents accidental mixing of business
// keys (property IDs), chain-assigned keys (asset IDs) and local account IDs.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	dErrors "landledger/pkg/domain-errors"
)

// AccountID identifies a locally registered account.
type AccountID uuid.UUID

func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

func (id AccountID) String() string {
	return uuid.UUID(id).String()
}

func (id AccountID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// ParseAccountID parses an account ID from its string form.
func ParseAccountID(s string) (AccountID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, dErrors.New(dErrors.CodeBadRequest, "invalid account id")
	}
	return AccountID(u), nil
}

// MarshalJSON renders the ID in canonical UUID form.
func (id AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id).String())
}

func (id *AccountID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

// Value implements driver.Valuer so the ID stores as a UUID column.
func (id AccountID) Value() (driver.Value, error) {
	return uuid.UUID(id).String(), nil
}

func (id *AccountID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

// AssetID is the chain-assigned identifier of a minted title. Zero is never a
// valid asset ID; the contract starts numbering at 1.
type AssetID uint64

func (id AssetID) IsZero() bool {
	return id == 0
}

func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseAssetID parses a decimal asset ID.
func ParseAssetID(s string) (AssetID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid asset id")
	}
	return AssetID(v), nil
}
