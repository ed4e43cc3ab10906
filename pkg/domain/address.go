package domain

import (
	"encoding/hex"
	"strings"

	dErrors "landledger/pkg/domain-errors"
)

// Address is a 20-byte wallet address carried in lowercase hex form with a
// 0x prefix. All comparisons go through the normalized representation, so two
// addresses differing only in checksum casing are equal.
type Address string

// ParseAddress validates and normalizes a wallet address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address must start with 0x")
	}
	body := s[2:]
	if len(body) != 40 {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address must be 20 bytes")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address is not valid hex")
	}
	return Address("0x" + strings.ToLower(body)), nil
}

// MustAddress is a test helper; it panics on invalid input.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return string(a)
}

func (a Address) IsZero() bool {
	return a == "" || a == "0x0000000000000000000000000000000000000000"
}

// Equal compares addresses case-insensitively, tolerating unnormalized input.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

// Bytes returns the 20 raw address bytes. Callers must hold a parsed address.
func (a Address) Bytes() []byte {
	b, _ := hex.DecodeString(strings.TrimPrefix(string(a), "0x"))
	return b
}

// Hash is a 32-byte digest (payload hash or transaction hash) in 0x-prefixed
// lowercase hex.
type Hash string

// ParseHash validates and normalizes a 32-byte hex digest.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeValidation, "hash must start with 0x")
	}
	body := s[2:]
	if len(body) != 64 {
		return "", dErrors.New(dErrors.CodeValidation, "hash must be 32 bytes")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "hash is not valid hex")
	}
	return Hash("0x" + strings.ToLower(body)), nil
}

// HashFromBytes builds a Hash from raw digest bytes.
func HashFromBytes(b []byte) Hash {
	return Hash("0x" + hex.EncodeToString(b))
}

func (h Hash) String() string {
	return string(h)
}

func (h Hash) IsZero() bool {
	return h == ""
}

// Bytes returns the raw 32 digest bytes. Callers must hold a parsed hash.
func (h Hash) Bytes() []byte {
	b, _ := hex.DecodeString(strings.TrimPrefix(string(h), "0x"))
	return b
}

// Equal compares hashes case-insensitively.
func (h Hash) Equal(other Hash) bool {
	return strings.EqualFold(string(h), string(other))
}
