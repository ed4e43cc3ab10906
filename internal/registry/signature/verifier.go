// Package signature recovers the signer of a consent signature over a
// canonical payload hash. Wallets sign via the personal-sign scheme, which
// prefixes the 32-byte digest before hashing; recovery reverses that.
package signature

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"landledger/pkg/domain"
)

const personalSignPrefix = "\x19Ethereum Signed Message:\n32"

// Verify reports whether sig was produced over payloadHash by the key behind
// expected. It fails closed: malformed signatures, recovery errors and
// address mismatches all return false, never an error a caller could
// mistake for success. Pure function over its inputs.
func Verify(payloadHash domain.Hash, sig string, expected domain.Address) bool {
	recovered, ok := Recover(payloadHash, sig)
	if !ok {
		return false
	}
	return recovered.Equal(expected)
}

// Recover returns the address that signed payloadHash, or ok=false when the
// signature cannot be recovered.
func Recover(payloadHash domain.Hash, sig string) (domain.Address, bool) {
	if payloadHash.IsZero() {
		return "", false
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(sig), "0x"))
	if err != nil || len(raw) != crypto.SignatureLength {
		return "", false
	}

	// Wallets return v as 27/28; recovery wants 0/1.
	v := raw[crypto.RecoveryIDOffset]
	if v == 27 || v == 28 {
		raw = append([]byte(nil), raw...)
		raw[crypto.RecoveryIDOffset] = v - 27
	} else if v > 1 {
		return "", false
	}

	digest := crypto.Keccak256([]byte(personalSignPrefix), payloadHash.Bytes())
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return "", false
	}
	addr, err := domain.ParseAddress(crypto.PubkeyToAddress(*pub).Hex())
	if err != nil {
		return "", false
	}
	return addr, true
}
