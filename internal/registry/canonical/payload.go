// Package canonical builds the deterministic byte representation of a
// property's core attributes. Its keccak-256 digest is the single object of
// agreement between the registering authority and the owner's wallet: the
// owner signs it, and execute recomputes it to prove the inputs did not move
// between prepare and signature submission.
package canonical

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

// payload fields are serialized in fixed alphabetical key order. Go encodes
// struct fields in declaration order, so the declaration order below IS the
// wire order and must never be rearranged.
type payload struct {
	Area            string   `json:"area"`
	DocumentHashes  []string `json:"documentHashes"`
	OwnerName       string   `json:"ownerName"`
	OwnerWallet     string   `json:"ownerWalletAddress"`
	PropertyAddress string   `json:"propertyAddress"`
	PropertyID      string   `json:"propertyId"`
	SurveyNumber    string   `json:"surveyNumber"`
}

// Build serializes the registration fields and document hashes into the
// canonical byte sequence. Document hashes are part of the signed set so a
// party cannot substitute different documents after the owner signs.
func Build(fields models.RegistrationFields, documentHashes []string) ([]byte, error) {
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if len(documentHashes) != models.RequiredDocumentCount {
		return nil, dErrors.New(dErrors.CodeValidation, "exactly two document hashes are required")
	}
	for _, h := range documentHashes {
		if strings.TrimSpace(h) == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "document hash must not be empty")
		}
	}

	area, err := CanonicalDecimal(fields.Area)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, len(documentHashes))
	for i, h := range documentHashes {
		hashes[i] = strings.TrimSpace(h)
	}

	p := payload{
		Area:            area,
		DocumentHashes:  hashes,
		OwnerName:       fields.OwnerName,
		OwnerWallet:     string(fields.WalletAddress()),
		PropertyAddress: fields.PropertyAddress,
		PropertyID:      fields.PropertyID,
		SurveyNumber:    fields.SurveyNumber,
	}

	out, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "serialize canonical payload")
	}
	return out, nil
}

// Digest returns the keccak-256 hash of the canonical payload.
func Digest(fields models.RegistrationFields, documentHashes []string) (domain.Hash, error) {
	raw, err := Build(fields, documentHashes)
	if err != nil {
		return "", err
	}
	return domain.HashFromBytes(crypto.Keccak256(raw)), nil
}

var decimalRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// CanonicalDecimal normalizes a decimal string so logically equal inputs
// ("1200", "1200.0", "01200.00") serialize identically. Native float
// formatting is deliberately avoided.
func CanonicalDecimal(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !decimalRe.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "area must be a positive decimal number")
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	fracPart = strings.TrimRight(fracPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" {
		return "", dErrors.New(dErrors.CodeValidation, "area must be greater than zero")
	}
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}
