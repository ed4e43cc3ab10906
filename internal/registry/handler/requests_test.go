package handler

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/registry/models"
	dErrors "landledger/pkg/domain-errors"
)

const goodHash = "0x1111111111111111111111111111111111111111111111111111111111111111"

func validExecuteRequest() ExecuteRegistrationRequest {
	return ExecuteRegistrationRequest{
		PayloadHash: goodHash,
		Fields: models.RegistrationFields{
			PropertyID:      "PID-1",
			SurveyNumber:    "SN-1",
			PropertyAddress: "addr",
			Area:            "10",
			OwnerName:       "A",
			OwnerWallet:     "0x00112233445566778899aabbccddeeff00112233",
		},
		DocumentHashes: []string{"QmA", "QmB"},
		Signature:      "0xsig",
	}
}

func TestExecuteRequestValidate(t *testing.T) {
	req := validExecuteRequest()
	req.Normalize()
	require.NoError(t, req.Validate())

	bad := validExecuteRequest()
	bad.PayloadHash = "0x123"
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeValidation))

	bad = validExecuteRequest()
	bad.Signature = ""
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeValidation))

	bad = validExecuteRequest()
	bad.DocumentHashes = []string{"QmA"}
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeValidation))
}

func TestExecuteRequestNormalizeTrims(t *testing.T) {
	req := validExecuteRequest()
	req.PayloadHash = "  " + goodHash + "  "
	req.DocumentHashes = []string{" QmA ", "QmB"}
	req.Normalize()
	assert.Equal(t, goodHash, req.PayloadHash)
	assert.Equal(t, "QmA", req.DocumentHashes[0])
}

func TestRequestHashesNormalizeCase(t *testing.T) {
	lower := "0xaabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"
	upper := "0x" + strings.ToUpper(lower[2:])

	exec := validExecuteRequest()
	exec.PayloadHash = upper
	require.NoError(t, exec.Validate())
	assert.Equal(t, lower, exec.Hash().String())

	rec := ReconcileRequest{PayloadHash: upper, TxHash: upper, Signature: "0xsig"}
	require.NoError(t, rec.Validate())
	payload, tx := rec.Hashes()
	assert.Equal(t, lower, payload.String())
	assert.Equal(t, lower, tx.String())

	sale := ConfirmSaleRequest{SaleTxHash: upper}
	require.NoError(t, sale.Validate())
	assert.Equal(t, lower, sale.Hash().String())
}

func TestReconcileRequestValidate(t *testing.T) {
	req := ReconcileRequest{PayloadHash: goodHash, TxHash: goodHash, Signature: "0xsig"}
	require.NoError(t, req.Validate())

	req.TxHash = "nope"
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}

func TestListForSaleRequestPrice(t *testing.T) {
	req := ListForSaleRequest{PriceWei: "123456789012345678901234567890"}
	require.NoError(t, req.Validate())
	price, err := req.Price()
	require.NoError(t, err)

	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	assert.Zero(t, want.Cmp(price))

	for _, bad := range []string{"", "0", "-5", "1.5", "abc", "0x10"} {
		req := ListForSaleRequest{PriceWei: bad}
		assert.Error(t, req.Validate(), bad)
	}
}

func TestConfirmSaleRequestValidate(t *testing.T) {
	req := ConfirmSaleRequest{SaleTxHash: goodHash}
	require.NoError(t, req.Validate())

	req.SaleTxHash = ""
	assert.Error(t, req.Validate())
}
