package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddressNormalizesCase(t *testing.T) {
	addr, err := ParseAddress("0x00112233445566778899AABBCCDDEEFF00112233")
	require.NoError(t, err)
	assert.Equal(t, "0x00112233445566778899aabbccddeeff00112233", addr.String())
	assert.True(t, addr.Equal(MustAddress("0x00112233445566778899aabbccddeeff00112233")))
	assert.Len(t, addr.Bytes(), 20)
}

func TestParseAddressRejectsMalformedInput(t *testing.T) {
	for _, bad := range []string{
		"",
		"00112233445566778899aabbccddeeff00112233",
		"0x1234",
		"0x00112233445566778899aabbccddeeff0011223344",
		"0xzz112233445566778899aabbccddeeff00112233",
	} {
		_, err := ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, Address("").IsZero())
	assert.True(t, MustAddress("0x0000000000000000000000000000000000000000").IsZero())
	assert.False(t, MustAddress("0x0000000000000000000000000000000000000001").IsZero())
}

func TestParseHash(t *testing.T) {
	h, err := ParseHash("0xAA11223344556677889900AABBCCDDEEFF00112233445566778899AABBCCDDEE")
	require.NoError(t, err)
	assert.Equal(t, "0xaa11223344556677889900aabbccddeeff00112233445566778899aabbccddee", h.String())
	assert.Len(t, h.Bytes(), 32)

	for _, bad := range []string{"", "0x1234", "aa11"} {
		_, err := ParseHash(bad)
		assert.Error(t, err, bad)
	}
}

func TestHashFromBytesRoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	raw[0] = 0xde
	raw[31] = 0x07
	h := HashFromBytes(raw)
	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.Bytes())
}

func TestAccountIDJSONRoundTrip(t *testing.T) {
	id := NewAccountID()
	raw, err := json.Marshal(id)
	require.NoError(t, err)

	var back AccountID
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, id, back)

	parsed, err := ParseAccountID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseAssetID(t *testing.T) {
	id, err := ParseAssetID("42")
	require.NoError(t, err)
	assert.Equal(t, AssetID(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseAssetID(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, AssetID(0).IsZero())
}
