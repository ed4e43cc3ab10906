package property

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/testutil"
)

func record(propertyID string, assetID uint64, mintTx string) *models.PropertyRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.PropertyRecord{
		PropertyID:      propertyID,
		SurveyNumber:    "SN-42",
		AssetID:         domain.AssetID(assetID),
		PropertyAddress: "12 Harbor Lane",
		Area:            "120.5",
		OwnerName:       "Asha Rao",
		OwnerWallet:     domain.MustAddress("0x00112233445566778899aabbccddeeff00112233"),
		DocumentHashes:  []string{"QmDeed", "QmEncumbrance"},
		VerifierRef:     domain.NewAccountID(),
		Status:          models.StatusPending,
		MintTxHash:      domain.Hash(mintTx),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateRejectsDuplicatePropertyID(t *testing.T) {
	testutil.Given(t, "a registered property")
	store := NewInMemoryStore()
	require.NoError(t, store.Create(context.Background(), record("PID-1", 1, "0xaa")))

	testutil.When(t, "the same property id is registered under a new mint")
	err := store.Create(context.Background(), record("PID-1", 2, "0xbb"))

	testutil.Then(t, "the insert is refused")
	assert.ErrorIs(t, err, sentinel.ErrDuplicate)
}

func TestCreateRejectsDuplicateMintTx(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(context.Background(), record("PID-1", 1, "0xaa")))
	err := store.Create(context.Background(), record("PID-2", 2, "0xaa"))
	assert.ErrorIs(t, err, sentinel.ErrDuplicate)
}

func TestCreateIfAbsentIsIdempotentByMintTx(t *testing.T) {
	testutil.Given(t, "a recorded mint")
	store := NewInMemoryStore()
	created, err := store.CreateIfAbsent(context.Background(), record("PID-1", 1, "0xaa"))
	require.NoError(t, err)
	require.True(t, created)

	testutil.When(t, "the same mint transaction is replayed")
	created, err = store.CreateIfAbsent(context.Background(), record("PID-1", 1, "0xaa"))

	testutil.Then(t, "nothing is inserted and no error is raised")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpdateIfStatusEnforcesExpectedStatus(t *testing.T) {
	testutil.Given(t, "a pending property")
	store := NewInMemoryStore()
	rec := record("PID-1", 1, "0xaa")
	require.NoError(t, store.Create(context.Background(), rec))

	testutil.When(t, "a transition is applied against the right expected status")
	rec.ApplyVerification(time.Now())
	require.NoError(t, store.UpdateIfStatus(context.Background(), rec, models.StatusPending))

	testutil.Then(t, "a second transition against the stale expectation fails")
	rec.ApplyVerification(time.Now())
	err := store.UpdateIfStatus(context.Background(), rec, models.StatusPending)
	assert.ErrorIs(t, err, sentinel.ErrStaleStatus)

	got, err := store.GetByPropertyID(context.Background(), "PID-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.Status)
}

func TestUpdateIfStatusMissingRecord(t *testing.T) {
	store := NewInMemoryStore()
	rec := record("PID-9", 9, "0x99")
	err := store.UpdateIfStatus(context.Background(), rec, models.StatusPending)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetByAssetID(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Create(context.Background(), record("PID-1", 7, "0xaa")))

	got, err := store.GetByAssetID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "PID-1", got.PropertyID)

	_, err = store.GetByAssetID(context.Background(), 8)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	store := NewInMemoryStore()
	pending := record("PID-1", 1, "0xaa")
	require.NoError(t, store.Create(context.Background(), pending))

	verified := record("PID-2", 2, "0xbb")
	verified.Status = models.StatusVerified
	require.NoError(t, store.Create(context.Background(), verified))

	status := models.StatusVerified
	got, err := store.List(context.Background(), &status)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PID-2", got[0].PropertyID)

	all, err := store.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoredRecordsAreIsolatedFromCallerMutation(t *testing.T) {
	store := NewInMemoryStore()
	rec := record("PID-1", 1, "0xaa")
	require.NoError(t, store.Create(context.Background(), rec))

	rec.OwnerName = "changed after insert"
	rec.SalePrice = big.NewInt(5)

	got, err := store.GetByPropertyID(context.Background(), "PID-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.OwnerName)
	assert.Nil(t, got.SalePrice)
}
