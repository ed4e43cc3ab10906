package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountmodels "landledger/internal/accounts/models"
	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/audit"
	"landledger/pkg/testutil"
)

func TestPrepareProducesSignablePayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "valid registration fields and both title documents")
	input := PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID}

	testutil.When(t, "the registration is prepared")
	prep, err := f.svc.Prepare(ctx, input)

	testutil.Then(t, "a payload hash, pinned documents and call data come back, with no chain write")
	require.NoError(t, err)
	assert.False(t, prep.PayloadHash.IsZero())
	assert.Len(t, prep.DocumentHashes, models.RequiredDocumentCount)
	assert.NotEmpty(t, prep.CallData)
	assert.Empty(t, f.gateway.MintedProperties)

	events := f.auditLog.ByAction(audit.ActionRegistrationPrepared)
	require.Len(t, events, 1)
	assert.Equal(t, "PID-1", events[0].PropertyID)
}

func TestPrepareIsDeterministicAcrossEquivalentInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "two prepares whose fields differ only in whitespace and trailing zeros")
	first, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	fields := f.fields("PID-2")
	fields.Area = "120.5000"
	fields.OwnerName = "  Asha Rao  "
	second, err := f.svc.Prepare(ctx, PrepareInput{Fields: fields, Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	testutil.Then(t, "document hashes agree and only the property id separates the payloads")
	assert.Equal(t, first.DocumentHashes, second.DocumentHashes)
	assert.NotEqual(t, first.PayloadHash, second.PayloadHash)
}

func TestPrepareRejectsDuplicatePropertyID(t *testing.T) {
	f := newFixture(t)
	f.prepareAndExecute(t, "PID-1")

	_, err := f.svc.Prepare(context.Background(), PrepareInput{
		Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestPrepareRejectsMissingDocuments(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Prepare(context.Background(), PrepareInput{
		Fields:     f.fields("PID-1"),
		Documents:  f.documents()[:1],
		PreparedBy: f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestPrepareFailsWhenPinningFails(t *testing.T) {
	f := newFixture(t)
	f.pinner.Err = errors.New("pinning service down")

	_, err := f.svc.Prepare(context.Background(), PrepareInput{
		Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Empty(t, f.gateway.MintedProperties)
}

func TestExecuteMintsAndRecords(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "a prepared registration signed by the owner wallet")
	testutil.When(t, "it is executed")
	record := f.prepareAndExecute(t, "PID-1")

	testutil.Then(t, "the title is minted, recorded as pending, and owned by the signer")
	assert.Equal(t, models.StatusPending, record.Status)
	assert.False(t, record.AssetID.IsZero())
	assert.False(t, record.MintTxHash.IsZero())
	assert.Equal(t, f.ownerWallet, record.OwnerWallet)
	assert.Equal(t, []string{"PID-1"}, f.gateway.MintedProperties)

	owner, ok := f.gateway.AssetOwner(record.AssetID)
	require.True(t, ok)
	assert.Equal(t, f.ownerWallet, owner)

	events := f.auditLog.ByAction(audit.ActionTitleMinted)
	require.Len(t, events, 1)
	assert.Equal(t, record.MintTxHash.String(), events[0].TxHash)
}

func TestExecuteResolvesRegisteredOwnerAccount(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "an owner wallet with a registered citizen account")
	owner, err := f.accounts.Register(context.Background(), accountmodels.NewAccountParams{
		Name:          "Asha Rao",
		Email:         "asha@example.org",
		WalletAddress: f.ownerWallet.String(),
		Role:          "citizen",
	})
	require.NoError(t, err)

	testutil.When(t, "the registration executes")
	record := f.prepareAndExecute(t, "PID-1")

	testutil.Then(t, "the ledger record references the owner's account")
	require.NotNil(t, record.OwnerRef)
	assert.Equal(t, owner.ID, *record.OwnerRef)
}

func TestExecuteLeavesOwnerRefNullForUnknownWallet(t *testing.T) {
	f := newFixture(t)
	record := f.prepareAndExecute(t, "PID-1")
	assert.Nil(t, record.OwnerRef)
}

func TestExecuteRejectsWrongKeySignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a prepared registration signed by a key other than the owner's")
	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	wrongKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	testutil.When(t, "execute is attempted with the foreign signature")
	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: prep.DocumentHashes,
		Signature:      signWith(t, wrongKey, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})

	testutil.Then(t, "it is rejected as a signature mismatch and nothing reaches the chain")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
	assert.Empty(t, f.gateway.MintedProperties)
	assert.Len(t, f.auditLog.ByAction(audit.ActionSignatureRejected), 1)
}

func TestExecuteRejectsTamperedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a signed registration whose area was altered after signing")
	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)
	sig := f.sign(t, prep.PayloadHash)

	tampered := f.fields("PID-1")
	tampered.Area = "999.99"

	testutil.When(t, "execute is attempted with the tampered fields")
	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         tampered,
		DocumentHashes: prep.DocumentHashes,
		Signature:      sig,
		ExecutedBy:     f.verifierID,
	})

	testutil.Then(t, "the integrity check fails before any signature or chain work")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
	assert.Empty(t, f.gateway.MintedProperties)
	assert.Len(t, f.auditLog.ByAction(audit.ActionIntegrityRejected), 1)
}

func TestExecuteRejectsSubstitutedDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	swapped := []string{prep.DocumentHashes[1], prep.DocumentHashes[0]}
	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: swapped,
		Signature:      f.sign(t, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestExecuteExpiredPreparation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	require.NoError(t, f.prepared.Delete(ctx, prep.PayloadHash))

	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: prep.DocumentHashes,
		Signature:      f.sign(t, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExecuteSurfacesContractRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a contract that reverts the mint")
	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)
	f.gateway.FailNext("mintAsset", errors.New("execution reverted: Property ID already exists"))

	testutil.When(t, "execute is attempted")
	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: prep.DocumentHashes,
		Signature:      f.sign(t, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})

	testutil.Then(t, "the revert reason comes back verbatim under the chain-rejected code")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainRejected))
	assert.Contains(t, err.Error(), "Property ID already exists")
}

func TestExecuteSurfacesChainUnavailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)
	f.gateway.FailNext("mintAsset", errors.New("connection refused"))

	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: prep.DocumentHashes,
		Signature:      f.sign(t, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainUnavailable))
}

func TestExecuteConsistencyFailureThenReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a ledger that fails its write after the mint confirms")
	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)
	sig := f.sign(t, prep.PayloadHash)
	f.properties.FailNextCreate = errors.New("ledger connection lost")

	testutil.When(t, "execute runs")
	_, err = f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields("PID-1"),
		DocumentHashes: prep.DocumentHashes,
		Signature:      sig,
		ExecutedBy:     f.verifierID,
	})

	testutil.Then(t, "a consistency failure carrying the mint tx hash is surfaced")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConsistency))
	require.Len(t, f.gateway.MintedProperties, 1)

	failures := f.auditLog.ByAction(audit.ActionConsistencyFailure)
	require.Len(t, failures, 1)
	txHash := failures[0].TxHash
	require.NotEmpty(t, txHash)
	assert.Contains(t, err.Error(), txHash)

	testutil.When(t, "the mint is replayed by transaction hash")
	record, err := f.svc.ReplayMint(ctx, ReplayInput{
		PayloadHash: prep.PayloadHash,
		TxHash:      domain.Hash(txHash),
		Signature:   sig,
		ExecutedBy:  f.verifierID,
	})

	testutil.Then(t, "the ledger record is recovered without a second mint")
	require.NoError(t, err)
	assert.Equal(t, "PID-1", record.PropertyID)
	assert.Equal(t, models.StatusPending, record.Status)
	assert.Len(t, f.gateway.MintedProperties, 1)
	assert.Len(t, f.auditLog.ByAction(audit.ActionMintReplayed), 1)

	testutil.When(t, "the same replay is submitted again")
	again, err := f.svc.ReplayMint(ctx, ReplayInput{
		PayloadHash: prep.PayloadHash,
		TxHash:      domain.Hash(txHash),
		Signature:   sig,
		ExecutedBy:  f.verifierID,
	})

	testutil.Then(t, "the existing record is returned unchanged")
	require.NoError(t, err)
	assert.Equal(t, record.PropertyID, again.PropertyID)
	assert.Len(t, f.gateway.MintedProperties, 1)
}

func TestReplayMintRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prep, err := f.svc.Prepare(ctx, PrepareInput{Fields: f.fields("PID-1"), Documents: f.documents(), PreparedBy: f.verifierID})
	require.NoError(t, err)

	wrongKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.svc.ReplayMint(ctx, ReplayInput{
		PayloadHash: prep.PayloadHash,
		TxHash:      "0x0000000000000000000000000000000000000000000000000000000000000001",
		Signature:   signWith(t, wrongKey, prep.PayloadHash),
		ExecutedBy:  f.verifierID,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}
