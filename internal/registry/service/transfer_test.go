package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/testutil"
)

func TestVerifyAdvancesPendingTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a freshly minted pending title")
	record := f.prepareAndExecute(t, "PID-1")

	testutil.When(t, "a verifier approves it")
	verified, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)

	testutil.Then(t, "the record and the chain both show verified")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, verified.Status)
	assert.True(t, f.gateway.AssetVerified(record.AssetID))
	assert.Len(t, f.auditLog.ByAction(audit.ActionPropertyVerified), 1)
}

func TestVerifyRejectsNonPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.prepareAndExecute(t, "PID-1")

	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestListForSaleRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.prepareAndExecute(t, "PID-1")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)

	testutil.When(t, "someone other than the owner tries to list")
	stranger := domain.MustAddress("0x9999999999999999999999999999999999999999")
	_, err = f.svc.ListForSale(ctx, record.PropertyID, stranger, big.NewInt(1000))

	testutil.Then(t, "the listing is forbidden")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestListForSaleRequiresVerifiedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.prepareAndExecute(t, "PID-1")

	_, err := f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, big.NewInt(1000))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestListForSaleRejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.prepareAndExecute(t, "PID-1")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)

	_, err = f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, big.NewInt(0))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestListForSaleHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a verified title")
	record := f.prepareAndExecute(t, "PID-1")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)

	testutil.When(t, "the owner lists it")
	price := big.NewInt(2_500_000)
	listed, err := f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, price)

	testutil.Then(t, "the record carries the listing price and status")
	require.NoError(t, err)
	assert.Equal(t, models.StatusListedForSale, listed.Status)
	require.NotNil(t, listed.SalePrice)
	assert.Zero(t, price.Cmp(listed.SalePrice))
	assert.NotNil(t, listed.ListedAt)
}

// listAndSell drives a title to listed_for_sale and simulates the buyer's
// on-chain purchase, returning the sale transaction hash.
func listAndSell(t *testing.T, f *fixture, propertyID string, buyer domain.Address, price *big.Int) (*models.PropertyRecord, domain.Hash) {
	t.Helper()
	ctx := context.Background()

	record := f.prepareAndExecute(t, propertyID)
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)
	listed, err := f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, price)
	require.NoError(t, err)

	saleTx, err := f.gateway.SimulatePurchase(listed.AssetID, buyer)
	require.NoError(t, err)
	return listed, saleTx
}

func TestConfirmSaleTransfersOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a listed title bought on chain by a registered buyer")
	buyer := f.registerBuyer(t)
	price := big.NewInt(5_000_000)
	listed, saleTx := listAndSell(t, f, "PID-1", buyer, price)

	testutil.When(t, "the sale is confirmed from the purchase transaction")
	sold, err := f.svc.ConfirmSale(ctx, listed.PropertyID, saleTx)

	testutil.Then(t, "ownership, status and escrow all reflect the sale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, sold.Status)
	assert.Equal(t, buyer, sold.OwnerWallet)
	require.NotNil(t, sold.OwnerRef)
	assert.Equal(t, saleTx, sold.SaleTxHash)
	require.NotNil(t, sold.SalePrice)
	assert.Zero(t, price.Cmp(sold.SalePrice))

	balance, err := f.svc.EscrowBalance(ctx, f.ownerWallet)
	require.NoError(t, err)
	assert.Zero(t, price.Cmp(balance))
	assert.Len(t, f.auditLog.ByAction(audit.ActionSaleConfirmed), 1)
}

func TestConfirmSaleRejectsUnregisteredBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a purchase by a wallet with no local account")
	buyer := domain.MustAddress("0x4444444444444444444444444444444444444444")
	listed, saleTx := listAndSell(t, f, "PID-1", buyer, big.NewInt(100))

	testutil.When(t, "the sale is confirmed")
	_, err := f.svc.ConfirmSale(ctx, listed.PropertyID, saleTx)

	testutil.Then(t, "the confirmation is refused and the record stays listed")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	current, gerr := f.svc.Get(ctx, listed.PropertyID)
	require.NoError(t, gerr)
	assert.Equal(t, models.StatusListedForSale, current.Status)
}

func TestConfirmSaleRejectsMismatchedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	buyer := f.registerBuyer(t)
	first, _ := listAndSell(t, f, "PID-1", buyer, big.NewInt(100))
	_, secondTx := listAndSell(t, f, "PID-2", buyer, big.NewInt(200))

	// Confirming PID-1 with PID-2's sale transaction must fail.
	_, err := f.svc.ConfirmSale(ctx, first.PropertyID, secondTx)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestConfirmSaleRequiresListedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.prepareAndExecute(t, "PID-1")

	_, err := f.svc.ConfirmSale(ctx, record.PropertyID, "0x0000000000000000000000000000000000000000000000000000000000000001")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestConfirmSaleUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.registerBuyer(t)
	listed, _ := listAndSell(t, f, "PID-1", buyer, big.NewInt(100))

	_, err := f.svc.ConfirmSale(ctx, listed.PropertyID, "0x00000000000000000000000000000000000000000000000000000000000000ff")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainRejected))
}

func TestWithdrawEscrowPaysOutOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a seller with escrow from a confirmed sale")
	buyer := f.registerBuyer(t)
	price := big.NewInt(7_000)
	listed, saleTx := listAndSell(t, f, "PID-1", buyer, price)
	_, err := f.svc.ConfirmSale(ctx, listed.PropertyID, saleTx)
	require.NoError(t, err)

	testutil.When(t, "the seller withdraws")
	txHash, amount, err := f.svc.WithdrawEscrow(ctx, f.ownerWallet)

	testutil.Then(t, "the full balance pays out and a second withdrawal is refused")
	require.NoError(t, err)
	assert.False(t, txHash.IsZero())
	assert.Zero(t, price.Cmp(amount))
	assert.Len(t, f.auditLog.ByAction(audit.ActionEscrowWithdrawn), 1)

	_, _, err = f.svc.WithdrawEscrow(ctx, f.ownerWallet)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestVerifyLedgerFailureSurfacesConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a verify whose ledger update fails after the chain write")
	record := f.prepareAndExecute(t, "PID-1")
	f.properties.FailNextUpdate = errors.New("connection reset")

	testutil.When(t, "verify runs")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)

	testutil.Then(t, "a consistency failure carrying the chain tx is surfaced and audited")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConsistency))
	assert.True(t, f.gateway.AssetVerified(record.AssetID))

	failures := f.auditLog.ByAction(audit.ActionConsistencyFailure)
	require.Len(t, failures, 1)
	require.NotEmpty(t, failures[0].TxHash)
	assert.Contains(t, err.Error(), failures[0].TxHash)
}

func TestListForSaleLedgerFailureSurfacesConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a listing whose ledger update fails after the chain writes")
	record := f.prepareAndExecute(t, "PID-1")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)
	require.NoError(t, err)
	f.properties.FailNextUpdate = errors.New("connection reset")

	testutil.When(t, "the owner lists it")
	_, err = f.svc.ListForSale(ctx, record.PropertyID, f.ownerWallet, big.NewInt(1000))

	testutil.Then(t, "a consistency failure carrying the listing tx is surfaced and audited")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConsistency))

	failures := f.auditLog.ByAction(audit.ActionConsistencyFailure)
	require.Len(t, failures, 1)
	require.NotEmpty(t, failures[0].TxHash)
	assert.Contains(t, err.Error(), failures[0].TxHash)
}

func TestConcurrentTransitionSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a verify whose conditional ledger update loses a race")
	record := f.prepareAndExecute(t, "PID-1")
	f.properties.FailNextUpdate = sentinel.ErrStaleStatus

	testutil.When(t, "verify runs")
	_, err := f.svc.Verify(ctx, record.PropertyID, f.verifierID)

	testutil.Then(t, "the caller is told to reload and retry")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
