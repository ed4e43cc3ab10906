package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	accountmodels "landledger/internal/accounts/models"
	accountsvc "landledger/internal/accounts/service"
	accountstore "landledger/internal/accounts/store"
	"landledger/internal/registry/chain"
	"landledger/internal/registry/docstore"
	"landledger/internal/registry/models"
	"landledger/internal/registry/store/prepared"
	"landledger/internal/registry/store/property"
	"landledger/pkg/domain"
	auditmemory "landledger/pkg/platform/audit/store/memory"
	"landledger/pkg/platform/audit/publisher"
)

// fixture wires a Service against in-memory collaborators plus a real
// secp256k1 owner key, so consent signatures in tests are genuine.
type fixture struct {
	svc        *Service
	gateway    *chain.FakeGateway
	properties *property.InMemoryStore
	prepared   *prepared.InMemoryStore
	pinner     *docstore.InMemoryPinner
	accounts   *accountsvc.Service
	auditLog   *auditmemory.InMemoryStore

	ownerKey    *ecdsa.PrivateKey
	ownerWallet domain.Address
	verifierID  domain.AccountID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet, err := domain.ParseAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
	require.NoError(t, err)

	f := &fixture{
		gateway:     chain.NewFakeGateway(),
		properties:  property.NewInMemoryStore(),
		prepared:    prepared.NewInMemoryStore(),
		pinner:      docstore.NewInMemoryPinner(),
		accounts:    accountsvc.New(accountstore.NewInMemoryStore()),
		auditLog:    auditmemory.NewInMemoryStore(),
		ownerKey:    key,
		ownerWallet: wallet,
		verifierID:  domain.NewAccountID(),
	}
	f.svc = New(
		f.properties,
		f.prepared,
		f.gateway,
		f.pinner,
		f.accounts,
		WithAuditPublisher(publisher.NewPublisher(f.auditLog)),
	)
	return f
}

// sign produces the owner's personal-sign consent signature over a payload
// hash, exactly as a wallet would.
func (f *fixture) sign(t *testing.T, payloadHash domain.Hash) string {
	t.Helper()
	return signWith(t, f.ownerKey, payloadHash)
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, payloadHash domain.Hash) string {
	t.Helper()
	digest := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), payloadHash.Bytes())
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return "0x" + hex.EncodeToString(sig)
}

func (f *fixture) fields(propertyID string) models.RegistrationFields {
	return models.RegistrationFields{
		PropertyID:      propertyID,
		SurveyNumber:    "SN-1024",
		PropertyAddress: "12 Harbor Lane, Kochi",
		Area:            "120.50",
		OwnerName:       "Asha Rao",
		OwnerWallet:     f.ownerWallet.String(),
		Description:     "residential plot",
	}
}

func (f *fixture) documents() []Document {
	return []Document{
		{Name: "mother-deed.pdf", Content: []byte("%PDF-1.4 mother deed")},
		{Name: "encumbrance.pdf", Content: []byte("%PDF-1.4 encumbrance certificate")},
	}
}

// prepareAndExecute runs the full two-phase registration for propertyID.
func (f *fixture) prepareAndExecute(t *testing.T, propertyID string) *models.PropertyRecord {
	t.Helper()
	ctx := context.Background()

	prep, err := f.svc.Prepare(ctx, PrepareInput{
		Fields:     f.fields(propertyID),
		Documents:  f.documents(),
		PreparedBy: f.verifierID,
	})
	require.NoError(t, err)

	record, err := f.svc.Execute(ctx, ExecuteInput{
		PayloadHash:    prep.PayloadHash,
		Fields:         f.fields(propertyID),
		DocumentHashes: prep.DocumentHashes,
		Signature:      f.sign(t, prep.PayloadHash),
		ExecutedBy:     f.verifierID,
	})
	require.NoError(t, err)
	return record
}

func (f *fixture) registerBuyer(t *testing.T) domain.Address {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet, err := domain.ParseAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
	require.NoError(t, err)

	_, err = f.accounts.Register(context.Background(), accountmodels.NewAccountParams{
		Name:          "Binod Kumar",
		Email:         "binod@example.org",
		WalletAddress: wallet.String(),
		Role:          "citizen",
	})
	require.NoError(t, err)
	return wallet
}
