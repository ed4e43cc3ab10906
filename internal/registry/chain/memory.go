package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"landledger/pkg/domain"
)

type fakeAsset struct {
	owner    domain.Address
	property string
	verified bool
	approved bool
	price    *big.Int
}

// FakeGateway is an in-memory Gateway for tests. Operations can be scripted
// to fail with queued errors before succeeding, which exercises retry and
// consistency paths without a node.
type FakeGateway struct {
	mu sync.Mutex

	nextAssetID uint64
	txCounter   uint64
	assets      map[domain.AssetID]*fakeAsset
	escrow      map[domain.Address]*big.Int
	mintEvents  map[domain.Hash]*MintResult
	saleEvents  map[domain.Hash]*SaleEvent
	failures    map[string][]error

	// MintedProperties records every property id minted, in order.
	MintedProperties []string
}

// NewFakeGateway builds an empty fake chain.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		assets:     make(map[domain.AssetID]*fakeAsset),
		escrow:     make(map[domain.Address]*big.Int),
		mintEvents: make(map[domain.Hash]*MintResult),
		saleEvents: make(map[domain.Hash]*SaleEvent),
		failures:   make(map[string][]error),
	}
}

// FailNext queues errors that the named operation returns, one per call, before
// succeeding again. Transient errors queued here exercise the retry path.
func (g *FakeGateway) FailNext(op string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], errs...)
}

func (g *FakeGateway) popFailure(op string) error {
	queue := g.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.failures[op] = queue[1:]
	return err
}

func (g *FakeGateway) newTxHash() domain.Hash {
	g.txCounter++
	h := crypto.Keccak256([]byte(fmt.Sprintf("fake-tx-%d", g.txCounter)))
	return domain.HashFromBytes(h)
}

func (g *FakeGateway) EncodeMintCall(req MintRequest) ([]byte, error) {
	if req.Owner.IsZero() {
		return nil, newError(ClassEncoding, "mintAsset", "owner address is zero", nil)
	}
	return crypto.Keccak256([]byte("mintTitle"), []byte(req.PropertyID), req.Owner.Bytes()), nil
}

func (g *FakeGateway) MintAsset(ctx context.Context, req MintRequest) (*MintResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("mintAsset"); err != nil {
		if cerr := classify("mintAsset", err); !cerr.Retryable() {
			return nil, cerr
		}
		// Queued transient failures consume one retry attempt each; the
		// caller's retrier re-invokes us until the queue drains.
		return nil, classify("mintAsset", err)
	}

	g.nextAssetID++
	assetID := domain.AssetID(g.nextAssetID)
	g.assets[assetID] = &fakeAsset{owner: req.Owner, property: req.PropertyID}
	g.MintedProperties = append(g.MintedProperties, req.PropertyID)

	result := &MintResult{
		TxHash:     g.newTxHash(),
		AssetID:    assetID,
		Owner:      req.Owner,
		PropertyID: req.PropertyID,
	}
	g.mintEvents[result.TxHash] = result
	return result, nil
}

func (g *FakeGateway) MintEventByTx(ctx context.Context, txHash domain.Hash) (*MintResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("mintEventByTx"); err != nil {
		return nil, classify("mintEventByTx", err)
	}
	result, ok := g.mintEvents[txHash]
	if !ok {
		return nil, newError(ClassRejected, "mintEventByTx", "transaction not found", nil)
	}
	return result, nil
}

func (g *FakeGateway) SetVerified(ctx context.Context, assetID domain.AssetID) (*TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("setVerified"); err != nil {
		return nil, classify("setVerified", err)
	}
	asset, ok := g.assets[assetID]
	if !ok {
		return nil, newError(ClassRejected, "setVerified", "unknown token", nil)
	}
	asset.verified = true
	return &TxResult{TxHash: g.newTxHash()}, nil
}

func (g *FakeGateway) ApproveForSale(ctx context.Context, assetID domain.AssetID) (*TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("approveForSale"); err != nil {
		return nil, classify("approveForSale", err)
	}
	asset, ok := g.assets[assetID]
	if !ok {
		return nil, newError(ClassRejected, "approveForSale", "unknown token", nil)
	}
	asset.approved = true
	return &TxResult{TxHash: g.newTxHash()}, nil
}

func (g *FakeGateway) ListForSale(ctx context.Context, assetID domain.AssetID, price *big.Int) (*TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("listForSale"); err != nil {
		return nil, classify("listForSale", err)
	}
	asset, ok := g.assets[assetID]
	if !ok {
		return nil, newError(ClassRejected, "listForSale", "unknown token", nil)
	}
	if !asset.approved {
		return nil, newError(ClassRejected, "listForSale", "marketplace not approved for token", nil)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, newError(ClassEncoding, "listForSale", "price must be positive", nil)
	}
	asset.price = new(big.Int).Set(price)
	return &TxResult{TxHash: g.newTxHash()}, nil
}

func (g *FakeGateway) SaleEventByTx(ctx context.Context, txHash domain.Hash) (*SaleEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("saleEventByTx"); err != nil {
		return nil, classify("saleEventByTx", err)
	}
	event, ok := g.saleEvents[txHash]
	if !ok {
		return nil, newError(ClassRejected, "saleEventByTx", "transaction not found", nil)
	}
	return event, nil
}

func (g *FakeGateway) EscrowBalance(ctx context.Context, seller domain.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("escrowBalance"); err != nil {
		return nil, classify("escrowBalance", err)
	}
	balance, ok := g.escrow[seller]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (g *FakeGateway) WithdrawEscrow(ctx context.Context, seller domain.Address) (*TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.popFailure("withdrawEscrow"); err != nil {
		return nil, classify("withdrawEscrow", err)
	}
	balance, ok := g.escrow[seller]
	if !ok || balance.Sign() == 0 {
		return nil, newError(ClassRejected, "withdrawEscrow", "no funds to withdraw", nil)
	}
	g.escrow[seller] = big.NewInt(0)
	return &TxResult{TxHash: g.newTxHash()}, nil
}

// SimulatePurchase plays the buyer's side of a sale: transfers ownership,
// credits the seller's escrow, and records a PropertySold event whose tx hash
// the service later confirms against.
func (g *FakeGateway) SimulatePurchase(assetID domain.AssetID, buyer domain.Address) (domain.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	asset, ok := g.assets[assetID]
	if !ok {
		return "", fmt.Errorf("unknown asset %d", assetID)
	}
	if asset.price == nil || asset.price.Sign() <= 0 {
		return "", fmt.Errorf("asset %d is not listed", assetID)
	}

	seller := asset.owner
	price := asset.price
	asset.owner = buyer
	asset.price = nil
	asset.approved = false

	if g.escrow[seller] == nil {
		g.escrow[seller] = big.NewInt(0)
	}
	g.escrow[seller].Add(g.escrow[seller], price)

	txHash := g.newTxHash()
	g.saleEvents[txHash] = &SaleEvent{
		AssetID:     assetID,
		Buyer:       buyer,
		Seller:      seller,
		Price:       new(big.Int).Set(price),
		TxHash:      txHash,
		BlockNumber: g.txCounter,
	}
	return txHash, nil
}

// AssetOwner reports the current on-chain owner, for test assertions.
func (g *FakeGateway) AssetOwner(assetID domain.AssetID) (domain.Address, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	asset, ok := g.assets[assetID]
	if !ok {
		return "", false
	}
	return asset.owner, true
}

// AssetVerified reports the on-chain verified flag, for test assertions.
func (g *FakeGateway) AssetVerified(assetID domain.AssetID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	asset, ok := g.assets[assetID]
	return ok && asset.verified
}

// Credit seeds a seller's escrow balance directly.
func (g *FakeGateway) Credit(seller domain.Address, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.escrow[seller] == nil {
		g.escrow[seller] = big.NewInt(0)
	}
	g.escrow[seller].Add(g.escrow[seller], amount)
}

var _ Gateway = (*FakeGateway)(nil)
