package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"landledger/pkg/domain"
)

// Minimal ABIs for the two contracts; only the members this service touches.
const registryABIJSON = `[
	{"type":"function","name":"mintTitle","stateMutability":"nonpayable","inputs":[
		{"name":"owner","type":"address"},
		{"name":"propertyId","type":"string"},
		{"name":"surveyNumber","type":"string"},
		{"name":"propertyAddress","type":"string"},
		{"name":"area","type":"string"},
		{"name":"ownerName","type":"string"},
		{"name":"description","type":"string"},
		{"name":"documentHashes","type":"string[]"}],
	 "outputs":[{"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"setVerified","stateMutability":"nonpayable","inputs":[
		{"name":"tokenId","type":"uint256"},{"name":"verified","type":"bool"}],"outputs":[]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"TitleMinted","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"propertyId","type":"string","indexed":false}]}
]`

const marketplaceABIJSON = `[
	{"type":"function","name":"listProperty","stateMutability":"nonpayable","inputs":[
		{"name":"tokenId","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"pendingWithdrawals","stateMutability":"view","inputs":[
		{"name":"seller","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"withdrawFor","stateMutability":"nonpayable","inputs":[
		{"name":"seller","type":"address"}],"outputs":[]},
	{"type":"event","name":"PropertySold","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"buyer","type":"address","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]}
]`

// EthereumGateway implements Gateway against a JSON-RPC node. All writes are
// signed with the single service key; the chain's per-account nonce
// sequencing is the only write serialization.
type EthereumGateway struct {
	client         *ethclient.Client
	key            *ecdsa.PrivateKey
	from           common.Address
	signer         types.Signer
	registry       common.Address
	marketplace    common.Address
	registryABI    abi.ABI
	marketplaceABI abi.ABI
	retrier        *Retrier
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// EthereumConfig configures the gateway.
type EthereumConfig struct {
	RPCURL             string
	ChainID            int64
	RegistryAddress    string
	MarketplaceAddress string
	SigningKeyHex      string
	ConfirmTimeout     time.Duration
	MaxAttempts        int
	Logger             *slog.Logger
}

// NewEthereum dials the node and prepares the signing identity.
func NewEthereum(cfg EthereumConfig) (*EthereumGateway, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain node: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SigningKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse service signing key: %w", err)
	}
	registryABI, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	marketplaceABI, err := abi.JSON(strings.NewReader(marketplaceABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}

	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	retrier := NewRetrier(cfg.MaxAttempts, DefaultBaseDelay)
	retrier.Logger = cfg.Logger

	return &EthereumGateway{
		client:         client,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		signer:         types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		registry:       common.HexToAddress(cfg.RegistryAddress),
		marketplace:    common.HexToAddress(cfg.MarketplaceAddress),
		registryABI:    registryABI,
		marketplaceABI: marketplaceABI,
		retrier:        retrier,
		confirmTimeout: confirmTimeout,
		logger:         cfg.Logger,
	}, nil
}

// OnRetry registers a callback fired before each retry, used for metrics.
func (g *EthereumGateway) OnRetry(fn func(op string)) {
	g.retrier.OnRetry = fn
}

// EncodeMintCall packs the mint call data for out-of-band inspection by the
// signing party.
func (g *EthereumGateway) EncodeMintCall(req MintRequest) ([]byte, error) {
	data, err := g.registryABI.Pack("mintTitle",
		common.BytesToAddress(req.Owner.Bytes()),
		req.PropertyID,
		req.SurveyNumber,
		req.PropertyAddress,
		req.Area,
		req.OwnerName,
		req.Description,
		req.DocumentHashes,
	)
	if err != nil {
		return nil, newError(ClassEncoding, "mintAsset", "encode mint call", err)
	}
	return data, nil
}

// MintAsset submits the mint and parses the TitleMinted event from the
// confirmed receipt.
func (g *EthereumGateway) MintAsset(ctx context.Context, req MintRequest) (*MintResult, error) {
	data, err := g.EncodeMintCall(req)
	if err != nil {
		return nil, err
	}
	receipt, txHash, err := g.transact(ctx, "mintAsset", g.registry, data)
	if err != nil {
		return nil, err
	}
	result, err := g.parseMintEvent("mintAsset", receipt)
	if err != nil {
		return nil, err
	}
	result.TxHash = txHash
	return result, nil
}

// MintEventByTx re-reads the TitleMinted event from an existing transaction.
func (g *EthereumGateway) MintEventByTx(ctx context.Context, txHash domain.Hash) (*MintResult, error) {
	const op = "mintEventByTx"
	receipt, err := g.client.TransactionReceipt(ctx, common.HexToHash(txHash.String()))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, newError(ClassRejected, op, "transaction not found", err)
		}
		return nil, classify(op, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &Error{Class: ClassRejected, Op: op, Reason: "transaction reverted", TxHash: txHash}
	}
	result, err := g.parseMintEvent(op, receipt)
	if err != nil {
		return nil, err
	}
	result.TxHash = txHash
	return result, nil
}

// SetVerified flips the on-chain verified flag.
func (g *EthereumGateway) SetVerified(ctx context.Context, assetID domain.AssetID) (*TxResult, error) {
	const op = "setVerified"
	data, err := g.registryABI.Pack("setVerified", new(big.Int).SetUint64(uint64(assetID)), true)
	if err != nil {
		return nil, newError(ClassEncoding, op, "encode setVerified call", err)
	}
	_, txHash, err := g.transact(ctx, op, g.registry, data)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: txHash}, nil
}

// ApproveForSale authorizes the marketplace contract to move the asset.
func (g *EthereumGateway) ApproveForSale(ctx context.Context, assetID domain.AssetID) (*TxResult, error) {
	const op = "approveForSale"
	data, err := g.registryABI.Pack("approve", g.marketplace, new(big.Int).SetUint64(uint64(assetID)))
	if err != nil {
		return nil, newError(ClassEncoding, op, "encode approve call", err)
	}
	_, txHash, err := g.transact(ctx, op, g.registry, data)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: txHash}, nil
}

// ListForSale lists the asset at the given wei price.
func (g *EthereumGateway) ListForSale(ctx context.Context, assetID domain.AssetID, price *big.Int) (*TxResult, error) {
	const op = "listForSale"
	if price == nil || price.Sign() <= 0 {
		return nil, newError(ClassEncoding, op, "price must be positive", nil)
	}
	data, err := g.marketplaceABI.Pack("listProperty", new(big.Int).SetUint64(uint64(assetID)), price)
	if err != nil {
		return nil, newError(ClassEncoding, op, "encode listProperty call", err)
	}
	_, txHash, err := g.transact(ctx, op, g.marketplace, data)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: txHash}, nil
}

// SaleEventByTx reads the PropertySold event from the buyer's purchase
// transaction.
func (g *EthereumGateway) SaleEventByTx(ctx context.Context, txHash domain.Hash) (*SaleEvent, error) {
	const op = "saleEventByTx"
	receipt, err := g.client.TransactionReceipt(ctx, common.HexToHash(txHash.String()))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, newError(ClassRejected, op, "transaction not found", err)
		}
		return nil, classify(op, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &Error{Class: ClassRejected, Op: op, Reason: "transaction reverted", TxHash: txHash}
	}

	soldEvent := g.marketplaceABI.Events["PropertySold"]
	for _, lg := range receipt.Logs {
		if lg.Address != g.marketplace || len(lg.Topics) != 4 || lg.Topics[0] != soldEvent.ID {
			continue
		}
		vals, err := soldEvent.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) != 1 {
			return nil, newError(ClassRejected, op, "malformed PropertySold event data", err)
		}
		price, ok := vals[0].(*big.Int)
		if !ok {
			return nil, newError(ClassRejected, op, "malformed PropertySold price", nil)
		}
		buyer, err := domain.ParseAddress(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
		if err != nil {
			return nil, newError(ClassRejected, op, "malformed buyer address", err)
		}
		seller, err := domain.ParseAddress(common.BytesToAddress(lg.Topics[3].Bytes()).Hex())
		if err != nil {
			return nil, newError(ClassRejected, op, "malformed seller address", err)
		}
		return &SaleEvent{
			AssetID:     domain.AssetID(new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()),
			Buyer:       buyer,
			Seller:      seller,
			Price:       price,
			TxHash:      txHash,
			BlockNumber: receipt.BlockNumber.Uint64(),
		}, nil
	}
	return nil, newError(ClassRejected, op, "PropertySold event missing from receipt", nil)
}

// EscrowBalance reads the pending escrow balance for a seller.
func (g *EthereumGateway) EscrowBalance(ctx context.Context, seller domain.Address) (*big.Int, error) {
	const op = "escrowBalance"
	data, err := g.marketplaceABI.Pack("pendingWithdrawals", common.BytesToAddress(seller.Bytes()))
	if err != nil {
		return nil, newError(ClassEncoding, op, "encode pendingWithdrawals call", err)
	}
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.marketplace, Data: data}, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	vals, err := g.marketplaceABI.Unpack("pendingWithdrawals", out)
	if err != nil || len(vals) != 1 {
		return nil, newError(ClassRejected, op, "malformed pendingWithdrawals result", err)
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, newError(ClassRejected, op, "malformed pendingWithdrawals result", nil)
	}
	return balance, nil
}

// WithdrawEscrow pays out the escrow balance held for the seller.
func (g *EthereumGateway) WithdrawEscrow(ctx context.Context, seller domain.Address) (*TxResult, error) {
	const op = "withdrawEscrow"
	data, err := g.marketplaceABI.Pack("withdrawFor", common.BytesToAddress(seller.Bytes()))
	if err != nil {
		return nil, newError(ClassEncoding, op, "encode withdrawFor call", err)
	}
	_, txHash, err := g.transact(ctx, op, g.marketplace, data)
	if err != nil {
		return nil, err
	}
	return &TxResult{TxHash: txHash}, nil
}

// transact submits a write and waits for its confirmation. Submission
// (nonce/gas/estimate/send) is retried per the retry policy; the
// confirmation wait is not, because the transaction may still land. A wait
// deadline surfaces as ClassPending with the tx hash for resumption.
func (g *EthereumGateway) transact(ctx context.Context, op string, to common.Address, data []byte) (*types.Receipt, domain.Hash, error) {
	var signed *types.Transaction

	submit := func(ctx context.Context) error {
		nonce, err := g.client.PendingNonceAt(ctx, g.from)
		if err != nil {
			return err
		}
		gasPrice, err := g.client.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{From: g.from, To: &to, Data: data})
		if err != nil {
			// Reverts surface here with the reason before anything is sent.
			return err
		}
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit + gasLimit/5,
			To:       &to,
			Data:     data,
		})
		stx, err := types.SignTx(tx, g.signer, g.key)
		if err != nil {
			return newError(ClassEncoding, op, "sign transaction", err)
		}
		if err := g.client.SendTransaction(ctx, stx); err != nil {
			return err
		}
		signed = stx
		return nil
	}

	if err := g.retrier.Do(ctx, op, submit); err != nil {
		return nil, "", err
	}

	txHash := domain.Hash(signed.Hash().Hex())
	receipt, err := g.waitMined(ctx, op, signed.Hash(), txHash)
	if err != nil {
		return nil, txHash, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, txHash, &Error{Class: ClassRejected, Op: op, Reason: "transaction reverted", TxHash: txHash}
	}
	return receipt, txHash, nil
}

// waitMined polls for the receipt under the confirmation timeout. A caller
// cancelling the wait abandons only the waiting, never the submission.
func (g *EthereumGateway) waitMined(ctx context.Context, op string, hash common.Hash, txHash domain.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, classify(op, err)
		}
		select {
		case <-waitCtx.Done():
			return nil, &Error{
				Class:  ClassPending,
				Op:     op,
				Reason: "confirmation not observed before deadline; resume by transaction hash",
				TxHash: txHash,
			}
		case <-ticker.C:
		}
	}
}

// parseMintEvent extracts the TitleMinted event; a confirmed receipt without
// it means a contract/ABI mismatch and is rejected.
func (g *EthereumGateway) parseMintEvent(op string, receipt *types.Receipt) (*MintResult, error) {
	mintEvent := g.registryABI.Events["TitleMinted"]
	for _, lg := range receipt.Logs {
		if lg.Address != g.registry || len(lg.Topics) != 3 || lg.Topics[0] != mintEvent.ID {
			continue
		}
		vals, err := mintEvent.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) != 1 {
			return nil, newError(ClassRejected, op, "malformed TitleMinted event data", err)
		}
		propertyID, ok := vals[0].(string)
		if !ok {
			return nil, newError(ClassRejected, op, "malformed TitleMinted property id", nil)
		}
		owner, err := domain.ParseAddress(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
		if err != nil {
			return nil, newError(ClassRejected, op, "malformed TitleMinted owner", err)
		}
		return &MintResult{
			AssetID:    domain.AssetID(new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()),
			Owner:      owner,
			PropertyID: propertyID,
		}, nil
	}
	return nil, newError(ClassRejected, op, "TitleMinted event missing from receipt", nil)
}
