package service

import (
	"context"
	"errors"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	"landledger/internal/registry/models"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

func (s *Service) loadProperty(ctx context.Context, propertyID string) (*models.PropertyRecord, error) {
	record, err := s.properties.GetByPropertyID(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return record, nil
}

// settleAfterChain applies a ledger update that follows a confirmed chain
// write. A stale status or missing record is an ordinary conflict; any other
// failure means the chain advanced without the ledger, which surfaces as a
// consistency failure carrying the chain transaction hash.
func (s *Service) settleAfterChain(ctx context.Context, record *models.PropertyRecord, expected models.Status, txHash domain.Hash) error {
	err := s.properties.UpdateIfStatus(ctx, record, expected)
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrStaleStatus) {
		return dErrors.New(dErrors.CodeConflict, "property status changed concurrently, reload and retry")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	s.logger.ErrorContext(ctx, "ledger update failed after confirmed chain write",
		"property_id", record.PropertyID,
		"tx_hash", txHash.String(),
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.ConsistencyFailures.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     audit.ActionConsistencyFailure,
		PropertyID: record.PropertyID,
		AssetID:    record.AssetID.String(),
		TxHash:     txHash.String(),
		Reason:     err.Error(),
	})
	return dErrors.Wrap(err, dErrors.CodeConsistency,
		"chain transaction "+txHash.String()+" confirmed but the ledger update failed; retry to reconcile")
}

// Get returns one property record.
func (s *Service) Get(ctx context.Context, propertyID string) (*models.PropertyRecord, error) {
	return s.loadProperty(ctx, propertyID)
}

// Verify marks a pending title as verified, on chain first, then in the
// ledger.
func (s *Service) Verify(ctx context.Context, propertyID string, verifier domain.AccountID) (*models.PropertyRecord, error) {
	ctx, span := s.startSpan(ctx, "registry.Verify",
		attribute.String("property_id", propertyID))
	defer span.End()

	record, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := record.CanVerify(); err != nil {
		return nil, err
	}

	result, err := s.gateway.SetVerified(ctx, record.AssetID)
	if err != nil {
		return nil, chainToDomain(err)
	}

	record.ApplyVerification(requestcontext.Now(ctx))
	if err := s.settleAfterChain(ctx, record, models.StatusPending, result.TxHash); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:     audit.ActionPropertyVerified,
		PropertyID: record.PropertyID,
		AssetID:    record.AssetID.String(),
		Actor:      verifier.String(),
		TxHash:     result.TxHash.String(),
	})
	s.logger.InfoContext(ctx, "property verified",
		"property_id", record.PropertyID, "tx_hash", result.TxHash.String())
	return record, nil
}

// ListForSale puts a verified title on the marketplace. Only the current
// owner may list, and the marketplace must first be approved to move the
// asset.
func (s *Service) ListForSale(ctx context.Context, propertyID string, seller domain.Address, price *big.Int) (*models.PropertyRecord, error) {
	ctx, span := s.startSpan(ctx, "registry.ListForSale",
		attribute.String("property_id", propertyID))
	defer span.End()

	if price == nil || price.Sign() <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "sale price must be a positive amount in wei")
	}

	record, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !record.OwnerWallet.Equal(seller) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the current owner can list this property")
	}
	if err := record.CanList(); err != nil {
		return nil, err
	}

	if _, err := s.gateway.ApproveForSale(ctx, record.AssetID); err != nil {
		return nil, chainToDomain(err)
	}
	result, err := s.gateway.ListForSale(ctx, record.AssetID, price)
	if err != nil {
		return nil, chainToDomain(err)
	}

	record.ApplyListing(price, requestcontext.Now(ctx))
	if err := s.settleAfterChain(ctx, record, models.StatusVerified, result.TxHash); err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:     audit.ActionPropertyListed,
		PropertyID: record.PropertyID,
		AssetID:    record.AssetID.String(),
		Wallet:     seller.String(),
		TxHash:     result.TxHash.String(),
		Reason:     price.String(),
	})
	s.logger.InfoContext(ctx, "property listed for sale",
		"property_id", record.PropertyID, "price_wei", price.String())
	return record, nil
}

// ConfirmSale settles a completed marketplace purchase into the ledger. The
// buyer purchased on chain directly; this reads the sale event from their
// transaction, resolves the buyer's account, and transfers local ownership.
func (s *Service) ConfirmSale(ctx context.Context, propertyID string, saleTxHash domain.Hash) (*models.PropertyRecord, error) {
	ctx, span := s.startSpan(ctx, "registry.ConfirmSale",
		attribute.String("property_id", propertyID))
	defer span.End()

	record, err := s.loadProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := record.CanConfirmSale(); err != nil {
		return nil, err
	}

	event, err := s.gateway.SaleEventByTx(ctx, saleTxHash)
	if err != nil {
		return nil, chainToDomain(err)
	}
	if event.AssetID != record.AssetID {
		return nil, dErrors.New(dErrors.CodeConflict, "transaction sold a different asset")
	}
	if !event.Seller.Equal(record.OwnerWallet) {
		return nil, dErrors.New(dErrors.CodeConflict, "sale event seller does not match the recorded owner")
	}

	buyer, err := s.accounts.ResolveByWallet(ctx, event.Buyer)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict,
				"buyer wallet "+event.Buyer.String()+" has no registered account")
		}
		return nil, err
	}

	record.ApplySale(event.Buyer, buyer.ID, saleTxHash, event.Price, requestcontext.Now(ctx))
	if err := s.settleAfterChain(ctx, record, models.StatusListedForSale, saleTxHash); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SalesConfirmed.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     audit.ActionSaleConfirmed,
		PropertyID: record.PropertyID,
		AssetID:    record.AssetID.String(),
		Actor:      buyer.ID.String(),
		Wallet:     event.Buyer.String(),
		TxHash:     saleTxHash.String(),
		Reason:     event.Price.String(),
	})
	s.logger.InfoContext(ctx, "sale confirmed",
		"property_id", record.PropertyID,
		"buyer", event.Buyer.String(),
		"price_wei", event.Price.String(),
	)
	return record, nil
}

// EscrowBalance reads the seller's pending escrow balance from the
// marketplace contract.
func (s *Service) EscrowBalance(ctx context.Context, seller domain.Address) (*big.Int, error) {
	balance, err := s.gateway.EscrowBalance(ctx, seller)
	if err != nil {
		return nil, chainToDomain(err)
	}
	return balance, nil
}

// WithdrawEscrow pays out a seller's escrow balance.
func (s *Service) WithdrawEscrow(ctx context.Context, seller domain.Address) (domain.Hash, *big.Int, error) {
	ctx, span := s.startSpan(ctx, "registry.WithdrawEscrow",
		attribute.String("wallet", seller.String()))
	defer span.End()

	balance, err := s.gateway.EscrowBalance(ctx, seller)
	if err != nil {
		return "", nil, chainToDomain(err)
	}
	if balance.Sign() == 0 {
		return "", nil, dErrors.New(dErrors.CodeConflict, "no escrow balance to withdraw")
	}

	result, err := s.gateway.WithdrawEscrow(ctx, seller)
	if err != nil {
		return "", nil, chainToDomain(err)
	}

	if s.metrics != nil {
		s.metrics.EscrowWithdrawals.Inc()
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionEscrowWithdrawn,
		Wallet: seller.String(),
		TxHash: result.TxHash.String(),
		Reason: balance.String(),
	})
	s.logger.InfoContext(ctx, "escrow withdrawn",
		"wallet", seller.String(), "amount_wei", balance.String())
	return result.TxHash, balance, nil
}
