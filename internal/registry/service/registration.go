package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"landledger/internal/registry/canonical"
	"landledger/internal/registry/chain"
	"landledger/internal/registry/metrics"
	"landledger/internal/registry/models"
	"landledger/internal/registry/signature"
	"landledger/internal/registry/store/prepared"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// Document is one uploaded title document.
type Document struct {
	Name    string
	Content []byte
}

// PrepareInput is the verifying authority's half of a registration.
type PrepareInput struct {
	Fields     models.RegistrationFields
	Documents  []Document
	PreparedBy domain.AccountID
}

// PrepareResult is returned for out-of-band signing. The owner's wallet signs
// PayloadHash; nothing has touched the chain yet.
type PrepareResult struct {
	PayloadHash    domain.Hash `json:"payload_hash"`
	DocumentHashes []string    `json:"document_hashes"`
	CallData       []byte      `json:"call_data"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// Prepare validates the registration, pins the documents, and derives the
// canonical payload hash the owner must sign. The prepared state is held
// server side under a TTL; an expired hash forces a fresh Prepare.
func (s *Service) Prepare(ctx context.Context, input PrepareInput) (*PrepareResult, error) {
	ctx, span := s.startSpan(ctx, "registry.Prepare",
		attribute.String("property_id", input.Fields.PropertyID))
	defer span.End()

	input.Fields.Normalize()
	if err := input.Fields.Validate(); err != nil {
		return nil, err
	}
	if len(input.Documents) != models.RequiredDocumentCount {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("exactly %d title documents are required", models.RequiredDocumentCount))
	}
	for _, doc := range input.Documents {
		if len(doc.Content) == 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "document "+doc.Name+" is empty")
		}
	}

	exists, err := s.properties.ExistsByPropertyID(ctx, input.Fields.PropertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check property id")
	}
	if exists {
		return nil, dErrors.New(dErrors.CodeConflict, "property id is already registered")
	}

	documentHashes, err := s.pinDocuments(ctx, input.Documents)
	if err != nil {
		return nil, err
	}

	payloadHash, err := canonical.Digest(input.Fields, documentHashes)
	if err != nil {
		return nil, err
	}

	callData, err := s.gateway.EncodeMintCall(mintRequest(input.Fields, documentHashes))
	if err != nil {
		return nil, chainToDomain(err)
	}

	reg := prepared.Registration{
		PayloadHash:    payloadHash,
		Fields:         input.Fields,
		DocumentHashes: documentHashes,
		CallData:       callData,
		PreparedBy:     input.PreparedBy,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := s.prepared.Save(ctx, reg, s.preparedTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save prepared registration")
	}

	if s.metrics != nil {
		s.metrics.RegistrationsPrepared.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     audit.ActionRegistrationPrepared,
		PropertyID: input.Fields.PropertyID,
		Actor:      input.PreparedBy.String(),
		Wallet:     input.Fields.OwnerWallet,
	})
	s.logger.InfoContext(ctx, "registration prepared",
		"property_id", input.Fields.PropertyID,
		"payload_hash", payloadHash.String(),
	)

	return &PrepareResult{
		PayloadHash:    payloadHash,
		DocumentHashes: documentHashes,
		CallData:       callData,
		ExpiresAt:      reg.CreatedAt.Add(s.preparedTTL),
	}, nil
}

// pinDocuments pins all documents concurrently, preserving submission order
// in the returned hashes. Any pin failure aborts the whole prepare: a partial
// document set must never reach the canonical payload.
func (s *Service) pinDocuments(ctx context.Context, docs []Document) ([]string, error) {
	hashes := make([]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			hash, err := s.pinner.PinFile(gctx, doc.Name, doc.Content)
			if err != nil {
				return fmt.Errorf("pin document %s: %w", doc.Name, err)
			}
			hashes[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store title documents")
	}
	return hashes, nil
}

// ExecuteInput is the signed half of a registration. Fields and document
// hashes are resubmitted so the canonical payload can be recomputed and
// compared against what was signed.
type ExecuteInput struct {
	PayloadHash    domain.Hash
	Fields         models.RegistrationFields
	DocumentHashes []string
	Signature      string
	ExecutedBy     domain.AccountID
}

// Execute verifies the owner's consent signature, rechecks payload integrity,
// mints the title and records it in the ledger. Nothing reaches the chain
// unless both checks pass.
func (s *Service) Execute(ctx context.Context, input ExecuteInput) (*models.PropertyRecord, error) {
	ctx, span := s.startSpan(ctx, "registry.Execute",
		attribute.String("property_id", input.Fields.PropertyID))
	defer span.End()

	input.Fields.Normalize()
	if err := input.Fields.Validate(); err != nil {
		return nil, err
	}

	reg, err := s.prepared.Get(ctx, input.PayloadHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no prepared registration for this payload hash; it may have expired")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prepared registration")
	}

	// Integrity: the resubmitted fields and document hashes must reproduce
	// the exact hash the owner signed.
	recomputed, err := canonical.Digest(input.Fields, input.DocumentHashes)
	if err != nil {
		return nil, err
	}
	if !recomputed.Equal(input.PayloadHash) {
		s.logger.WarnContext(ctx, "payload integrity check failed",
			"property_id", input.Fields.PropertyID,
			"signed_hash", input.PayloadHash.String(),
			"recomputed_hash", recomputed.String(),
		)
		if s.metrics != nil {
			s.metrics.RegistrationFailures.WithLabelValues(metrics.ReasonIntegrity).Inc()
		}
		s.emit(ctx, audit.Event{
			Action:     audit.ActionIntegrityRejected,
			PropertyID: input.Fields.PropertyID,
			Reason:     "recomputed payload hash does not match the signed hash",
		})
		return nil, dErrors.New(dErrors.CodeIntegrity, "registration data changed after signing; prepare again")
	}

	owner := input.Fields.WalletAddress()
	if !signature.Verify(input.PayloadHash, input.Signature, owner) {
		if s.metrics != nil {
			s.metrics.RegistrationFailures.WithLabelValues(metrics.ReasonSignature).Inc()
		}
		s.emit(ctx, audit.Event{
			Action:     audit.ActionSignatureRejected,
			PropertyID: input.Fields.PropertyID,
			Wallet:     owner.String(),
		})
		return nil, dErrors.New(dErrors.CodeSignature, "consent signature was not produced by the owner wallet")
	}

	mintStart := time.Now()
	result, err := s.gateway.MintAsset(ctx, mintRequest(reg.Fields, reg.DocumentHashes))
	if err != nil {
		s.countChainFailure(err)
		return nil, chainToDomain(err)
	}
	if s.metrics != nil {
		s.metrics.MintDuration.Observe(time.Since(mintStart).Seconds())
	}

	now := requestcontext.Now(ctx)
	record := recordFromMint(reg, result, input, s.resolveOwnerRef(ctx, owner), now)
	if err := s.properties.Create(ctx, record); err != nil {
		// The mint is confirmed; only the ledger write failed. Surface a
		// consistency failure carrying the tx hash so the mint can be
		// replayed into the ledger.
		s.logger.ErrorContext(ctx, "ledger write failed after confirmed mint",
			"property_id", record.PropertyID,
			"asset_id", result.AssetID.String(),
			"mint_tx_hash", result.TxHash.String(),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.ConsistencyFailures.Inc()
			s.metrics.RegistrationFailures.WithLabelValues(metrics.ReasonConsistency).Inc()
		}
		s.emit(ctx, audit.Event{
			Action:     audit.ActionConsistencyFailure,
			PropertyID: record.PropertyID,
			AssetID:    result.AssetID.String(),
			TxHash:     result.TxHash.String(),
			Reason:     err.Error(),
		})
		return nil, dErrors.Wrap(err, dErrors.CodeConsistency,
			"title minted in transaction "+result.TxHash.String()+" but the ledger write failed; reconcile with this transaction hash")
	}

	// Best effort: the prepared entry would expire on its own.
	if err := s.prepared.Delete(ctx, input.PayloadHash); err != nil {
		s.logger.WarnContext(ctx, "failed to delete consumed prepared registration",
			"payload_hash", input.PayloadHash.String(), "error", err)
	}

	if s.metrics != nil {
		s.metrics.TitlesMinted.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     audit.ActionTitleMinted,
		PropertyID: record.PropertyID,
		AssetID:    result.AssetID.String(),
		Actor:      input.ExecutedBy.String(),
		Wallet:     record.OwnerWallet.String(),
		TxHash:     result.TxHash.String(),
	})
	s.logger.InfoContext(ctx, "title minted",
		"property_id", record.PropertyID,
		"asset_id", result.AssetID.String(),
		"mint_tx_hash", result.TxHash.String(),
	)
	return record, nil
}

// ReplayInput resumes a registration whose mint confirmed but whose ledger
// write was lost.
type ReplayInput struct {
	PayloadHash domain.Hash
	TxHash      domain.Hash
	Signature   string
	ExecutedBy  domain.AccountID
}

// ReplayMint reconciles the ledger from a confirmed mint transaction. It is
// idempotent: replaying an already-recorded mint returns the existing record.
func (s *Service) ReplayMint(ctx context.Context, input ReplayInput) (*models.PropertyRecord, error) {
	ctx, span := s.startSpan(ctx, "registry.ReplayMint",
		attribute.String("tx_hash", input.TxHash.String()))
	defer span.End()

	reg, err := s.prepared.Get(ctx, input.PayloadHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no prepared registration for this payload hash; it may have expired")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prepared registration")
	}

	owner := reg.Fields.WalletAddress()
	if !signature.Verify(input.PayloadHash, input.Signature, owner) {
		return nil, dErrors.New(dErrors.CodeSignature, "consent signature was not produced by the owner wallet")
	}

	result, err := s.gateway.MintEventByTx(ctx, input.TxHash)
	if err != nil {
		s.countChainFailure(err)
		return nil, chainToDomain(err)
	}
	if result.PropertyID != reg.Fields.PropertyID {
		return nil, dErrors.New(dErrors.CodeConflict, "transaction minted a different property id")
	}
	if !result.Owner.Equal(owner) {
		return nil, dErrors.New(dErrors.CodeConflict, "transaction minted to a different owner wallet")
	}

	now := requestcontext.Now(ctx)
	record := recordFromMint(reg, result, ExecuteInput{
		PayloadHash: input.PayloadHash,
		Signature:   input.Signature,
		ExecutedBy:  input.ExecutedBy,
	}, s.resolveOwnerRef(ctx, owner), now)

	created, err := s.properties.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write ledger record")
	}
	if !created {
		existing, err := s.properties.GetByPropertyID(ctx, record.PropertyID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing record")
		}
		return existing, nil
	}

	if err := s.prepared.Delete(ctx, input.PayloadHash); err != nil {
		s.logger.WarnContext(ctx, "failed to delete consumed prepared registration",
			"payload_hash", input.PayloadHash.String(), "error", err)
	}

	if s.metrics != nil {
		s.metrics.MintsReplayed.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:     audit.ActionMintReplayed,
		PropertyID: record.PropertyID,
		AssetID:    record.AssetID.String(),
		Actor:      input.ExecutedBy.String(),
		TxHash:     input.TxHash.String(),
	})
	s.logger.InfoContext(ctx, "mint replayed into ledger",
		"property_id", record.PropertyID,
		"mint_tx_hash", input.TxHash.String(),
	)
	return record, nil
}

func (s *Service) countChainFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch chain.GetClass(err) {
	case chain.ClassRejected:
		s.metrics.RegistrationFailures.WithLabelValues(metrics.ReasonChain).Inc()
	default:
		s.metrics.RegistrationFailures.WithLabelValues(metrics.ReasonUnavailable).Inc()
	}
}

func mintRequest(fields models.RegistrationFields, documentHashes []string) chain.MintRequest {
	return chain.MintRequest{
		Owner:           fields.WalletAddress(),
		PropertyID:      fields.PropertyID,
		SurveyNumber:    fields.SurveyNumber,
		PropertyAddress: fields.PropertyAddress,
		Area:            fields.Area,
		OwnerName:       fields.OwnerName,
		Description:     fields.Description,
		DocumentHashes:  documentHashes,
	}
}

// resolveOwnerRef maps the owner wallet to a local account when one exists.
// A missing account is not an error: owners can register after the mint.
func (s *Service) resolveOwnerRef(ctx context.Context, wallet domain.Address) *domain.AccountID {
	acct, err := s.accounts.ResolveByWallet(ctx, wallet)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.WarnContext(ctx, "owner account lookup failed",
				"wallet", wallet.String(), "error", err)
		}
		return nil
	}
	id := acct.ID
	return &id
}

func recordFromMint(reg *prepared.Registration, result *chain.MintResult, input ExecuteInput, ownerRef *domain.AccountID, now time.Time) *models.PropertyRecord {
	return &models.PropertyRecord{
		PropertyID:       reg.Fields.PropertyID,
		SurveyNumber:     reg.Fields.SurveyNumber,
		AssetID:          result.AssetID,
		PropertyAddress:  reg.Fields.PropertyAddress,
		Area:             reg.Fields.Area,
		OwnerName:        reg.Fields.OwnerName,
		OwnerWallet:      reg.Fields.WalletAddress(),
		Description:      reg.Fields.Description,
		DocumentHashes:   reg.DocumentHashes,
		VerifierRef:      reg.PreparedBy,
		OwnerRef:         ownerRef,
		Status:           models.StatusPending,
		MintTxHash:       result.TxHash,
		ConsentSignature: input.Signature,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
