package handler

import (
	"bytes"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"landledger/internal/registry/models"
	"landledger/internal/registry/service"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

const (
	// maxDocumentBytes caps each uploaded title document.
	maxDocumentBytes = 10 << 20

	motherDeedField   = "mother_deed"
	encumbranceField  = "encumbrance_certificate"
)

var pdfMagic = []byte("%PDF")

// parsePrepareRequest reads the multipart prepare form: the registration
// fields plus the two title documents.
func parsePrepareRequest(r *http.Request) (*service.PrepareInput, error) {
	if err := r.ParseMultipartForm(2 * maxDocumentBytes); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request must be multipart/form-data")
	}

	fields := models.RegistrationFields{
		PropertyID:      r.FormValue("property_id"),
		SurveyNumber:    r.FormValue("survey_number"),
		PropertyAddress: r.FormValue("property_address"),
		Area:            r.FormValue("area"),
		OwnerName:       r.FormValue("owner_name"),
		OwnerWallet:     r.FormValue("owner_wallet_address"),
		Description:     r.FormValue("description"),
	}
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	var docs []service.Document
	for _, field := range []string{motherDeedField, encumbranceField} {
		doc, err := readDocument(r, field)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return &service.PrepareInput{Fields: fields, Documents: docs}, nil
}

func readDocument(r *http.Request, field string) (service.Document, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return service.Document{}, dErrors.New(dErrors.CodeValidation, field+" document is required")
	}
	defer file.Close()

	if header.Size > maxDocumentBytes {
		return service.Document{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s exceeds the %d MiB document limit", field, maxDocumentBytes>>20))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return service.Document{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read "+field)
	}
	content := buf.Bytes()
	if !bytes.HasPrefix(content, pdfMagic) {
		return service.Document{}, dErrors.New(dErrors.CodeValidation, field+" must be a PDF document")
	}

	name := header.Filename
	if name == "" {
		name = field + ".pdf"
	}
	return service.Document{Name: name, Content: content}, nil
}

// ExecuteRegistrationRequest is the signed half of a registration.
type ExecuteRegistrationRequest struct {
	PayloadHash    string                    `json:"payload_hash"`
	Fields         models.RegistrationFields `json:"fields"`
	DocumentHashes []string                  `json:"document_hashes"`
	Signature      string                    `json:"signature"`
}

func (req *ExecuteRegistrationRequest) Normalize() {
	req.PayloadHash = strings.TrimSpace(req.PayloadHash)
	req.Signature = strings.TrimSpace(req.Signature)
	req.Fields.Normalize()
	for i, h := range req.DocumentHashes {
		req.DocumentHashes[i] = strings.TrimSpace(h)
	}
}

func (req *ExecuteRegistrationRequest) Validate() error {
	if _, err := domain.ParseHash(req.PayloadHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "payload_hash is invalid")
	}
	if req.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	if len(req.DocumentHashes) != models.RequiredDocumentCount {
		return dErrors.New(dErrors.CodeValidation, "exactly two document_hashes are required")
	}
	return req.Fields.Validate()
}

// Hash returns the parsed, normalized payload hash. Call after Validate.
func (req *ExecuteRegistrationRequest) Hash() domain.Hash {
	h, _ := domain.ParseHash(req.PayloadHash)
	return h
}

// ReconcileRequest replays a confirmed mint whose ledger write was lost.
type ReconcileRequest struct {
	PayloadHash string `json:"payload_hash"`
	TxHash      string `json:"tx_hash"`
	Signature   string `json:"signature"`
}

func (req *ReconcileRequest) Normalize() {
	req.PayloadHash = strings.TrimSpace(req.PayloadHash)
	req.TxHash = strings.TrimSpace(req.TxHash)
	req.Signature = strings.TrimSpace(req.Signature)
}

func (req *ReconcileRequest) Validate() error {
	if _, err := domain.ParseHash(req.PayloadHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "payload_hash is invalid")
	}
	if _, err := domain.ParseHash(req.TxHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "tx_hash is invalid")
	}
	if req.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	return nil
}

// Hashes returns the parsed, normalized payload and tx hashes. Call after
// Validate.
func (req *ReconcileRequest) Hashes() (payload, tx domain.Hash) {
	payload, _ = domain.ParseHash(req.PayloadHash)
	tx, _ = domain.ParseHash(req.TxHash)
	return payload, tx
}

// ListForSaleRequest lists a property at a wei price.
type ListForSaleRequest struct {
	PriceWei string `json:"price_wei"`
}

func (req *ListForSaleRequest) Normalize() {
	req.PriceWei = strings.TrimSpace(req.PriceWei)
}

func (req *ListForSaleRequest) Validate() error {
	if _, err := req.Price(); err != nil {
		return err
	}
	return nil
}

// Price parses the wei amount. Decimal string on the wire; amounts routinely
// exceed uint64.
func (req *ListForSaleRequest) Price() (*big.Int, error) {
	price, ok := new(big.Int).SetString(req.PriceWei, 10)
	if !ok || price.Sign() <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "price_wei must be a positive decimal integer")
	}
	return price, nil
}

// ConfirmSaleRequest settles a completed on-chain purchase into the ledger.
type ConfirmSaleRequest struct {
	SaleTxHash string `json:"sale_tx_hash"`
}

func (req *ConfirmSaleRequest) Normalize() {
	req.SaleTxHash = strings.TrimSpace(req.SaleTxHash)
}

func (req *ConfirmSaleRequest) Validate() error {
	if _, err := domain.ParseHash(req.SaleTxHash); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "sale_tx_hash is invalid")
	}
	return nil
}

// Hash returns the parsed, normalized sale tx hash. Call after Validate.
func (req *ConfirmSaleRequest) Hash() domain.Hash {
	h, _ := domain.ParseHash(req.SaleTxHash)
	return h
}
