package handler

import (
	"encoding/hex"
	"time"

	"landledger/internal/registry/models"
	"landledger/internal/registry/service"
)

// prepareResponse is returned for out-of-band signing.
type prepareResponse struct {
	PayloadHash    string    `json:"payload_hash"`
	DocumentHashes []string  `json:"document_hashes"`
	CallData       string    `json:"encoded_call_data"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func toPrepareResponse(result *service.PrepareResult) prepareResponse {
	return prepareResponse{
		PayloadHash:    result.PayloadHash.String(),
		DocumentHashes: result.DocumentHashes,
		CallData:       "0x" + hex.EncodeToString(result.CallData),
		ExpiresAt:      result.ExpiresAt,
	}
}

// propertyResponse is the wire form of a ledger record. Prices are decimal
// strings; they exceed what JSON numbers can carry.
type propertyResponse struct {
	PropertyID      string     `json:"property_id"`
	SurveyNumber    string     `json:"survey_number"`
	AssetID         string     `json:"asset_id,omitempty"`
	PropertyAddress string     `json:"property_address"`
	Area            string     `json:"area"`
	OwnerName       string     `json:"owner_name"`
	OwnerWallet     string     `json:"owner_wallet_address"`
	Description     string     `json:"description,omitempty"`
	DocumentHashes  []string   `json:"document_hashes"`
	Status          string     `json:"status"`
	MintTxHash      string     `json:"mint_transaction_hash"`
	SaleTxHash      string     `json:"sale_transaction_hash,omitempty"`
	SalePriceWei    string     `json:"sale_price_wei,omitempty"`
	ListedAt        *time.Time `json:"listed_at,omitempty"`
	SoldAt          *time.Time `json:"sold_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toPropertyResponse(record *models.PropertyRecord) propertyResponse {
	resp := propertyResponse{
		PropertyID:      record.PropertyID,
		SurveyNumber:    record.SurveyNumber,
		PropertyAddress: record.PropertyAddress,
		Area:            record.Area,
		OwnerName:       record.OwnerName,
		OwnerWallet:     record.OwnerWallet.String(),
		Description:     record.Description,
		DocumentHashes:  record.DocumentHashes,
		Status:          string(record.Status),
		MintTxHash:      record.MintTxHash.String(),
		SaleTxHash:      record.SaleTxHash.String(),
		ListedAt:        record.ListedAt,
		SoldAt:          record.SoldAt,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	if !record.AssetID.IsZero() {
		resp.AssetID = record.AssetID.String()
	}
	if record.SalePrice != nil {
		resp.SalePriceWei = record.SalePrice.String()
	}
	return resp
}

type escrowBalanceResponse struct {
	Wallet     string `json:"wallet_address"`
	BalanceWei string `json:"balance_wei"`
}

type withdrawResponse struct {
	Wallet    string `json:"wallet_address"`
	AmountWei string `json:"amount_wei"`
	TxHash    string `json:"transaction_hash"`
}
