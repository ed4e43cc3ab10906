// Package handler exposes the registry over HTTP. Registration endpoints are
// gated to verifiers; marketplace endpoints act on behalf of the
// authenticated citizen's wallet.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountmodels "landledger/internal/accounts/models"
	accountsvc "landledger/internal/accounts/service"
	"landledger/internal/registry/service"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/platform/middleware/auth"
	"landledger/pkg/requestcontext"
)

type Handler struct {
	registry *service.Service
	accounts *accountsvc.Service
	logger   *slog.Logger
}

func New(registry *service.Service, accounts *accountsvc.Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, accounts: accounts, logger: logger}
}

// Register mounts the API under /api. Everything except account signup
// requires a valid bearer token.
func (h *Handler) Register(r chi.Router, validator *auth.Validator) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/accounts", h.createAccount)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(validator, h.logger))

			r.Get("/accounts/by-wallet/{address}", h.accountByWallet)
			r.Get("/properties/{propertyID}", h.getProperty)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleVerifier))
				r.Post("/registrations/prepare", h.prepareRegistration)
				r.Post("/registrations/execute", h.executeRegistration)
				r.Post("/registrations/reconcile", h.reconcileRegistration)
				r.Post("/properties/{propertyID}/verify", h.verifyProperty)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleCitizen))
				r.Post("/properties/{propertyID}/list", h.listForSale)
				r.Post("/properties/{propertyID}/confirm-sale", h.confirmSale)
				r.Get("/escrow/balance", h.escrowBalance)
				r.Post("/escrow/withdraw", h.withdrawEscrow)
			})
		})
	})
}

// identity pulls the authenticated caller, parsing the typed fields.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (domain.AccountID, domain.Address, bool) {
	ident, ok := auth.GetIdentity(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.AccountID{}, "", false
	}
	accountID, err := domain.ParseAccountID(ident.AccountID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a valid account id"))
		return domain.AccountID{}, "", false
	}
	var wallet domain.Address
	if ident.WalletAddress != "" {
		wallet, err = domain.ParseAddress(ident.WalletAddress)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token wallet address is invalid"))
			return domain.AccountID{}, "", false
		}
	}
	return accountID, wallet, true
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[accountmodels.NewAccountParams](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	account, err := h.accounts.Register(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) accountByWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.accounts.ResolveByWallet(ctx, wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) prepareRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, _, ok := h.identity(w, r)
	if !ok {
		return
	}

	input, err := parsePrepareRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	input.PreparedBy = accountID

	result, err := h.registry.Prepare(ctx, *input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPrepareResponse(result))
}

func (h *Handler) executeRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExecuteRegistrationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.registry.Execute(ctx, service.ExecuteInput{
		PayloadHash:    req.Hash(),
		Fields:         req.Fields,
		DocumentHashes: req.DocumentHashes,
		Signature:      req.Signature,
		ExecutedBy:     accountID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPropertyResponse(record))
}

func (h *Handler) reconcileRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, _, ok := h.identity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReconcileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	payloadHash, txHash := req.Hashes()
	record, err := h.registry.ReplayMint(ctx, service.ReplayInput{
		PayloadHash: payloadHash,
		TxHash:      txHash,
		Signature:   req.Signature,
		ExecutedBy:  accountID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(record))
}

func (h *Handler) getProperty(w http.ResponseWriter, r *http.Request) {
	record, err := h.registry.Get(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(record))
}

func (h *Handler) verifyProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, _, ok := h.identity(w, r)
	if !ok {
		return
	}

	record, err := h.registry.Verify(ctx, chi.URLParam(r, "propertyID"), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(record))
}

func (h *Handler) listForSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, wallet, ok := h.identity(w, r)
	if !ok {
		return
	}
	if wallet.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token carries no wallet address"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ListForSaleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	price, err := req.Price()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.registry.ListForSale(ctx, chi.URLParam(r, "propertyID"), wallet, price)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(record))
}

func (h *Handler) confirmSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ConfirmSaleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.registry.ConfirmSale(ctx, chi.URLParam(r, "propertyID"), req.Hash())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPropertyResponse(record))
}

func (h *Handler) escrowBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, wallet, ok := h.identity(w, r)
	if !ok {
		return
	}
	if wallet.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token carries no wallet address"))
		return
	}

	balance, err := h.registry.EscrowBalance(ctx, wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, escrowBalanceResponse{
		Wallet:     wallet.String(),
		BalanceWei: balance.String(),
	})
}

func (h *Handler) withdrawEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, wallet, ok := h.identity(w, r)
	if !ok {
		return
	}
	if wallet.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token carries no wallet address"))
		return
	}

	txHash, amount, err := h.registry.WithdrawEscrow(ctx, wallet)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawResponse{
		Wallet:    wallet.String(),
		AmountWei: amount.String(),
		TxHash:    txHash.String(),
	})
}
