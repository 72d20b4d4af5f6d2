package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/middleware"
	"github.com/enquira/backend/internal/models"
)

// WalletReader lists an account's ledger history.
type WalletReader interface {
	ListEntries(ctx context.Context, accountID uuid.UUID) ([]models.WalletEntry, error)
}

// AccountWriter provisions wallet accounts.
type AccountWriter interface {
	Create(ctx context.Context, a *models.Account) error
}

// WalletHandler serves the wallet surface: balance and ledger history for
// bidders, plus the service-to-service provisioning hook the platform calls
// on signup. Top-ups happen in the external checkout flow.
type WalletHandler struct {
	Ledger   WalletReader
	Accounts AccountWriter
	Logger   *slog.Logger
}

type createAccountRequest struct {
	AccountID     string `json:"account_id"`
	DisplayName   string `json:"display_name"`
	CreditBalance int    `json:"credit_balance"`
	MaxPerBid     *int   `json:"max_per_bid,omitempty"`
	MaxPerDay     *int   `json:"max_per_day,omitempty"`
}

// CreateAccount handles POST /v1/accounts.
func (h *WalletHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		http.Error(w, `{"error":"invalid account_id"}`, http.StatusBadRequest)
		return
	}
	if req.CreditBalance < 0 {
		http.Error(w, `{"error":"credit_balance must not be negative"}`, http.StatusBadRequest)
		return
	}

	acc := &models.Account{
		ID:            accountID,
		DisplayName:   req.DisplayName,
		CreditBalance: req.CreditBalance,
		MaxPerBid:     req.MaxPerBid,
		MaxPerDay:     req.MaxPerDay,
	}
	if err := h.Accounts.Create(r.Context(), acc); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// GetMe handles GET /v1/account/me.
func (h *WalletHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ListLedger handles GET /v1/account/ledger.
func (h *WalletHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.Ledger.ListEntries(r.Context(), acc.ID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []models.WalletEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
