package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/middleware"
	"github.com/enquira/backend/internal/models"
	"github.com/enquira/backend/internal/services"
)

// BidSubmitter abstracts the submission coordinator.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, enquiryID, bidderID, proposalID uuid.UUID, creditsUsed int) (*models.Bid, error)
}

// LeaderboardReader abstracts the read-only leaderboard projection.
type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, enquiryID uuid.UUID, bidderID *uuid.UUID) (*services.Leaderboard, error)
	SimulateRank(ctx context.Context, enquiryID uuid.UUID, creditsUsed int) (*int, error)
}

// BidLister serves the per-enquiry audit listing.
type BidLister interface {
	ListByEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]models.Bid, error)
}

// BidHandler serves the bid and leaderboard endpoints.
type BidHandler struct {
	Bids        BidSubmitter
	Leaderboard LeaderboardReader
	Store       BidLister
	Logger      *slog.Logger
}

type submitBidRequest struct {
	ProposalID  string `json:"proposal_id"`
	CreditsUsed int    `json:"credits_used"`
}

// SubmitBid handles POST /v1/enquiries/{id}/bids.
// Identity -> BidLimit (via middleware) -> SubmitBid -> 201.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}

	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	proposalID, err := uuid.Parse(req.ProposalID)
	if err != nil {
		http.Error(w, `{"error":"invalid proposal_id"}`, http.StatusBadRequest)
		return
	}

	bid, err := h.Bids.SubmitBid(r.Context(), enquiryID, acc.ID, proposalID, req.CreditsUsed)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// GetLeaderboard handles GET /v1/enquiries/{id}/leaderboard. Identity is
// optional: with it the response carries the caller's own bid and rank.
func (h *BidHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	var bidderID *uuid.UUID
	if acc := middleware.AccountFromCtx(r.Context()); acc != nil {
		bidderID = &acc.ID
	}

	lb, err := h.Leaderboard.GetLeaderboard(r.Context(), enquiryID, bidderID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type simulateResponse struct {
	CreditsUsed int  `json:"credits_used"`
	Rank        *int `json:"rank"` // null when outside the top slots
}

// Simulate handles GET /v1/enquiries/{id}/simulate?credits=N — the what-if
// preview. Read-only, nothing is persisted.
func (h *BidHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	credits, err := strconv.Atoi(r.URL.Query().Get("credits"))
	if err != nil {
		http.Error(w, `{"error":"credits query parameter must be an integer"}`, http.StatusBadRequest)
		return
	}

	rank, err := h.Leaderboard.SimulateRank(r.Context(), enquiryID, credits)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, simulateResponse{CreditsUsed: credits, Rank: rank})
}

// ListBids handles GET /v1/enquiries/{id}/bids — the settled-and-active
// audit listing. Bids are archived, never deleted.
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	bids, err := h.Store.ListByEnquiry(r.Context(), enquiryID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	writeJSON(w, http.StatusOK, bids)
}

func enquiryIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
