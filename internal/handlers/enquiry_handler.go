package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/models"
)

// AuctionRegistrar abstracts auction registration and scheduling.
type AuctionRegistrar interface {
	RegisterAuction(ctx context.Context, enquiryID, ownerID uuid.UUID, closesAt *time.Time) (*models.EnquiryAuction, error)
	ScheduleClosure(ctx context.Context, enquiryID uuid.UUID, closesAt time.Time) error
	ListInteractions(ctx context.Context, enquiryID uuid.UUID) ([]models.Interaction, error)
}

// Settler exposes the two settlement event hooks.
type Settler interface {
	OnInteraction(ctx context.Context, enquiryID, proposalID, bidderID uuid.UUID) error
	OnClosure(ctx context.Context, enquiryID uuid.UUID) error
}

// EnquiryHandler serves the auction lifecycle endpoints called by the
// external enquiry/proposal service.
type EnquiryHandler struct {
	Auctions AuctionRegistrar
	Settler  Settler
	Logger   *slog.Logger
}

type registerEnquiryRequest struct {
	EnquiryID string     `json:"enquiry_id"`
	OwnerID   string     `json:"owner_id"`
	ClosesAt  *time.Time `json:"closes_at,omitempty"`
}

// Register handles POST /v1/enquiries — opens bidding for an enquiry.
func (h *EnquiryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerEnquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	enquiryID, err := uuid.Parse(req.EnquiryID)
	if err != nil {
		http.Error(w, `{"error":"invalid enquiry_id"}`, http.StatusBadRequest)
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		http.Error(w, `{"error":"invalid owner_id"}`, http.StatusBadRequest)
		return
	}

	auction, err := h.Auctions.RegisterAuction(r.Context(), enquiryID, ownerID, req.ClosesAt)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, auction)
}

type scheduleCloseRequest struct {
	ClosesAt time.Time `json:"closes_at"`
}

// ScheduleClose handles POST /v1/enquiries/{id}/schedule-close.
func (h *EnquiryHandler) ScheduleClose(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	var req scheduleCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClosesAt.IsZero() {
		http.Error(w, `{"error":"closes_at is required"}`, http.StatusBadRequest)
		return
	}
	if err := h.Auctions.ScheduleClosure(r.Context(), enquiryID, req.ClosesAt); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type interactionRequest struct {
	ProposalID string `json:"proposal_id"`
	BidderID   string `json:"bidder_id"`
}

// Interact handles POST /v1/enquiries/{id}/interactions — the event hook
// fired when the enquiry owner engages with a proposal. Replays no-op.
func (h *EnquiryHandler) Interact(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	proposalID, err := uuid.Parse(req.ProposalID)
	if err != nil {
		http.Error(w, `{"error":"invalid proposal_id"}`, http.StatusBadRequest)
		return
	}
	bidderID, err := uuid.Parse(req.BidderID)
	if err != nil {
		http.Error(w, `{"error":"invalid bidder_id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Settler.OnInteraction(r.Context(), enquiryID, proposalID, bidderID); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Close handles POST /v1/enquiries/{id}/close — the closure event hook.
// Idempotent: replaying closure for an already-closed enquiry returns 202
// without re-processing.
func (h *EnquiryHandler) Close(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Settler.OnClosure(r.Context(), enquiryID); err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListInteractions handles GET /v1/enquiries/{id}/interactions.
func (h *EnquiryHandler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	enquiryID, ok := enquiryIDFromPath(r)
	if !ok {
		http.Error(w, `{"error":"invalid enquiry id"}`, http.StatusBadRequest)
		return
	}
	events, err := h.Auctions.ListInteractions(r.Context(), enquiryID)
	if err != nil {
		writeServiceError(w, h.Logger, err)
		return
	}
	if events == nil {
		events = []models.Interaction{}
	}
	writeJSON(w, http.StatusOK, events)
}
