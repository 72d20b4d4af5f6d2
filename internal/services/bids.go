package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/ledger"
	"github.com/enquira/backend/internal/models"
)

// SubmitBidStore is the bid-store subset submission needs.
type SubmitBidStore interface {
	InsertActive(ctx context.Context, b *models.Bid) error
}

// SubmitAuctionStore resolves the enquiry's auction window.
type SubmitAuctionStore interface {
	GetByEnquiryID(ctx context.Context, enquiryID uuid.UUID) (*models.EnquiryAuction, error)
}

// BidService validates and persists new bids. Credits are not moved here;
// a placed bid only reserves intent until settlement.
type BidService struct {
	Bids     SubmitBidStore
	Auctions SubmitAuctionStore
	Ledger   ledger.Service
	Logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewBidService(bids SubmitBidStore, auctions SubmitAuctionStore, ledgerSvc ledger.Service, logger *slog.Logger) *BidService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BidService{Bids: bids, Auctions: auctions, Ledger: ledgerSvc, Logger: logger, now: time.Now}
}

// SubmitBid accepts (enquiry, bidder, proposal, credits) bundled with a
// proposal submission. The duplicate-bid rule is enforced by the store's
// atomic insert, not by a read-then-write here, so concurrent submissions
// from the same bidder cannot both land.
func (s *BidService) SubmitBid(ctx context.Context, enquiryID, bidderID, proposalID uuid.UUID, creditsUsed int) (*models.Bid, error) {
	if creditsUsed < 1 {
		return nil, models.ErrInvalidAmount
	}

	auction, err := s.Auctions.GetByEnquiryID(ctx, enquiryID)
	if err != nil {
		return nil, err
	}
	if auction.Closed(s.now()) {
		return nil, models.ErrAuctionClosed
	}

	// Advisory only: the balance is re-read by the wallet at settlement.
	balance, err := s.Ledger.GetBalance(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance < creditsUsed {
		return nil, models.ErrInsufficientBalance
	}

	bid := &models.Bid{
		ID:          uuid.New(),
		EnquiryID:   enquiryID,
		BidderID:    bidderID,
		ProposalID:  proposalID,
		CreditsUsed: creditsUsed,
		Status:      models.BidStatusActive,
	}
	if err := s.Bids.InsertActive(ctx, bid); err != nil {
		return nil, err
	}

	s.Logger.Info("bid placed", "bid_id", bid.ID, "enquiry_id", enquiryID,
		"bidder_id", bidderID, "credits_used", creditsUsed)
	return bid, nil
}
