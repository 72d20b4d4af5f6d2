package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/enquira/backend/internal/models"
	"github.com/enquira/backend/internal/ranking"
	"github.com/enquira/backend/internal/settlement"
)

// SettlementBidStore is the bid-store subset settlement needs. All mutations
// run inside one transaction per trigger.
type SettlementBidStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetActive(ctx context.Context, tx pgx.Tx, enquiryID, bidderID uuid.UUID) (*models.Bid, error)
	ListActiveForUpdate(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) ([]models.Bid, error)
	Transition(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, to, settledBy string) (bool, error)
}

type SettlementAuctionStore interface {
	GetByEnquiryID(ctx context.Context, enquiryID uuid.UUID) (*models.EnquiryAuction, error)
	GetForShare(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) (*models.EnquiryAuction, error)
	ClaimClosure(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) (bool, error)
	RecordInteraction(ctx context.Context, tx pgx.Tx, in *models.Interaction) error
}

// InsertChargeBidTxFunc enqueues a ChargeBid job within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertChargeBidTxFunc func(ctx context.Context, tx pgx.Tx, args settlement.ChargeBidArgs) error

// SettlementService finalizes bids: ACTIVE -> CHARGED or ACTIVE -> REFUNDED,
// driven by the interaction trigger and the closure trigger. Both triggers
// are idempotent; the status CAS decides races between them.
type SettlementService struct {
	Bids            SettlementBidStore
	Auctions        SettlementAuctionStore
	InsertChargeBid InsertChargeBidTxFunc
	Logger          *slog.Logger
}

func NewSettlementService(bids SettlementBidStore, auctions SettlementAuctionStore, insertChargeBid InsertChargeBidTxFunc, logger *slog.Logger) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{Bids: bids, Auctions: auctions, InsertChargeBid: insertChargeBid, Logger: logger}
}

var _ settlement.Closer = (*SettlementService)(nil)

// OnInteraction handles the enquiry owner engaging with a bidder's proposal.
// If the auction is still open, that bidder's ACTIVE bid is charged
// immediately, regardless of rank. Replays and interactions without a
// matching active bid are no-ops.
func (s *SettlementService) OnInteraction(ctx context.Context, enquiryID, proposalID, bidderID uuid.UUID) error {
	tx, err := s.Bids.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin interaction tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locked read inside the tx: the closed_at we act on cannot be stale
	// relative to a closure committing concurrently.
	auction, err := s.Auctions.GetForShare(ctx, tx, enquiryID)
	if err != nil {
		return err
	}

	event := &models.Interaction{
		ID:         uuid.New(),
		EnquiryID:  enquiryID,
		ProposalID: proposalID,
		BidderID:   bidderID,
	}
	if err := s.Auctions.RecordInteraction(ctx, tx, event); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	if auction.ClosedAt == nil {
		bid, err := s.Bids.GetActive(ctx, tx, enquiryID, bidderID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			// No active bid to charge: either the bidder never boosted or
			// a closure/earlier interaction already finalized it.
		case err != nil:
			return fmt.Errorf("load active bid: %w", err)
		default:
			claimed, err := s.Bids.Transition(ctx, tx, bid.ID, models.BidStatusCharged, models.SettledByInteraction)
			if err != nil {
				return fmt.Errorf("charge bid %s: %w", bid.ID, err)
			}
			if claimed {
				if err := s.InsertChargeBid(ctx, tx, settlement.ChargeBidArgs{
					BidID:    bid.ID,
					BidderID: bid.BidderID,
					Amount:   bid.CreditsUsed,
				}); err != nil {
					return fmt.Errorf("enqueue charge for bid %s: %w", bid.ID, err)
				}
				s.Logger.Info("bid charged by interaction", "bid_id", bid.ID,
					"enquiry_id", enquiryID, "bidder_id", bidderID)
			}
		}
	}

	return tx.Commit(ctx)
}

// OnClosure finalizes the auction: ranks one consistent snapshot of the
// remaining ACTIVE bids, charges ranks <= TopK, refunds the rest. The
// closed_at CAS makes the whole operation one-time; replaying it no-ops.
func (s *SettlementService) OnClosure(ctx context.Context, enquiryID uuid.UUID) error {
	if _, err := s.Auctions.GetByEnquiryID(ctx, enquiryID); err != nil {
		return err
	}

	tx, err := s.Bids.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin closure tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := s.Auctions.ClaimClosure(ctx, tx, enquiryID)
	if err != nil {
		return fmt.Errorf("claim closure: %w", err)
	}
	if !claimed {
		return nil
	}

	bids, err := s.Bids.ListActiveForUpdate(ctx, tx, enquiryID)
	if err != nil {
		return fmt.Errorf("snapshot active bids: %w", err)
	}

	entries := make([]ranking.Entry, 0, len(bids))
	for _, b := range bids {
		entries = append(entries, ranking.Entry{
			BidID:       b.ID,
			BidderID:    b.BidderID,
			Credits:     b.CreditsUsed,
			SubmittedAt: b.SubmittedAt,
		})
	}
	winners := make(map[uuid.UUID]bool, ranking.TopK)
	for i, e := range ranking.Order(entries) {
		if i >= ranking.TopK {
			break
		}
		winners[e.BidID] = true
	}

	var charged, refunded int
	for _, b := range bids {
		to := models.BidStatusRefunded
		if winners[b.ID] {
			to = models.BidStatusCharged
		}
		ok, err := s.Bids.Transition(ctx, tx, b.ID, to, models.SettledByClosure)
		if err != nil {
			return fmt.Errorf("finalize bid %s: %w", b.ID, err)
		}
		if !ok {
			// An interaction trigger got there between snapshot and update.
			continue
		}
		if to == models.BidStatusCharged {
			charged++
			if err := s.InsertChargeBid(ctx, tx, settlement.ChargeBidArgs{
				BidID:    b.ID,
				BidderID: b.BidderID,
				Amount:   b.CreditsUsed,
			}); err != nil {
				return fmt.Errorf("enqueue charge for bid %s: %w", b.ID, err)
			}
		} else {
			refunded++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit closure: %w", err)
	}
	s.Logger.Info("auction closed", "enquiry_id", enquiryID,
		"charged", charged, "refunded", refunded, "total", len(bids))
	return nil
}
