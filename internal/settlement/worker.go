// Package settlement holds the River job types and workers that carry out
// the side effects of bid finalization. The terminal-status transition is
// committed before either job is enqueued, so workers can retry freely
// without re-ranking anything.
package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/enquira/backend/internal/ledger"
	"github.com/enquira/backend/internal/models"
)

// ChargeBidArgs debits a bidder's wallet for a bid that was transitioned to
// CHARGED. Enqueued transactionally with the transition.
type ChargeBidArgs struct {
	BidID    uuid.UUID `json:"bid_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   int       `json:"amount"`
}

func (ChargeBidArgs) Kind() string { return "charge_bid" }

// CloseAuctionArgs finalizes an enquiry auction at its scheduled close time.
type CloseAuctionArgs struct {
	EnquiryID uuid.UUID `json:"enquiry_id"`
}

func (CloseAuctionArgs) Kind() string { return "close_auction" }

// BidLedgerStore is the bid-store subset the charge worker needs.
type BidLedgerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	SetLedgerTx(ctx context.Context, bidID, txID uuid.UUID) error
}

type ChargeBidWorker struct {
	river.WorkerDefaults[ChargeBidArgs]
	ledger ledger.Service
	bids   BidLedgerStore
	logger *slog.Logger
}

func NewChargeBidWorker(ledgerSvc ledger.Service, bids BidLedgerStore, logger *slog.Logger) *ChargeBidWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChargeBidWorker{ledger: ledgerSvc, bids: bids, logger: logger}
}

func (w *ChargeBidWorker) Work(ctx context.Context, job *river.Job[ChargeBidArgs]) error {
	args := job.Args

	bid, err := w.bids.GetByID(ctx, args.BidID)
	if err != nil {
		return fmt.Errorf("load bid %s: %w", args.BidID, err)
	}
	if bid.LedgerTxID != nil {
		// Debit already recorded by an earlier attempt.
		return nil
	}

	txID, err := w.ledger.Debit(ctx, args.BidderID, args.BidID, args.Amount, "bid boost charge")
	if err != nil {
		// Returning the error hands the retry to River; the bid stays
		// CHARGED and the debit is idempotent per bid.
		return fmt.Errorf("debit bidder %s for bid %s: %w", args.BidderID, args.BidID, err)
	}
	if err := w.bids.SetLedgerTx(ctx, args.BidID, txID); err != nil {
		return fmt.Errorf("record ledger tx on bid %s: %w", args.BidID, err)
	}

	w.logger.Info("bid charge settled", "bid_id", args.BidID, "bidder_id", args.BidderID,
		"amount", args.Amount, "ledger_tx_id", txID)
	return nil
}

// Closer finalizes an enquiry auction; implemented by the settlement service.
type Closer interface {
	OnClosure(ctx context.Context, enquiryID uuid.UUID) error
}

type CloseAuctionWorker struct {
	river.WorkerDefaults[CloseAuctionArgs]
	closer Closer
}

func NewCloseAuctionWorker(closer Closer) *CloseAuctionWorker {
	return &CloseAuctionWorker{closer: closer}
}

func (w *CloseAuctionWorker) Work(ctx context.Context, job *river.Job[CloseAuctionArgs]) error {
	// OnClosure is idempotent, so duplicate deliveries are harmless.
	return w.closer.OnClosure(ctx, job.Args.EnquiryID)
}
