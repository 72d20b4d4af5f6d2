package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enquira/backend/internal/models"
)

const bidColumns = `id, enquiry_id, bidder_id, proposal_id, credits_used, status, submitted_at, settled_at, settled_by, ledger_tx_id`

// BidRepo is the durable record of bids; the leaderboard is derived from it.
type BidRepo struct {
	pool *pgxpool.Pool
}

func NewBidRepo(pool *pgxpool.Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

func (r *BidRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertActive persists a new ACTIVE bid. The statement carries both
// submission guards: the SELECT yields a row only while the auction is open,
// and FOR SHARE on the auction row serializes the insert against the closure
// trigger's closed_at update, so a bid either lands before the closure
// snapshot or fails with ErrAuctionClosed — it can never be stranded ACTIVE
// behind a closed auction. The partial unique index on (enquiry_id,
// bidder_id) WHERE status = 'ACTIVE' makes the duplicate-bid check atomic:
// a losing concurrent writer gets ErrDuplicateBid.
func (r *BidRepo) InsertActive(ctx context.Context, b *models.Bid) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bids (id, enquiry_id, bidder_id, proposal_id, credits_used, status)
		SELECT $1, ea.enquiry_id, $3, $4, $5, 'ACTIVE'
		FROM enquiry_auctions ea
		WHERE ea.enquiry_id = $2 AND ea.closed_at IS NULL
		FOR SHARE
		RETURNING submitted_at
	`, b.ID, b.EnquiryID, b.BidderID, b.ProposalID, b.CreditsUsed).Scan(&b.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAuctionClosed
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateBid
		}
		return err
	}
	b.Status = models.BidStatusActive
	return nil
}

func (r *BidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
	return scanBid(row)
}

// GetActive returns the bidder's ACTIVE bid on the enquiry, or ErrNotFound.
func (r *BidRepo) GetActive(ctx context.Context, tx pgx.Tx, enquiryID, bidderID uuid.UUID) (*models.Bid, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE enquiry_id = $1 AND bidder_id = $2 AND status = 'ACTIVE'
	`, enquiryID, bidderID)
	return scanBid(row)
}

// ListActive returns the ACTIVE bid set for an enquiry, the source every
// leaderboard and simulation read derives from.
func (r *BidRepo) ListActive(ctx context.Context, enquiryID uuid.UUID) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE enquiry_id = $1 AND status = 'ACTIVE'
		ORDER BY submitted_at
	`, enquiryID)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

// ListActiveForUpdate locks and returns the ACTIVE bid set inside the
// caller's transaction. The closure trigger uses it so settlement ranks one
// consistent snapshot; bids committed after the lock are treated as late.
func (r *BidRepo) ListActiveForUpdate(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) ([]models.Bid, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE enquiry_id = $1 AND status = 'ACTIVE'
		ORDER BY submitted_at
		FOR UPDATE
	`, enquiryID)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

// Transition finalizes an ACTIVE bid via compare-and-swap. The returned bool
// is false when the bid was already terminal: whichever trigger reached the
// bid first won, and the caller must treat the miss as a no-op.
func (r *BidRepo) Transition(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, to, settledBy string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bids SET status = $1, settled_by = $2, settled_at = now()
		WHERE id = $3 AND status = 'ACTIVE'
	`, to, settledBy, bidID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetLedgerTx records the wallet debit backing a CHARGED bid. Idempotent:
// only the first writer sticks.
func (r *BidRepo) SetLedgerTx(ctx context.Context, bidID, txID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bids SET ledger_tx_id = $1 WHERE id = $2 AND ledger_tx_id IS NULL
	`, txID, bidID)
	return err
}

// ListByEnquiry returns every bid on an enquiry regardless of status, newest
// first. Settled bids are never deleted, so this doubles as the audit view.
func (r *BidRepo) ListByEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bidColumns+` FROM bids
		WHERE enquiry_id = $1
		ORDER BY submitted_at DESC
	`, enquiryID)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.ID, &b.EnquiryID, &b.BidderID, &b.ProposalID, &b.CreditsUsed,
		&b.Status, &b.SubmittedAt, &b.SettledAt, &b.SettledBy, &b.LedgerTxID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBids(rows pgx.Rows) ([]models.Bid, error) {
	defer rows.Close()
	var list []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.EnquiryID, &b.BidderID, &b.ProposalID, &b.CreditsUsed,
			&b.Status, &b.SubmittedAt, &b.SettledAt, &b.SettledBy, &b.LedgerTxID); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
