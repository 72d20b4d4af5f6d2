package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enquira/backend/internal/models"
)

// AuctionRepo tracks the per-enquiry auction window and interaction events.
type AuctionRepo struct {
	pool *pgxpool.Pool
}

func NewAuctionRepo(pool *pgxpool.Pool) *AuctionRepo {
	return &AuctionRepo{pool: pool}
}

func (r *AuctionRepo) Create(ctx context.Context, a *models.EnquiryAuction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO enquiry_auctions (enquiry_id, owner_id, closes_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, a.EnquiryID, a.OwnerID, a.ClosesAt).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

func (r *AuctionRepo) GetByEnquiryID(ctx context.Context, enquiryID uuid.UUID) (*models.EnquiryAuction, error) {
	var a models.EnquiryAuction
	err := r.pool.QueryRow(ctx, `
		SELECT enquiry_id, owner_id, closes_at, closed_at, created_at
		FROM enquiry_auctions WHERE enquiry_id = $1
	`, enquiryID).Scan(&a.EnquiryID, &a.OwnerID, &a.ClosesAt, &a.ClosedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetForShare reads the auction inside the caller's transaction with a
// share lock, so a racing closure trigger commits strictly before or after
// the caller and the closed_at it sees is never stale.
func (r *AuctionRepo) GetForShare(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) (*models.EnquiryAuction, error) {
	var a models.EnquiryAuction
	err := tx.QueryRow(ctx, `
		SELECT enquiry_id, owner_id, closes_at, closed_at, created_at
		FROM enquiry_auctions WHERE enquiry_id = $1
		FOR SHARE
	`, enquiryID).Scan(&a.EnquiryID, &a.OwnerID, &a.ClosesAt, &a.ClosedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ScheduleClose sets the close time on an auction that has not closed yet.
func (r *AuctionRepo) ScheduleClose(ctx context.Context, enquiryID uuid.UUID, closesAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enquiry_auctions SET closes_at = $1
		WHERE enquiry_id = $2 AND closed_at IS NULL
	`, closesAt, enquiryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAuctionClosed
	}
	return nil
}

// ClaimClosure marks the auction closed exactly once. The returned bool is
// false when another closure trigger already claimed it; the caller must
// no-op instead of re-ranking.
func (r *AuctionRepo) ClaimClosure(ctx context.Context, tx pgx.Tx, enquiryID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE enquiry_auctions SET closed_at = now()
		WHERE enquiry_id = $1 AND closed_at IS NULL
	`, enquiryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordInteraction appends an owner-engagement event inside the caller's
// transaction so the event and the bid transition commit together.
func (r *AuctionRepo) RecordInteraction(ctx context.Context, tx pgx.Tx, in *models.Interaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO interactions (id, enquiry_id, proposal_id, bidder_id)
		VALUES ($1, $2, $3, $4)
		RETURNING occurred_at
	`, in.ID, in.EnquiryID, in.ProposalID, in.BidderID).Scan(&in.OccurredAt)
}

func (r *AuctionRepo) ListInteractions(ctx context.Context, enquiryID uuid.UUID) ([]models.Interaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, enquiry_id, proposal_id, bidder_id, occurred_at
		FROM interactions WHERE enquiry_id = $1 ORDER BY occurred_at
	`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.ID, &in.EnquiryID, &in.ProposalID, &in.BidderID, &in.OccurredAt); err != nil {
			return nil, err
		}
		list = append(list, in)
	}
	return list, rows.Err()
}
