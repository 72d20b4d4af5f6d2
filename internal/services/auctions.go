package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/models"
)

// AuctionStore is the auction-store subset registration needs.
type AuctionStore interface {
	Create(ctx context.Context, a *models.EnquiryAuction) error
	GetByEnquiryID(ctx context.Context, enquiryID uuid.UUID) (*models.EnquiryAuction, error)
	ScheduleClose(ctx context.Context, enquiryID uuid.UUID, closesAt time.Time) error
	ListInteractions(ctx context.Context, enquiryID uuid.UUID) ([]models.Interaction, error)
}

// EnqueueCloseAuctionFunc schedules a closure job for the given instant.
// Provided by main using river.Client.Insert with ScheduledAt.
type EnqueueCloseAuctionFunc func(ctx context.Context, enquiryID uuid.UUID, at time.Time) error

// AuctionService registers enquiry auctions on behalf of the external
// enquiry service and schedules their closure jobs.
type AuctionService struct {
	Auctions     AuctionStore
	EnqueueClose EnqueueCloseAuctionFunc
	Logger       *slog.Logger
}

func NewAuctionService(auctions AuctionStore, enqueueClose EnqueueCloseAuctionFunc, logger *slog.Logger) *AuctionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuctionService{Auctions: auctions, EnqueueClose: enqueueClose, Logger: logger}
}

// RegisterAuction opens bidding for an enquiry. When closesAt is set, a
// closure job is scheduled for that instant.
func (s *AuctionService) RegisterAuction(ctx context.Context, enquiryID, ownerID uuid.UUID, closesAt *time.Time) (*models.EnquiryAuction, error) {
	auction := &models.EnquiryAuction{
		EnquiryID: enquiryID,
		OwnerID:   ownerID,
		ClosesAt:  closesAt,
	}
	if err := s.Auctions.Create(ctx, auction); err != nil {
		return nil, err
	}
	if closesAt != nil {
		if err := s.EnqueueClose(ctx, enquiryID, *closesAt); err != nil {
			return nil, fmt.Errorf("schedule closure: %w", err)
		}
	}
	s.Logger.Info("auction registered", "enquiry_id", enquiryID, "owner_id", ownerID)
	return auction, nil
}

// ScheduleClosure sets (or moves) the close time of an open auction and
// schedules the matching closure job.
func (s *AuctionService) ScheduleClosure(ctx context.Context, enquiryID uuid.UUID, closesAt time.Time) error {
	if err := s.Auctions.ScheduleClose(ctx, enquiryID, closesAt); err != nil {
		return err
	}
	if err := s.EnqueueClose(ctx, enquiryID, closesAt); err != nil {
		return fmt.Errorf("schedule closure: %w", err)
	}
	s.Logger.Info("auction closure scheduled", "enquiry_id", enquiryID, "closes_at", closesAt)
	return nil
}

// ListInteractions returns the enquiry's owner-engagement audit trail.
func (s *AuctionService) ListInteractions(ctx context.Context, enquiryID uuid.UUID) ([]models.Interaction, error) {
	if _, err := s.Auctions.GetByEnquiryID(ctx, enquiryID); err != nil {
		return nil, err
	}
	return s.Auctions.ListInteractions(ctx, enquiryID)
}
