package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/cache"
	"github.com/enquira/backend/internal/models"
	"github.com/enquira/backend/internal/ranking"
)

// LeaderboardBidStore is the bid-store subset leaderboard reads need.
type LeaderboardBidStore interface {
	ListActive(ctx context.Context, enquiryID uuid.UUID) ([]models.Bid, error)
}

// LeaderboardSlot is one anonymized top-K row: position and amount only,
// with the requester's own slot flagged.
type LeaderboardSlot struct {
	Position int  `json:"position"`
	Credits  int  `json:"credits"`
	Mine     bool `json:"mine"`
}

type MyBid struct {
	BidID   uuid.UUID `json:"bid_id"`
	Credits int       `json:"credits"`
	Rank    *int      `json:"rank,omitempty"`
}

type Leaderboard struct {
	TopBids    []LeaderboardSlot `json:"top_bids"`
	MyBid      *MyBid            `json:"my_bid,omitempty"`
	MinToEnter int               `json:"min_to_enter"`
	MinToLead  int               `json:"min_to_lead"`
	TotalBids  int               `json:"total_bids"`
}

// LeaderboardService is a read-only projection over the active bid set.
// Reads may be a few seconds stale when the snapshot cache is enabled;
// settlement never consumes this service.
type LeaderboardService struct {
	Bids     LeaderboardBidStore
	Auctions SubmitAuctionStore
	Cache    cache.SnapshotCache // nil disables caching
	Logger   *slog.Logger
}

func NewLeaderboardService(bids LeaderboardBidStore, auctions SubmitAuctionStore, snapshots cache.SnapshotCache, logger *slog.Logger) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{Bids: bids, Auctions: auctions, Cache: snapshots, Logger: logger}
}

func (s *LeaderboardService) snapshot(ctx context.Context, enquiryID uuid.UUID) ([]ranking.Entry, error) {
	if s.Cache != nil {
		if entries, ok := s.Cache.Get(ctx, enquiryID); ok {
			return entries, nil
		}
	}
	bids, err := s.Bids.ListActive(ctx, enquiryID)
	if err != nil {
		return nil, err
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
	if s.Cache != nil {
		s.Cache.Set(ctx, enquiryID, entries)
	}
	return entries, nil
}

// GetLeaderboard returns the top-K view plus the requester's own bid and the
// minimum-bid thresholds. bidderID is optional; without it every slot is
// anonymous and MyBid is omitted.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, enquiryID uuid.UUID, bidderID *uuid.UUID) (*Leaderboard, error) {
	if _, err := s.Auctions.GetByEnquiryID(ctx, enquiryID); err != nil {
		return nil, err
	}
	entries, err := s.snapshot(ctx, enquiryID)
	if err != nil {
		return nil, err
	}

	lb := &Leaderboard{
		MinToEnter: ranking.MinToEnter(entries),
		MinToLead:  ranking.MinToLead(entries),
		TotalBids:  len(entries),
	}
	for i, e := range ranking.Top(entries) {
		lb.TopBids = append(lb.TopBids, LeaderboardSlot{
			Position: i + 1,
			Credits:  e.Credits,
			Mine:     bidderID != nil && e.BidderID == *bidderID,
		})
	}
	if bidderID != nil {
		for _, e := range entries {
			if e.BidderID != *bidderID {
				continue
			}
			mine := &MyBid{BidID: e.BidID, Credits: e.Credits}
			if rank, ok := ranking.RankOf(entries, e.BidID); ok {
				mine.Rank = &rank
			}
			lb.MyBid = mine
			break
		}
	}
	return lb, nil
}

// SimulateRank answers the "what-if" preview: the rank a new bid of the
// given amount would receive right now, or nil when it would miss the
// top-K. Nothing is persisted.
func (s *LeaderboardService) SimulateRank(ctx context.Context, enquiryID uuid.UUID, creditsUsed int) (*int, error) {
	if creditsUsed < 1 {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.Auctions.GetByEnquiryID(ctx, enquiryID); err != nil {
		return nil, err
	}
	entries, err := s.snapshot(ctx, enquiryID)
	if err != nil {
		return nil, err
	}
	if rank, ok := ranking.SimulateInsert(entries, creditsUsed); ok {
		return &rank, nil
	}
	return nil, nil
}
