package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/models"
	"github.com/enquira/backend/internal/ranking"
)

// fakeCache is an always-hot in-memory stand-in for the Redis snapshot cache.
type fakeCache struct {
	entries map[uuid.UUID][]ranking.Entry
	hits    int
	misses  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID][]ranking.Entry)}
}

func (c *fakeCache) Get(_ context.Context, enquiryID uuid.UUID) ([]ranking.Entry, bool) {
	entries, ok := c.entries[enquiryID]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return entries, ok
}

func (c *fakeCache) Set(_ context.Context, enquiryID uuid.UUID, entries []ranking.Entry) {
	c.entries[enquiryID] = entries
}

type leaderboardFixture struct {
	store   *memStore
	svc     *LeaderboardService
	enquiry uuid.UUID
	bids    []*models.Bid
}

// newLeaderboardFixture seeds the five-bidder board used across these tests:
// 10, 10, 8, 5, 5 credits in submission order, so positions are 1..4 and the
// last bid sits just outside the board.
func newLeaderboardFixture(t *testing.T) *leaderboardFixture {
	t.Helper()
	store := newMemStore()
	enquiry := uuid.New()
	store.addAuction(&models.EnquiryAuction{EnquiryID: enquiry, OwnerID: uuid.New()})

	f := &leaderboardFixture{
		store:   store,
		svc:     NewLeaderboardService(store, store, nil, discardLogger()),
		enquiry: enquiry,
	}
	for _, credits := range []int{10, 10, 8, 5, 5} {
		bid := &models.Bid{
			ID:          uuid.New(),
			EnquiryID:   enquiry,
			BidderID:    uuid.New(),
			ProposalID:  uuid.New(),
			CreditsUsed: credits,
		}
		if err := store.InsertActive(context.Background(), bid); err != nil {
			t.Fatalf("seeding bid: %v", err)
		}
		f.bids = append(f.bids, bid)
	}
	return f
}

func TestGetLeaderboard_Anonymous(t *testing.T) {
	f := newLeaderboardFixture(t)

	lb, err := f.svc.GetLeaderboard(context.Background(), f.enquiry, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}

	if len(lb.TopBids) != ranking.TopK {
		t.Fatalf("top slots = %d, want %d", len(lb.TopBids), ranking.TopK)
	}
	wantCredits := []int{10, 10, 8, 5}
	for i, slot := range lb.TopBids {
		if slot.Position != i+1 || slot.Credits != wantCredits[i] {
			t.Errorf("slot %d = {pos %d, credits %d}, want {pos %d, credits %d}",
				i, slot.Position, slot.Credits, i+1, wantCredits[i])
		}
		if slot.Mine {
			t.Errorf("slot %d flagged mine on anonymous read", i)
		}
	}
	if lb.MyBid != nil {
		t.Error("anonymous read returned my_bid")
	}
	if lb.MinToEnter != 6 {
		t.Errorf("min_to_enter = %d, want 6", lb.MinToEnter)
	}
	if lb.MinToLead != 11 {
		t.Errorf("min_to_lead = %d, want 11", lb.MinToLead)
	}
	if lb.TotalBids != 5 {
		t.Errorf("total_bids = %d, want 5", lb.TotalBids)
	}
}

func TestGetLeaderboard_OwnBid(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()

	// Fourth bidder: on the board at position 4.
	fourth := f.bids[3]
	lb, err := f.svc.GetLeaderboard(ctx, f.enquiry, &fourth.BidderID)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if lb.MyBid == nil {
		t.Fatal("my_bid missing")
	}
	if lb.MyBid.BidID != fourth.ID || lb.MyBid.Credits != 5 {
		t.Errorf("my_bid = %+v, want bid %s with 5 credits", lb.MyBid, fourth.ID)
	}
	if lb.MyBid.Rank == nil || *lb.MyBid.Rank != 4 {
		t.Errorf("my rank = %v, want 4", lb.MyBid.Rank)
	}
	if !lb.TopBids[3].Mine {
		t.Error("slot 4 not flagged mine")
	}
	for i := 0; i < 3; i++ {
		if lb.TopBids[i].Mine {
			t.Errorf("slot %d wrongly flagged mine", i+1)
		}
	}

	// Fifth bidder: tied on credits but later, so off the board.
	fifth := f.bids[4]
	lb, err = f.svc.GetLeaderboard(ctx, f.enquiry, &fifth.BidderID)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if lb.MyBid == nil {
		t.Fatal("my_bid missing for off-board bidder")
	}
	if lb.MyBid.Rank != nil {
		t.Errorf("off-board rank = %d, want omitted", *lb.MyBid.Rank)
	}
	for i, slot := range lb.TopBids {
		if slot.Mine {
			t.Errorf("slot %d flagged mine for off-board bidder", i+1)
		}
	}
}

func TestGetLeaderboard_UnknownEnquiry(t *testing.T) {
	f := newLeaderboardFixture(t)
	if _, err := f.svc.GetLeaderboard(context.Background(), uuid.New(), nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetLeaderboard_CacheServesStaleSnapshot(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()
	snapshots := newFakeCache()
	f.svc.Cache = snapshots

	first, err := f.svc.GetLeaderboard(ctx, f.enquiry, nil)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if snapshots.misses != 1 {
		t.Fatalf("cache misses = %d, want 1", snapshots.misses)
	}

	// Board changes under the cache; within the TTL the view stays stale.
	newLeader := &models.Bid{
		ID: uuid.New(), EnquiryID: f.enquiry, BidderID: uuid.New(),
		ProposalID: uuid.New(), CreditsUsed: 99,
	}
	if err := f.store.InsertActive(ctx, newLeader); err != nil {
		t.Fatalf("inserting new leader: %v", err)
	}

	second, err := f.svc.GetLeaderboard(ctx, f.enquiry, nil)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if snapshots.hits != 1 {
		t.Errorf("cache hits = %d, want 1", snapshots.hits)
	}
	if second.TopBids[0].Credits != first.TopBids[0].Credits {
		t.Errorf("cached read saw the new leader (%d credits)", second.TopBids[0].Credits)
	}
	if second.TotalBids != first.TotalBids {
		t.Errorf("cached total_bids = %d, want stale %d", second.TotalBids, first.TotalBids)
	}
}

func TestSimulateRank(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()

	cases := []struct {
		credits int
		want    *int
	}{
		{5, nil},           // ties with position 4 but loses the time tie-break
		{6, intPtr(4)},     // min_to_enter
		{10, intPtr(3)},    // ties with the leaders, ranks below both
		{11, intPtr(1)},    // min_to_lead
		{10000, intPtr(1)}, // overshooting still caps at 1
	}
	for _, tc := range cases {
		got, err := f.svc.SimulateRank(ctx, f.enquiry, tc.credits)
		if err != nil {
			t.Fatalf("SimulateRank(%d): %v", tc.credits, err)
		}
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("SimulateRank(%d) = %d, want no rank", tc.credits, *got)
		case tc.want != nil && got == nil:
			t.Errorf("SimulateRank(%d) = no rank, want %d", tc.credits, *tc.want)
		case tc.want != nil && *got != *tc.want:
			t.Errorf("SimulateRank(%d) = %d, want %d", tc.credits, *got, *tc.want)
		}
	}

	if _, err := f.svc.SimulateRank(ctx, f.enquiry, 0); !errors.Is(err, models.ErrInvalidAmount) {
		t.Errorf("zero credits: err = %v, want ErrInvalidAmount", err)
	}
}

func intPtr(v int) *int { return &v }
