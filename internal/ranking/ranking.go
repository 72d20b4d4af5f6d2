// Package ranking orders the active bids of one enquiry and answers
// "what-if" insertion questions. It is pure: no I/O, no clock, no
// randomness. Both the leaderboard view and the settlement engine go
// through this package so display and payout can never disagree.
package ranking

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TopK is the number of boosted slots an enquiry pays out at closure.
const TopK = 4

// Entry is the projection of a bid that ranking needs.
type Entry struct {
	BidID       uuid.UUID `json:"bid_id"`
	BidderID    uuid.UUID `json:"bidder_id"`
	Credits     int       `json:"credits"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Order returns a new slice sorted by credits descending, ties broken by
// submission time ascending (earlier submission wins). Bid ID is the final
// tie-break so the order is fully deterministic.
func Order(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Credits != out[j].Credits {
			return out[i].Credits > out[j].Credits
		}
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].BidID.String() < out[j].BidID.String()
	})
	return out
}

// Top returns the first TopK entries of the ordering.
func Top(entries []Entry) []Entry {
	ordered := Order(entries)
	if len(ordered) > TopK {
		ordered = ordered[:TopK]
	}
	return ordered
}

// RankOf returns the 1-based rank of an existing bid, or false when the bid
// is absent or ranks below TopK.
func RankOf(entries []Entry, bidID uuid.UUID) (int, bool) {
	for i, e := range Order(entries) {
		if e.BidID == bidID {
			if i >= TopK {
				return 0, false
			}
			return i + 1, true
		}
	}
	return 0, false
}

// SimulateInsert computes the rank a new, not-yet-persisted bid of the given
// amount would receive if submitted now. The candidate loses every amount
// tie (it would carry the latest submission time), so its rank is one more
// than the number of existing entries with credits >= candidate. Returns
// false when that rank falls below TopK.
func SimulateInsert(entries []Entry, candidate int) (int, bool) {
	rank := 1
	for _, e := range entries {
		if e.Credits >= candidate {
			rank++
		}
	}
	if rank > TopK {
		return 0, false
	}
	return rank, true
}

// MinToEnter is the smallest amount guaranteed a rank <= TopK: one credit
// more than the TopK-th entry, or 1 while the board is under-full.
func MinToEnter(entries []Entry) int {
	if len(entries) < TopK {
		return 1
	}
	return Order(entries)[TopK-1].Credits + 1
}

// MinToLead is one credit more than the current leader, or 1 on an empty
// board.
func MinToLead(entries []Entry) int {
	if len(entries) == 0 {
		return 1
	}
	return Order(entries)[0].Credits + 1
}
