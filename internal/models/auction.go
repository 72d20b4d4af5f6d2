package models

import (
	"time"

	"github.com/google/uuid"
)

// EnquiryAuction tracks the bidding window for one enquiry. ClosesAt is null
// until the enquiry service schedules closure; ClosedAt is set exactly once
// when the closure trigger fires.
type EnquiryAuction struct {
	EnquiryID uuid.UUID  `json:"enquiry_id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	ClosesAt  *time.Time `json:"closes_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Closed reports whether the auction no longer accepts bids at the given
// instant. A scheduled close time that has passed counts as closed even if
// the closure job has not run yet.
func (a *EnquiryAuction) Closed(at time.Time) bool {
	if a.ClosedAt != nil {
		return true
	}
	return a.ClosesAt != nil && !a.ClosesAt.After(at)
}

// Interaction records the enquiry owner engaging with one bidder's proposal.
type Interaction struct {
	ID         uuid.UUID `json:"id"`
	EnquiryID  uuid.UUID `json:"enquiry_id"`
	ProposalID uuid.UUID `json:"proposal_id"`
	BidderID   uuid.UUID `json:"bidder_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
