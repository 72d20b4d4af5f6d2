package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid status enum. A bid is created ACTIVE and is finalized exactly once to
// CHARGED or REFUNDED; both terminal states are immutable.
const (
	BidStatusActive   = "ACTIVE"
	BidStatusCharged  = "CHARGED"
	BidStatusRefunded = "REFUNDED"
)

// settled_by values recorded for audit when a bid leaves ACTIVE.
const (
	SettledByInteraction = "interaction"
	SettledByClosure     = "closure"
)

type Bid struct {
	ID          uuid.UUID  `json:"id"`
	EnquiryID   uuid.UUID  `json:"enquiry_id"`
	BidderID    uuid.UUID  `json:"bidder_id"`
	ProposalID  uuid.UUID  `json:"proposal_id"`
	CreditsUsed int        `json:"credits_used"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	SettledBy   *string    `json:"settled_by,omitempty"`
	LedgerTxID  *uuid.UUID `json:"ledger_tx_id,omitempty"`
}

// Terminal reports whether the bid has been finalized.
func (b *Bid) Terminal() bool {
	return b.Status != BidStatusActive
}
