package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a bidder's credit wallet. Balances only move at settlement;
// a placed bid is a reservation of intent, not a debit.
type Account struct {
	ID            uuid.UUID `json:"id"`
	DisplayName   string    `json:"display_name"`
	CreditBalance int       `json:"credit_balance"`
	MaxPerBid     *int      `json:"max_per_bid,omitempty"`
	MaxPerDay     *int      `json:"max_per_day,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
