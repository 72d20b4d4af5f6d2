package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet ledger entry_type values. top_up rows are written by the external
// checkout surface; this engine only writes bid_charge.
const (
	WalletEntryBidCharge = "bid_charge"
	WalletEntryTopUp     = "top_up"
)

type WalletEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	BidID        *uuid.UUID `json:"bid_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
