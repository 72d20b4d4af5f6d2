package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ctxBidAmountKey contextKey = "parsed_bid_amount"

// parsedBid is stored in context so the handler can read the amount without
// re-parsing the body.
type parsedBid struct {
	CreditsUsed int `json:"credits_used"`
}

// BidAmountFromCtx returns the amount parsed by BidLimit, or 0 if not set.
func BidAmountFromCtx(ctx context.Context) int {
	if b, ok := ctx.Value(ctxBidAmountKey).(*parsedBid); ok {
		return b.CreditsUsed
	}
	return 0
}

// BidLimit validates per-bid and daily spending caps against the account set
// by Identity. Reads the body to extract "credits_used", then replaces
// r.Body so downstream handlers can re-read it. The daily figure counts
// today's active reservations, since credits only move at settlement.
func BidLimit(pool *pgxpool.Pool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := AccountFromCtx(r.Context())
			if acc == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedBid
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if peek.CreditsUsed < 1 {
				http.Error(w, `{"error":"credits_used must be at least 1"}`, http.StatusBadRequest)
				return
			}

			if acc.MaxPerBid != nil && peek.CreditsUsed > *acc.MaxPerBid {
				http.Error(w, fmt.Sprintf(`{"error":"bid %d exceeds per-bid limit %d"}`, peek.CreditsUsed, *acc.MaxPerBid), http.StatusForbidden)
				return
			}

			if acc.MaxPerDay != nil {
				reserved, err := dailyReservedFn(r.Context(), pool, acc.ID)
				if err != nil {
					http.Error(w, `{"error":"failed to check daily spend"}`, http.StatusInternalServerError)
					return
				}
				if reserved+peek.CreditsUsed > *acc.MaxPerDay {
					http.Error(w, fmt.Sprintf(`{"error":"reserved %d + bid %d exceeds daily limit %d"}`, reserved, peek.CreditsUsed, *acc.MaxPerDay), http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxBidAmountKey, &peek)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// dailyReservedFn is the function used to compute today's reserved credits.
// Tests can replace this to avoid hitting a real database.
var dailyReservedFn = defaultDailyReserved

// defaultDailyReserved sums credits_used over the bidder's bids placed today
// (UTC) that are still ACTIVE or ended CHARGED; refunded bids cost nothing.
func defaultDailyReserved(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID) (int, error) {
	var total int
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(credits_used), 0)
		FROM bids
		WHERE bidder_id = $1 AND status IN ('ACTIVE', 'CHARGED')
		  AND submitted_at >= CURRENT_DATE
	`, accountID).Scan(&total)
	return total, err
}
