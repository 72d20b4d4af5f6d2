package router

import (
	"net/http"

	"github.com/enquira/backend/internal/handlers"
)

// Middleware bundles the chains the routes need.
type Middleware struct {
	Identity         func(http.Handler) http.Handler
	OptionalIdentity func(http.Handler) http.Handler
	BidLimit         func(http.Handler) http.Handler
}

// New returns the engine's HTTP surface.
func New(bids *handlers.BidHandler, enquiries *handlers.EnquiryHandler, wallet *handlers.WalletHandler, mw Middleware) http.Handler {
	mux := http.NewServeMux()

	// Bidder surface.
	// POST bids — Identity -> BidLimit -> SubmitBid
	mux.Handle("POST /v1/enquiries/{id}/bids", mw.Identity(mw.BidLimit(http.HandlerFunc(bids.SubmitBid))))
	mux.Handle("GET /v1/enquiries/{id}/leaderboard", mw.OptionalIdentity(http.HandlerFunc(bids.GetLeaderboard)))
	mux.HandleFunc("GET /v1/enquiries/{id}/simulate", bids.Simulate)
	mux.HandleFunc("GET /v1/enquiries/{id}/bids", bids.ListBids)

	// Enquiry-service surface: auction lifecycle and settlement hooks,
	// called service-to-service by the external enquiry/proposal system.
	mux.HandleFunc("POST /v1/enquiries", enquiries.Register)
	mux.HandleFunc("POST /v1/enquiries/{id}/schedule-close", enquiries.ScheduleClose)
	mux.HandleFunc("POST /v1/enquiries/{id}/interactions", enquiries.Interact)
	mux.HandleFunc("POST /v1/enquiries/{id}/close", enquiries.Close)
	mux.HandleFunc("GET /v1/enquiries/{id}/interactions", enquiries.ListInteractions)

	// Wallet surface. Provisioning is service-to-service, reads are
	// gateway-authenticated.
	mux.HandleFunc("POST /v1/accounts", wallet.CreateAccount)
	mux.Handle("GET /v1/account/me", mw.Identity(http.HandlerFunc(wallet.GetMe)))
	mux.Handle("GET /v1/account/ledger", mw.Identity(http.HandlerFunc(wallet.ListLedger)))

	return mux
}
