package models

import "errors"

// Failure taxonomy for the bid engine. Handlers map these to HTTP status
// codes; services wrap unexpected errors with %w instead.
var (
	ErrInvalidAmount       = errors.New("bid amount must be at least 1 credit")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrDuplicateBid        = errors.New("bidder already has an active bid on this enquiry")
	ErrAuctionClosed       = errors.New("enquiry auction is closed")
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("lost a concurrent update race")
)
