// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package exchange

import "errors"

// Error taxonomy for the exchange core. Validation errors are terminal and
// reported to the caller as-is; ErrStorageUnavailable is the only condition a
// caller may retry.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBidTooLow          = errors.New("bid amount below floor price")
	ErrAuctionClosed      = errors.New("auction is closed")
	ErrAuctionExpired     = errors.New("auction expired before bid was accepted")
	ErrInvalidState       = errors.New("invalid state for this operation")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
