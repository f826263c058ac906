package domain

import "errors"

// Business rejections. Reported to the originating connection only; auction
// state is unchanged.
var (
	ErrAuctionClosed      = errors.New("auction is closed")
	ErrBidTooLow          = errors.New("bid must be higher than the current highest bid")
	ErrContentionExceeded = errors.New("bid contention retry budget exceeded")
	ErrRateLimited        = errors.New("too many bids placed")
)

// ErrBacklogFull signals that the persistence queue is full. The bid has
// already been admitted and broadcast; only the audit trail is delayed.
var ErrBacklogFull = errors.New("persistence backlog full")
