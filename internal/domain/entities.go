package domain

import (
	"fmt"
	"time"
)

type AuctionStatus int

const (
	AuctionOpen AuctionStatus = iota
	AuctionEnded
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// CachedAuction is the cache-store representation of an auction's current
// winner. It is the sole system-of-record consulted during admission; the
// durable ledger may lag behind it.
type CachedAuction struct {
	Status   AuctionStatus `json:"status"`
	Amount   float64       `json:"amount"`
	BidderID string        `json:"bidder_id"`
	Sequence int64         `json:"sequence"`
}

// Bid is a transient submission. It is not persisted unless accepted.
type Bid struct {
	AuctionID   string
	BidderID    string
	Amount      float64
	SubmittedAt time.Time
}

// AcceptedBid is the unit handed to broadcast and to the persistence writer.
// (AuctionID, Sequence) uniquely identifies it in the ledger.
type AcceptedBid struct {
	AuctionID  string
	BidderID   string
	Amount     float64
	Sequence   int64
	AcceptedAt time.Time
}

func HighestBidKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:highestBid", auctionID)
}

func RateLimitKey(bidderID, auctionID string) string {
	return fmt.Sprintf("ratelimit:%s:%s", bidderID, auctionID)
}

func BlacklistKey(ip string) string {
	return fmt.Sprintf("blacklist:%s", ip)
}
