package domain

import (
	"context"
	"time"
)

// CacheStore is the versioned key/value store backing admission, rate
// limiting and the connection blacklist. An absent key reads as ("", 0, nil);
// a CompareAndSet with expectedVersion 0 creates the entry. The store
// advances the version on every successful write. A ttl of 0 means no
// expiry; when non-zero it is applied atomically with the write.
type CacheStore interface {
	Get(ctx context.Context, key string) (value string, version int64, err error)
	CompareAndSet(ctx context.Context, key string, expectedVersion int64, newValue string, ttl time.Duration) (bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DurableStore is the append-only bid ledger. AppendBid is idempotent on
// (AuctionID, Sequence): a second write for the same key is a no-op.
type DurableStore interface {
	AppendBid(ctx context.Context, bid *AcceptedBid) error
	MaxBidAmount(ctx context.Context, auctionID string) (float64, error)
	BidHistory(ctx context.Context, auctionID string) ([]*AcceptedBid, error)
}

// Connection is the transport-agnostic handle for a connected bidder.
type Connection interface {
	Send(message interface{}) error
	Close() error
	ID() string
}

// RateLimiter throttles bid attempts per (bidder, auction) key. It must fail
// closed: any store error rejects the attempt.
type RateLimiter interface {
	Allow(ctx context.Context, bidderID, auctionID string) (bool, error)
}

// RoomManager tracks which connections belong to which auction and performs
// fan-out. Broadcast failures to individual recipients are swallowed.
type RoomManager interface {
	Join(auctionID string, conn Connection) error
	Leave(conn Connection)
	Broadcast(auctionID string, message interface{})
	EndAuction(auctionID string, message interface{})
}
