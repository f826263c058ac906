package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// AuctionCoordinator orchestrates the externally visible events: join, place
// bid, auction end. Each auction is a state machine Open -> Ended with no way
// back; accepted bids advance the sequence, the end event is terminal.
//
// Admission and the following broadcast run under a per-auction lock, so the
// fan-out order seen by every room member equals the admission order.
// Different auctions proceed fully in parallel.
type AuctionCoordinator struct {
	limiter     domain.RateLimiter
	admission   *AdmissionEngine
	rooms       domain.RoomManager
	writer      *PersistenceWriter
	cache       domain.CacheStore
	snapshotTTL time.Duration
	log         logger.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewAuctionCoordinator(
	limiter domain.RateLimiter,
	admission *AdmissionEngine,
	rooms domain.RoomManager,
	writer *PersistenceWriter,
	cache domain.CacheStore,
	snapshotTTL time.Duration,
	log logger.Logger,
) *AuctionCoordinator {
	return &AuctionCoordinator{
		limiter:     limiter,
		admission:   admission,
		rooms:       rooms,
		writer:      writer,
		cache:       cache,
		snapshotTTL: snapshotTTL,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
	}
}

// HandleJoin registers the connection in the auction's room. Ended auctions
// still accept late joins, but the joiner only receives the closed-state
// snapshot; the room is not revived.
func (c *AuctionCoordinator) HandleJoin(ctx context.Context, conn domain.Connection, data domain.JoinData) {
	if data.AuctionID == "" {
		c.reply(conn, domain.ErrorReply{Error: "Auction ID is required"})
		return
	}

	if err := c.rooms.Join(data.AuctionID, conn); err != nil {
		c.reply(conn, domain.ErrorReply{Error: err.Error()})
		return
	}

	c.reply(conn, domain.InfoReply{Message: fmt.Sprintf("Joined auction %s", data.AuctionID)})

	current, err := c.currentState(ctx, data.AuctionID)
	if err != nil {
		c.log.Warn("Failed to read auction snapshot on join",
			"auction_id", data.AuctionID, "error", err)
		return
	}

	if current != nil && current.Status == domain.AuctionEnded {
		if current.Sequence > 0 {
			c.reply(conn, domain.OutboundMessage{
				Event: domain.EventNewBid,
				Data: domain.NewBidData{
					AuctionID: data.AuctionID,
					BidderID:  current.BidderID,
					Amount:    current.Amount,
					Sequence:  current.Sequence,
				},
			})
		}
		c.reply(conn, domain.OutboundMessage{
			Event: domain.EventAuctionEnd,
			Data:  domain.AuctionEndData{AuctionID: data.AuctionID},
		})
	}
}

// HandlePlaceBid runs the admission pipeline: rate limit, CAS admission,
// synchronous broadcast, asynchronous persistence. Rejections go to the
// originator only and are never broadcast.
func (c *AuctionCoordinator) HandlePlaceBid(ctx context.Context, conn domain.Connection, data domain.PlaceBidData) {
	if data.AuctionID == "" || data.BidderID == "" || data.Amount <= 0 {
		c.reply(conn, domain.ErrorReply{Error: "Auction ID, Bidder ID, and Amount are required"})
		return
	}

	allowed, err := c.limiter.Allow(ctx, data.BidderID, data.AuctionID)
	if err != nil {
		c.log.Error("Rate limiter unavailable, rejecting bid",
			"auction_id", data.AuctionID, "bidder_id", data.BidderID, "error", err)
		c.reply(conn, domain.ErrorReply{Error: "Bid could not be processed"})
		return
	}
	if !allowed {
		c.reply(conn, domain.ErrorReply{Error: "Too many bids placed. Please wait a moment."})
		return
	}

	lock := c.auctionLock(data.AuctionID)
	lock.Lock()
	accepted, err := c.admission.TryAccept(ctx, data.AuctionID, data.BidderID, data.Amount)
	if err == nil {
		// Broadcast inside the same admission step so members observe bids
		// in sequence order.
		c.rooms.Broadcast(data.AuctionID, domain.OutboundMessage{
			Event: domain.EventNewBid,
			Data: domain.NewBidData{
				AuctionID: accepted.AuctionID,
				BidderID:  accepted.BidderID,
				Amount:    accepted.Amount,
				Sequence:  accepted.Sequence,
			},
		})
	}
	lock.Unlock()

	if err != nil {
		c.rejectBid(conn, data, err)
		return
	}

	if err := c.writer.Enqueue(accepted); err != nil {
		// Non-fatal: admission and broadcast already happened, only the
		// audit trail is delayed.
		c.log.Warn("Persistence backlog full, bid record delayed",
			"auction_id", accepted.AuctionID, "sequence", accepted.Sequence)
		c.writer.RecordFailure(accepted)
	}

	c.log.Info("Bid accepted", "auction_id", accepted.AuctionID,
		"bidder_id", accepted.BidderID, "amount", accepted.Amount,
		"sequence", accepted.Sequence)
}

// HandleAuctionEnd transitions the auction to Ended, broadcasts the terminal
// message and clears the room. The final snapshot stays in the cache under a
// TTL for late joiners, then the auction state is reaped by expiry. conn may
// be nil when the end is triggered administratively.
func (c *AuctionCoordinator) HandleAuctionEnd(ctx context.Context, conn domain.Connection, data domain.AuctionEndData) {
	if data.AuctionID == "" {
		c.reply(conn, domain.ErrorReply{Error: "Auction ID is required"})
		return
	}

	lock := c.auctionLock(data.AuctionID)
	lock.Lock()
	ended, err := c.markEnded(ctx, data.AuctionID)
	if err == nil && ended {
		c.rooms.EndAuction(data.AuctionID, domain.OutboundMessage{
			Event: domain.EventAuctionEnd,
			Data:  domain.AuctionEndData{AuctionID: data.AuctionID},
		})
	}
	lock.Unlock()

	if err != nil {
		c.log.Error("Failed to end auction", "auction_id", data.AuctionID, "error", err)
		c.reply(conn, domain.ErrorReply{Error: "Failed to end auction"})
		return
	}

	if !ended {
		c.reply(conn, domain.InfoReply{Message: fmt.Sprintf("Auction %s already ended", data.AuctionID)})
		return
	}

	c.log.Info("Auction ended", "auction_id", data.AuctionID)
	c.reply(conn, domain.InfoReply{Message: fmt.Sprintf("Auction %s ended", data.AuctionID)})
}

// HandleLeave removes a closed connection from its room. Already-admitted
// bids are unaffected.
func (c *AuctionCoordinator) HandleLeave(conn domain.Connection) {
	c.rooms.Leave(conn)
}

// markEnded flips the cached status to Ended at the current version, keeping
// the winning bid intact. Returns false when the auction was already ended.
func (c *AuctionCoordinator) markEnded(ctx context.Context, auctionID string) (bool, error) {
	key := domain.HighestBidKey(auctionID)

	for attempt := 0; attempt < 5; attempt++ {
		value, version, err := c.cache.Get(ctx, key)
		if err != nil {
			return false, err
		}

		current := domain.CachedAuction{Status: domain.AuctionOpen}
		if value != "" {
			if err := json.Unmarshal([]byte(value), &current); err != nil {
				return false, err
			}
		}

		if current.Status == domain.AuctionEnded {
			return false, nil
		}

		current.Status = domain.AuctionEnded
		encoded, err := json.Marshal(current)
		if err != nil {
			return false, err
		}

		ok, err := c.cache.CompareAndSet(ctx, key, version, string(encoded), c.snapshotTTL)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		// A bid slipped in between read and write; re-read and end on top of it.
	}

	return false, domain.ErrContentionExceeded
}

func (c *AuctionCoordinator) currentState(ctx context.Context, auctionID string) (*domain.CachedAuction, error) {
	value, _, err := c.cache.Get(ctx, domain.HighestBidKey(auctionID))
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var current domain.CachedAuction
	if err := json.Unmarshal([]byte(value), &current); err != nil {
		return nil, err
	}
	return &current, nil
}

func (c *AuctionCoordinator) rejectBid(conn domain.Connection, data domain.PlaceBidData, err error) {
	var message string
	switch {
	case errors.Is(err, domain.ErrAuctionClosed):
		message = "Auction has ended"
	case errors.Is(err, domain.ErrBidTooLow):
		message = "Bid must be higher than the current highest bid"
	case errors.Is(err, domain.ErrContentionExceeded):
		message = "Auction is busy, please try again"
	default:
		c.log.Error("Bid admission failed", "auction_id", data.AuctionID,
			"bidder_id", data.BidderID, "error", err)
		message = "Bid could not be processed"
	}

	c.reply(conn, domain.ErrorReply{Error: message})
}

func (c *AuctionCoordinator) reply(conn domain.Connection, message interface{}) {
	if conn == nil {
		return
	}
	if err := conn.Send(message); err != nil {
		c.log.Debug("Failed to send reply", "conn_id", conn.ID(), "error", err)
	}
}

func (c *AuctionCoordinator) auctionLock(auctionID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	lock, ok := c.locks[auctionID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[auctionID] = lock
	}
	return lock
}
