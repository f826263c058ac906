package services

import (
	"context"
	"encoding/json"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// AdmissionEngine decides exactly one winner per bid race. The cache store's
// compare-and-set is the sole serialization point: the engine reads the
// current highest bid with its version, validates, and writes conditioned on
// that version. A lost race re-reads and retries within a fixed budget, so
// admission latency stays bounded on hot auctions.
type AdmissionEngine struct {
	cache       domain.CacheStore
	retryBudget int
	log         logger.Logger
}

func NewAdmissionEngine(cache domain.CacheStore, retryBudget int, log logger.Logger) *AdmissionEngine {
	if retryBudget <= 0 {
		retryBudget = 5
	}
	return &AdmissionEngine{
		cache:       cache,
		retryBudget: retryBudget,
		log:         log,
	}
}

// TryAccept admits the bid or returns one of the domain rejection errors
// (ErrAuctionClosed, ErrBidTooLow, ErrContentionExceeded). Store failures are
// returned as-is; the caller must treat them as a rejection, never as an
// acceptance.
func (e *AdmissionEngine) TryAccept(ctx context.Context, auctionID, bidderID string, amount float64) (*domain.AcceptedBid, error) {
	key := domain.HighestBidKey(auctionID)

	for attempt := 0; attempt < e.retryBudget; attempt++ {
		value, version, err := e.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		// Absent entry: the auction is created implicitly by its first bid.
		current := domain.CachedAuction{Status: domain.AuctionOpen}
		if value != "" {
			if err := json.Unmarshal([]byte(value), &current); err != nil {
				return nil, err
			}
		}

		if current.Status == domain.AuctionEnded {
			return nil, domain.ErrAuctionClosed
		}

		if amount <= current.Amount {
			return nil, domain.ErrBidTooLow
		}

		next := domain.CachedAuction{
			Status:   domain.AuctionOpen,
			Amount:   amount,
			BidderID: bidderID,
			Sequence: current.Sequence + 1,
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}

		ok, err := e.cache.CompareAndSet(ctx, key, version, string(encoded), 0)
		if err != nil {
			return nil, err
		}
		if ok {
			return &domain.AcceptedBid{
				AuctionID:  auctionID,
				BidderID:   bidderID,
				Amount:     amount,
				Sequence:   next.Sequence,
				AcceptedAt: time.Now(),
			}, nil
		}

		// Another bid committed between our read and write; re-validate
		// against the new state.
		e.log.Debug("Bid CAS lost race", "auction_id", auctionID, "attempt", attempt+1)
	}

	return nil, domain.ErrContentionExceeded
}
