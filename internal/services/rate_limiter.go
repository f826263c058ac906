package services

import (
	"context"
	"encoding/json"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

type rateLimitState struct {
	WindowStart int64 `json:"window_start"` // unix millis
	Count       int   `json:"count"`
}

// WindowRateLimiter enforces a fixed window of one bid attempt per
// (bidder, auction) key, backed by the cache store. Calls for the same key
// are linearized through the store's compare-and-set: two racing attempts in
// one window cannot both be allowed. Any store failure rejects the attempt.
type WindowRateLimiter struct {
	cache  domain.CacheStore
	window time.Duration
	log    logger.Logger
}

func NewWindowRateLimiter(cache domain.CacheStore, window time.Duration, log logger.Logger) *WindowRateLimiter {
	return &WindowRateLimiter{
		cache:  cache,
		window: window,
		log:    log,
	}
}

func (l *WindowRateLimiter) Allow(ctx context.Context, bidderID, auctionID string) (bool, error) {
	key := domain.RateLimitKey(bidderID, auctionID)
	now := time.Now()

	value, version, err := l.cache.Get(ctx, key)
	if err != nil {
		return false, err
	}

	if value != "" {
		var state rateLimitState
		if err := json.Unmarshal([]byte(value), &state); err != nil {
			l.log.Error("Corrupt rate limit state", "key", key, "error", err)
			return false, err
		}

		windowStart := time.UnixMilli(state.WindowStart)
		if now.Sub(windowStart) < l.window && state.Count >= 1 {
			return false, nil
		}
	}

	next, err := json.Marshal(rateLimitState{WindowStart: now.UnixMilli(), Count: 1})
	if err != nil {
		return false, err
	}

	// The entry outlives the window slightly so a fresh window always starts
	// from a consistent read; expiry handles cleanup.
	ok, err := l.cache.CompareAndSet(ctx, key, version, string(next), l.window*2)
	if err != nil {
		return false, err
	}
	if !ok {
		// Lost the race to another attempt in the same window.
		return false, nil
	}

	return true, nil
}
