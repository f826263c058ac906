package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"live-auction/internal/domain"

	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}

// fakeConn records everything sent to it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	messages []interface{}
	sendErr  error
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return c.sendErr
	}
	c.messages = append(c.messages, message)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) sent() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]interface{}, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendErr = err
}

// failingCache errors on every operation, for fail-closed tests.
type failingCache struct{}

var errCacheDown = errors.New("cache unreachable")

func (failingCache) Get(ctx context.Context, key string) (string, int64, error) {
	return "", 0, errCacheDown
}

func (failingCache) CompareAndSet(ctx context.Context, key string, expectedVersion int64, newValue string, ttl time.Duration) (bool, error) {
	return false, errCacheDown
}

func (failingCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errCacheDown
}

func (failingCache) Delete(ctx context.Context, key string) error {
	return errCacheDown
}

// contestedCache simulates an auction so hot that every CAS loses its race.
type contestedCache struct{}

func (contestedCache) Get(ctx context.Context, key string) (string, int64, error) {
	return "", 0, nil
}

func (contestedCache) CompareAndSet(ctx context.Context, key string, expectedVersion int64, newValue string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (contestedCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}

func (contestedCache) Delete(ctx context.Context, key string) error {
	return nil
}

// recordingLedger is an in-memory DurableStore. Appends are idempotent on
// (auction, sequence) like the MySQL implementation; failTimes makes the
// first N appends fail to exercise retry paths.
type recordingLedger struct {
	mu        sync.Mutex
	rows      map[string]*domain.AcceptedBid
	appends   int
	failTimes int
	failAll   bool
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{rows: make(map[string]*domain.AcceptedBid)}
}

func ledgerKey(auctionID string, sequence int64) string {
	return fmt.Sprintf("%s:%d", auctionID, sequence)
}

func (l *recordingLedger) AppendBid(ctx context.Context, bid *domain.AcceptedBid) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appends++
	if l.failAll {
		return errors.New("ledger unavailable")
	}
	if l.failTimes > 0 {
		l.failTimes--
		return errors.New("ledger transient failure")
	}

	key := ledgerKey(bid.AuctionID, bid.Sequence)
	if _, exists := l.rows[key]; !exists {
		l.rows[key] = bid
	}
	return nil
}

func (l *recordingLedger) MaxBidAmount(ctx context.Context, auctionID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	max := 0.0
	for _, bid := range l.rows {
		if bid.AuctionID == auctionID && bid.Amount > max {
			max = bid.Amount
		}
	}
	return max, nil
}

func (l *recordingLedger) BidHistory(ctx context.Context, auctionID string) ([]*domain.AcceptedBid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var bids []*domain.AcceptedBid
	for _, bid := range l.rows {
		if bid.AuctionID == auctionID {
			bids = append(bids, bid)
		}
	}
	return bids, nil
}

func (l *recordingLedger) rowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.rows)
}

func (l *recordingLedger) appendCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.appends
}

// fakeLimiter lets everything through (or nothing, or fails) without waiting
// on real windows.
type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(ctx context.Context, bidderID, auctionID string) (bool, error) {
	return f.allow, f.err
}

func readCachedAuction(t *testing.T, cache domain.CacheStore, auctionID string) domain.CachedAuction {
	t.Helper()

	value, _, err := cache.Get(context.Background(), domain.HighestBidKey(auctionID))
	require.NoError(t, err)
	require.NotEmpty(t, value)

	var cached domain.CachedAuction
	require.NoError(t, json.Unmarshal([]byte(value), &cached))
	return cached
}

func endAuctionInCache(t *testing.T, cache domain.CacheStore, auctionID string) {
	t.Helper()

	current := readCachedAuction(t, cache, auctionID)
	current.Status = domain.AuctionEnded

	encoded, err := json.Marshal(current)
	require.NoError(t, err)
	require.NoError(t, cache.SetWithTTL(context.Background(),
		domain.HighestBidKey(auctionID), string(encoded), 0))
}
