package services

import (
	"context"
	"testing"
	"time"

	"live-auction/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBid(auctionID string, sequence int64, amount float64) *domain.AcceptedBid {
	return &domain.AcceptedBid{
		AuctionID:  auctionID,
		BidderID:   "U1",
		Amount:     amount,
		Sequence:   sequence,
		AcceptedAt: time.Now(),
	}
}

func TestPersistenceWriter_DrainsQueue(t *testing.T) {
	ledger := newRecordingLedger()
	writer := NewPersistenceWriter(ledger, 16, 3, time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	writer.Start(ctx)

	require.NoError(t, writer.Enqueue(testBid("A1", 1, 100)))
	require.NoError(t, writer.Enqueue(testBid("A1", 2, 150)))

	require.Eventually(t, func() bool {
		return ledger.rowCount() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	writer.Stop()
}

func TestPersistenceWriter_DuplicateEnqueueIsIdempotent(t *testing.T) {
	ledger := newRecordingLedger()
	writer := NewPersistenceWriter(ledger, 16, 3, time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	writer.Start(ctx)

	require.NoError(t, writer.Enqueue(testBid("A1", 1, 100)))
	require.NoError(t, writer.Enqueue(testBid("A1", 1, 100)))

	require.Eventually(t, func() bool {
		return ledger.appendCalls() >= 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, ledger.rowCount(), "same (auction, sequence) must yield one durable record")

	cancel()
	writer.Stop()
}

func TestPersistenceWriter_BacklogFull(t *testing.T) {
	ledger := newRecordingLedger()
	// Writer not started: the queue cannot drain.
	writer := NewPersistenceWriter(ledger, 1, 3, time.Millisecond, nopLogger{})

	require.NoError(t, writer.Enqueue(testBid("A1", 1, 100)))

	err := writer.Enqueue(testBid("A1", 2, 150))
	assert.ErrorIs(t, err, domain.ErrBacklogFull)
}

func TestPersistenceWriter_RetriesTransientFailure(t *testing.T) {
	ledger := newRecordingLedger()
	ledger.failTimes = 2
	writer := NewPersistenceWriter(ledger, 16, 3, time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	writer.Start(ctx)

	require.NoError(t, writer.Enqueue(testBid("A1", 1, 100)))

	require.Eventually(t, func() bool {
		return ledger.rowCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, writer.FailedCount())

	cancel()
	writer.Stop()
}

func TestPersistenceWriter_ExhaustedRetriesGoToReconciliation(t *testing.T) {
	ledger := newRecordingLedger()
	ledger.failAll = true
	writer := NewPersistenceWriter(ledger, 16, 2, time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	writer.Start(ctx)

	bid := testBid("A1", 1, 100)
	require.NoError(t, writer.Enqueue(bid))

	require.Eventually(t, func() bool {
		return writer.FailedCount() == 1
	}, time.Second, 5*time.Millisecond)

	failed := writer.TakeFailed()
	require.Len(t, failed, 1)
	assert.Equal(t, bid.Sequence, failed[0].Sequence)
	assert.Equal(t, 0, writer.FailedCount())

	cancel()
	writer.Stop()
}
