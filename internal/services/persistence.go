package services

import (
	"context"
	"sync"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// PersistenceWriter drains accepted bids into the durable ledger without
// blocking the admission path. The bounded queue is the only backpressure
// point: a full queue rejects the enqueue with ErrBacklogFull and the
// coordinator surfaces it as a warning, since the bid itself has already been
// admitted and broadcast. Writes that exhaust their retries land on the
// reconciliation backlog instead of being dropped.
type PersistenceWriter struct {
	store       domain.DurableStore
	queue       chan *domain.AcceptedBid
	maxRetries  int
	baseBackoff time.Duration
	log         logger.Logger

	wg sync.WaitGroup

	failedMu sync.Mutex
	failed   []*domain.AcceptedBid
}

func NewPersistenceWriter(store domain.DurableStore, queueSize, maxRetries int, baseBackoff time.Duration, log logger.Logger) *PersistenceWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}
	return &PersistenceWriter{
		store:       store,
		queue:       make(chan *domain.AcceptedBid, queueSize),
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		log:         log,
	}
}

// Enqueue never blocks. ErrBacklogFull means the producer outran the durable
// sink; the record is not queued.
func (w *PersistenceWriter) Enqueue(bid *domain.AcceptedBid) error {
	select {
	case w.queue <- bid:
		return nil
	default:
		return domain.ErrBacklogFull
	}
}

func (w *PersistenceWriter) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.drain(ctx)
}

// Stop waits for the drain goroutine to finish. Cancel the Start context
// first.
func (w *PersistenceWriter) Stop() {
	w.wg.Wait()
}

func (w *PersistenceWriter) drain(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case bid := <-w.queue:
			w.write(ctx, bid)
		case <-ctx.Done():
			w.flush()
			return
		}
	}
}

// flush makes one final attempt per queued record on shutdown; failures go to
// the reconciliation backlog like any other exhausted write.
func (w *PersistenceWriter) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case bid := <-w.queue:
			if err := w.store.AppendBid(ctx, bid); err != nil {
				w.RecordFailure(bid)
			}
		default:
			return
		}
	}
}

func (w *PersistenceWriter) write(ctx context.Context, bid *domain.AcceptedBid) {
	backoff := w.baseBackoff

	for attempt := 0; attempt < w.maxRetries; attempt++ {
		err := w.store.AppendBid(ctx, bid)
		if err == nil {
			return
		}

		w.log.Warn("Bid append failed",
			"auction_id", bid.AuctionID, "sequence", bid.Sequence,
			"attempt", attempt+1, "error", err)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			w.RecordFailure(bid)
			return
		}
	}

	w.log.Error("Bid append exhausted retries, recording for reconciliation",
		"auction_id", bid.AuctionID, "sequence", bid.Sequence)
	w.RecordFailure(bid)
}

// RecordFailure adds a record to the reconciliation backlog for out-of-band
// repair.
func (w *PersistenceWriter) RecordFailure(bid *domain.AcceptedBid) {
	w.failedMu.Lock()
	defer w.failedMu.Unlock()

	w.failed = append(w.failed, bid)
}

// TakeFailed hands the current reconciliation backlog to the caller and
// clears it. Records the caller cannot repair must be put back via
// RecordFailure.
func (w *PersistenceWriter) TakeFailed() []*domain.AcceptedBid {
	w.failedMu.Lock()
	defer w.failedMu.Unlock()

	failed := w.failed
	w.failed = nil
	return failed
}

func (w *PersistenceWriter) FailedCount() int {
	w.failedMu.Lock()
	defer w.failedMu.Unlock()

	return len(w.failed)
}
