package services

import (
	"context"
	"encoding/json"
	"time"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Reconciler periodically retries the persistence writer's failed records
// against the ledger and audits ledger completeness for the auctions it
// touched. It never participates in live admission.
type Reconciler struct {
	cron   *cron.Cron
	writer *PersistenceWriter
	store  domain.DurableStore
	cache  domain.CacheStore
	log    logger.Logger
}

func NewReconciler(writer *PersistenceWriter, store domain.DurableStore,
	cache domain.CacheStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		cron:   cron.New(cron.WithSeconds()),
		writer: writer,
		store:  store,
		cache:  cache,
		log:    log,
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.log.Info("Starting persistence reconciler")

	_, err := r.cron.AddFunc("@every 1m", func() {
		r.sweep(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() error {
	r.log.Info("Stopping persistence reconciler")
	r.cron.Stop()
	return nil
}

func (r *Reconciler) sweep(ctx context.Context) {
	failed := r.writer.TakeFailed()
	if len(failed) == 0 {
		return
	}

	r.log.Info("Reconciling failed bid records", "count", len(failed))

	repaired := make(map[string]bool)
	for _, bid := range failed {
		if err := r.store.AppendBid(ctx, bid); err != nil {
			r.log.Error("Reconciliation append failed",
				"auction_id", bid.AuctionID, "sequence", bid.Sequence, "error", err)
			r.writer.RecordFailure(bid)
			continue
		}
		repaired[bid.AuctionID] = true
	}

	for auctionID := range repaired {
		r.audit(ctx, auctionID)
	}
}

// audit compares the ledger's max amount with the cached highest bid and
// logs any divergence. The ledger lagging the cache is expected while the
// backlog drains; the ledger exceeding the cache is not.
func (r *Reconciler) audit(ctx context.Context, auctionID string) {
	value, _, err := r.cache.Get(ctx, domain.HighestBidKey(auctionID))
	if err != nil || value == "" {
		return
	}

	var cached domain.CachedAuction
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		return
	}

	ledgerMax, err := r.store.MaxBidAmount(ctx, auctionID)
	if err != nil {
		r.log.Error("Audit query failed", "auction_id", auctionID, "error", err)
		return
	}

	if ledgerMax > cached.Amount {
		r.log.Warn("Ledger ahead of cache", "auction_id", auctionID,
			"ledger_max", ledgerMax, "cached_amount", cached.Amount)
	} else if ledgerMax < cached.Amount {
		r.log.Info("Ledger lagging cache", "auction_id", auctionID,
			"ledger_max", ledgerMax, "cached_amount", cached.Amount,
			"checked_at", time.Now().Format(time.RFC3339))
	}
}
