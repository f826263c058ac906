package mysql

import (
	"context"
	"database/sql"
	"time"

	"live-auction/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// BidLedger implements domain.DurableStore. The accepted_bids table carries a
// primary key on (auction_id, sequence); a retried append for the same key is
// a no-op rather than a duplicate row.
type BidLedger struct {
	db *sql.DB
}

func NewBidLedger(db *sql.DB) *BidLedger {
	return &BidLedger{db: db}
}

func (r *BidLedger) AppendBid(ctx context.Context, bid *domain.AcceptedBid) error {
	query := `
        INSERT INTO accepted_bids (auction_id, sequence, bidder_id, amount, accepted_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE auction_id = auction_id
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.AuctionID, bid.Sequence, bid.BidderID, bid.Amount,
		bid.AcceptedAt, time.Now())
	return err
}

func (r *BidLedger) MaxBidAmount(ctx context.Context, auctionID string) (float64, error) {
	query := `SELECT COALESCE(MAX(amount), 0) FROM accepted_bids WHERE auction_id = ?`

	var max float64
	err := r.db.QueryRowContext(ctx, query, auctionID).Scan(&max)
	if err != nil {
		return 0, err
	}

	return max, nil
}

func (r *BidLedger) BidHistory(ctx context.Context, auctionID string) ([]*domain.AcceptedBid, error) {
	query := `
        SELECT auction_id, sequence, bidder_id, amount, accepted_at
        FROM accepted_bids
        WHERE auction_id = ?
        ORDER BY sequence ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.AcceptedBid
	for rows.Next() {
		var bid domain.AcceptedBid

		err := rows.Scan(&bid.AuctionID, &bid.Sequence, &bid.BidderID,
			&bid.Amount, &bid.AcceptedAt)
		if err != nil {
			return nil, err
		}

		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
