package domain

import "encoding/json"

// Inbound event types
const (
	EventJoinAuction = "joinAuction"
	EventPlaceBid    = "placeBid"
	EventAuctionEnd  = "auctionEnd"
)

// Outbound event types
const (
	EventNewBid = "newBid"
)

// Envelope is the wire format for every inbound client message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type JoinData struct {
	AuctionID string `json:"auctionId"`
}

type PlaceBidData struct {
	AuctionID string  `json:"auctionId"`
	BidderID  string  `json:"bidderId"`
	Amount    float64 `json:"amount"`
}

type AuctionEndData struct {
	AuctionID string `json:"auctionId"`
}

type NewBidData struct {
	AuctionID string  `json:"auctionId"`
	BidderID  string  `json:"bidderId"`
	Amount    float64 `json:"amount"`
	Sequence  int64   `json:"sequence"`
}

type OutboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type InfoReply struct {
	Message string `json:"message"`
}
