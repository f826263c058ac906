package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
	"live-auction/pkg/utils"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Coordinator is the slice of the auction coordinator the transport needs.
type Coordinator interface {
	HandleJoin(ctx context.Context, conn domain.Connection, data domain.JoinData)
	HandlePlaceBid(ctx context.Context, conn domain.Connection, data domain.PlaceBidData)
	HandleAuctionEnd(ctx context.Context, conn domain.Connection, data domain.AuctionEndData)
	HandleLeave(conn domain.Connection)
}

type Handler struct {
	coordinator Coordinator
	log         logger.Logger
}

func NewHandler(coordinator Coordinator, log logger.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		log:         log,
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(wsConn, utils.GenerateID("conn"))
	h.log.Info("WebSocket connection established", "conn_id", conn.ID())

	go h.readLoop(conn)
}

func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.coordinator.HandleLeave(conn)
		conn.Close()
		h.log.Info("WebSocket connection closed", "conn_id", conn.ID())
	}()

	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}

		h.dispatch(context.Background(), conn, raw)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn domain.Connection, raw []byte) {
	var envelope domain.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.reply(conn, domain.ErrorReply{Error: "Invalid message format"})
		return
	}

	switch envelope.Event {
	case domain.EventJoinAuction:
		var data domain.JoinData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			h.reply(conn, domain.ErrorReply{Error: "Invalid message format"})
			return
		}
		h.coordinator.HandleJoin(ctx, conn, data)

	case domain.EventPlaceBid:
		var data domain.PlaceBidData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			h.reply(conn, domain.ErrorReply{Error: "Invalid message format"})
			return
		}
		h.coordinator.HandlePlaceBid(ctx, conn, data)

	case domain.EventAuctionEnd:
		var data domain.AuctionEndData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			h.reply(conn, domain.ErrorReply{Error: "Invalid message format"})
			return
		}
		h.coordinator.HandleAuctionEnd(ctx, conn, data)

	default:
		h.reply(conn, domain.ErrorReply{Error: "Unknown event type"})
	}
}

func (h *Handler) reply(conn domain.Connection, message interface{}) {
	if err := conn.Send(message); err != nil {
		h.log.Debug("Failed to send reply", "conn_id", conn.ID(), "error", err)
	}
}
