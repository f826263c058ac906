package api

import (
	"encoding/json"
	"net/http"
	"time"

	"live-auction/internal/domain"
	"live-auction/internal/services"
	"live-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	cache       domain.CacheStore
	store       domain.DurableStore
	coordinator *services.AuctionCoordinator
	writer      *services.PersistenceWriter
	log         logger.Logger
}

func NewHandler(cache domain.CacheStore, store domain.DurableStore,
	coordinator *services.AuctionCoordinator, writer *services.PersistenceWriter,
	log logger.Logger) *Handler {
	return &Handler{
		cache:       cache,
		store:       store,
		coordinator: coordinator,
		writer:      writer,
		log:         log,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.GET("/auctions/:id", h.GetAuction)
	api.GET("/auctions/:id/bids", h.GetBidHistory)
	api.POST("/auctions/:id/end", h.EndAuction)
	api.POST("/blacklist", h.AddToBlacklist)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"service":             "auction-engine",
		"timestamp":           time.Now().Format(time.RFC3339),
		"persistence_backlog": h.writer.FailedCount(),
	})
}

type AuctionSnapshotResponse struct {
	AuctionID string  `json:"auction_id"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	BidderID  string  `json:"bidder_id"`
	Sequence  int64   `json:"sequence"`
}

func (h *Handler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	value, _, err := h.cache.Get(c.Request().Context(), domain.HighestBidKey(auctionID))
	if err != nil {
		h.log.Error("Failed to read auction snapshot", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read auction"})
	}
	if value == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
	}

	var cached domain.CachedAuction
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		h.log.Error("Corrupt auction snapshot", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read auction"})
	}

	return c.JSON(http.StatusOK, AuctionSnapshotResponse{
		AuctionID: auctionID,
		Status:    cached.Status.String(),
		Amount:    cached.Amount,
		BidderID:  cached.BidderID,
		Sequence:  cached.Sequence,
	})
}

type BidHistoryEntry struct {
	BidderID   string    `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	Sequence   int64     `json:"sequence"`
	AcceptedAt time.Time `json:"accepted_at"`
}

func (h *Handler) GetBidHistory(c echo.Context) error {
	auctionID := c.Param("id")

	bids, err := h.store.BidHistory(c.Request().Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to read bid history", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read bid history"})
	}

	history := make([]BidHistoryEntry, 0, len(bids))
	for _, bid := range bids {
		history = append(history, BidHistoryEntry{
			BidderID:   bid.BidderID,
			Amount:     bid.Amount,
			Sequence:   bid.Sequence,
			AcceptedAt: bid.AcceptedAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"auction_id": auctionID,
		"bids":       history,
	})
}

func (h *Handler) EndAuction(c echo.Context) error {
	auctionID := c.Param("id")
	if auctionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Auction ID is required"})
	}

	h.coordinator.HandleAuctionEnd(c.Request().Context(), nil, domain.AuctionEndData{AuctionID: auctionID})

	return c.JSON(http.StatusOK, map[string]string{"message": "Auction end requested"})
}

type BlacklistRequest struct {
	IP         string `json:"ip"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (h *Handler) AddToBlacklist(c echo.Context) error {
	var req BlacklistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.IP == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "IP is required"})
	}
	if req.TTLSeconds <= 0 {
		req.TTLSeconds = 3600
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.cache.SetWithTTL(c.Request().Context(), domain.BlacklistKey(req.IP), "1", ttl); err != nil {
		h.log.Error("Failed to blacklist IP", "ip", req.IP, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to blacklist IP"})
	}

	h.log.Info("IP blacklisted", "ip", req.IP, "ttl", ttl)
	return c.JSON(http.StatusOK, map[string]string{"message": "IP blacklisted"})
}
