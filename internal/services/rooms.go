package services

import (
	"errors"
	"sync"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

var ErrAuctionIDRequired = errors.New("auction id required")

// Rooms maps auctions to their member connections. A connection belongs to
// at most one room; joining a second auction replaces the first membership.
// Broadcast iterates over a snapshot of the membership so concurrent
// join/leave cannot mutate the set mid-delivery.
type Rooms struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]domain.Connection // auctionID -> connID -> connection
	membership map[string]string                       // connID -> auctionID
	log        logger.Logger
}

func NewRooms(log logger.Logger) *Rooms {
	return &Rooms{
		rooms:      make(map[string]map[string]domain.Connection),
		membership: make(map[string]string),
		log:        log,
	}
}

func (r *Rooms) Join(auctionID string, conn domain.Connection) error {
	if auctionID == "" {
		return ErrAuctionIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.membership[conn.ID()]; ok && prev != auctionID {
		r.removeLocked(prev, conn.ID())
	}

	if r.rooms[auctionID] == nil {
		r.rooms[auctionID] = make(map[string]domain.Connection)
	}
	r.rooms[auctionID][conn.ID()] = conn
	r.membership[conn.ID()] = auctionID

	r.log.Info("Connection joined auction", "conn_id", conn.ID(), "auction_id", auctionID)
	return nil
}

func (r *Rooms) Leave(conn domain.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auctionID, ok := r.membership[conn.ID()]
	if !ok {
		return
	}

	r.removeLocked(auctionID, conn.ID())
	delete(r.membership, conn.ID())

	r.log.Info("Connection left auction", "conn_id", conn.ID(), "auction_id", auctionID)
}

func (r *Rooms) Broadcast(auctionID string, message interface{}) {
	conns := r.snapshot(auctionID)
	if conns == nil {
		// Broadcasting to an unknown room is a no-op, not a fault.
		r.log.Debug("Broadcast to empty auction room", "auction_id", auctionID)
		return
	}

	for _, conn := range conns {
		if err := conn.Send(message); err != nil {
			// A failed send to one client must not abort delivery to others.
			r.log.Debug("Broadcast send failed", "conn_id", conn.ID(),
				"auction_id", auctionID, "error", err)
		}
	}
}

// EndAuction delivers the terminal message to the current members and clears
// the room. Ended rooms are not reusable: a later Join starts from the
// closed-state snapshot the coordinator serves.
func (r *Rooms) EndAuction(auctionID string, message interface{}) {
	r.Broadcast(auctionID, message)

	r.mu.Lock()
	defer r.mu.Unlock()

	for connID := range r.rooms[auctionID] {
		delete(r.membership, connID)
	}
	delete(r.rooms, auctionID)

	r.log.Info("Auction room cleared", "auction_id", auctionID)
}

func (r *Rooms) MemberCount(auctionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[auctionID])
}

func (r *Rooms) snapshot(auctionID string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[auctionID]
	if !ok {
		return nil
	}

	conns := make([]domain.Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Rooms) removeLocked(auctionID, connID string) {
	if members, ok := r.rooms[auctionID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, auctionID)
		}
	}
}
