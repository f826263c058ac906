package websocket

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var errConnectionClosed = errors.New("connection closed")

// Connection wraps a gorilla websocket connection behind domain.Connection.
// Writes are serialized: gorilla permits only one concurrent writer, and a
// connection may receive broadcasts from several handlers at once.
type Connection struct {
	conn    *websocket.Conn
	id      string
	writeMu sync.Mutex
	closed  bool
}

func NewConnection(conn *websocket.Conn, id string) *Connection {
	return &Connection{
		conn: conn,
		id:   id,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.conn.Close()
}

func (c *Connection) ID() string {
	return c.id
}
