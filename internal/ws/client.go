package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the hub writes to. Tests
// substitute a recording fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConnInfo captures handshake metadata for lifecycle events.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one live connection bound to a user. Writes are serialized with
// a mutex because the hub and timers emit from different goroutines.
type Client struct {
	UserID int
	Info   ConnInfo

	mu   sync.Mutex
	conn Conn
}

// NewClient wraps a connection for a user.
func NewClient(userID int, conn Conn, info ConnInfo) *Client {
	return &Client{UserID: userID, conn: conn, Info: info}
}

// Send marshals the payload into an event envelope and writes it.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, buf)
}

// Close shuts the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
