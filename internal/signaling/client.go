package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Transport is the slice of a websocket connection the signaling layer
// depends on. The transport layer owns the socket lifetime; a Client
// only holds a non-owning reference.
type Transport interface {
	// SendText writes one text frame; it fails when the connection is no
	// longer open.
	SendText(text string) error
	// Close shuts the connection down. Idempotent.
	Close()
}

// Client pairs one websocket connection with a mutable signaling
// identity: the userId it announced and the room it currently occupies.
// There is one Client per accepted connection; a user reconnecting with
// the same userId gets a fresh Client, the stale one is replaced.
type Client struct {
	conn   Transport
	logger *slog.Logger

	mu        sync.Mutex
	userID    string
	roomID    string
	connected bool

	// JoinTime is the time the connection was wrapped.
	JoinTime time.Time

	onMessage func(c *Client, env Envelope)
}

// NewClient wraps a transport connection.
func NewClient(conn Transport, logger *slog.Logger) *Client {
	return &Client{
		conn:      conn,
		logger:    logger,
		connected: true,
		JoinTime:  time.Now(),
	}
}

// OnMessage registers the single consumer of parsed envelopes (the Hub).
func (c *Client) OnMessage(fn func(c *Client, env Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// HandleRaw parses one raw text payload from the connection and forwards
// the envelope. Malformed JSON is logged and dropped; breaking the
// connection over one bad message would be disproportionate.
func (c *Client) HandleRaw(text string) {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		c.logger.Warn("dropping malformed message", "user_id", c.UserID(), "error", err)
		return
	}

	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(c, env)
	}
}

// Send serializes {type, data} as one JSON envelope and forwards it to
// the connection. It reports false when the connection is not open or
// serialization fails; it never panics.
func (c *Client) Send(msgType string, data any) bool {
	if !c.Connected() {
		return false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("failed to marshal message data", "type", msgType, "error", err)
		return false
	}
	payload, err := json.Marshal(Envelope{Type: msgType, Data: raw})
	if err != nil {
		c.logger.Error("failed to marshal envelope", "type", msgType, "error", err)
		return false
	}

	if err := c.conn.SendText(string(payload)); err != nil {
		c.logger.Debug("send failed", "type", msgType, "user_id", c.UserID(), "error", err)
		return false
	}
	return true
}

// SendRaw is Send for data that is already serialized JSON. Used on the
// relay path so opaque payloads are forwarded byte-for-byte.
func (c *Client) SendRaw(msgType string, data json.RawMessage) bool {
	if !c.Connected() {
		return false
	}

	payload, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		c.logger.Error("failed to marshal envelope", "type", msgType, "error", err)
		return false
	}

	if err := c.conn.SendText(string(payload)); err != nil {
		c.logger.Debug("send failed", "type", msgType, "user_id", c.UserID(), "error", err)
		return false
	}
	return true
}

// UserID returns the userId announced by this client, empty before the
// first join-room.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// SetUserID records the userId announced in a join-room message.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
}

// RoomID returns the id of the room this client currently occupies,
// empty when it is in none.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// JoinRoom records room membership on the identity only. Actual Room
// membership is the Hub's and Room's business; keeping the two apart
// means a Client never needs to know what a Room is.
func (c *Client) JoinRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// LeaveRoom clears room membership on the identity and returns the room
// that was left.
func (c *Client) LeaveRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.roomID
	c.roomID = ""
	return old
}

// Connected reports whether the client still considers its connection
// usable.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// MarkDisconnected flags the client after its connection died.
func (c *Client) MarkDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// Close closes the underlying connection. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.mu.Unlock()

	c.conn.Close()
}

// ClientInfo is a point-in-time snapshot of a client for diagnostics.
type ClientInfo struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Connected bool      `json:"connected"`
	JoinTime  time.Time `json:"joinTime"`
}

// Info returns a diagnostic snapshot.
func (c *Client) Info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{
		UserID:    c.userID,
		RoomID:    c.roomID,
		Connected: c.connected,
		JoinTime:  c.JoinTime,
	}
}
