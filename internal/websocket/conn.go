package websocket

import (
	"log/slog"
	"net"
	"sync"
	"time"
)

// State is the lifecycle state of a Conn. Transitions are one-way:
// OPEN -> CLOSING -> CLOSED.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

const (
	// readChunkSize is the size of a single socket read. Deliberately small
	// relative to typical frames so partial-frame delivery is an everyday
	// code path, not an edge case.
	readChunkSize = 4096

	// writeWait is the time allowed to write one frame to the peer.
	writeWait = 10 * time.Second

	// sendQueueSize is the capacity of the outbound frame queue. A peer
	// that lets this many frames pile up has stopped reading.
	sendQueueSize = 256
)

// Conn owns one upgraded stream socket and runs the receive-side
// buffering state machine on it. The transport layer makes no guarantee
// that one socket read corresponds to one logical frame, so inbound
// bytes are accumulated and the codec is retried until it reports a
// complete frame.
//
// All socket writes happen on a dedicated write pump fed by a buffered
// queue, with a deadline per write. SendText and Close only enqueue and
// flip state, so a peer that stops reading stalls its own pump goroutine
// and nothing else: a full queue or an expired deadline tears the
// connection down.
//
// Conn exposes two single-subscriber callbacks: OnMessage for decoded
// text payloads and OnDisconnect for teardown. Both must be set before
// Start; OnDisconnect fires exactly once no matter how the connection
// dies.
type Conn struct {
	// ID uniquely identifies this connection.
	ID string
	// CreatedAt is the time when the upgrade completed.
	CreatedAt time.Time

	conn   net.Conn
	logger *slog.Logger

	// mu guards state and the enqueue side of send. The channel is only
	// closed under mu, on the first transition out of OPEN, so enqueues
	// never race the close.
	mu    sync.Mutex
	state State
	send  chan []byte

	onMessage    func(text string)
	onDisconnect func()
	// onClosed is the Server's registry-cleanup hook, separate from the
	// application-facing OnDisconnect stream.
	onClosed func()

	disconnectOnce sync.Once
}

// NewConn wraps an already-upgraded socket. The caller starts the read
// and write pumps with Start after registering callbacks.
func NewConn(id string, conn net.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		logger:    logger.With("conn_id", id),
		state:     StateOpen,
		send:      make(chan []byte, sendQueueSize),
	}
}

// OnMessage registers the callback for decoded text frames. Exactly one
// subscriber is supported.
func (c *Conn) OnMessage(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnDisconnect registers the callback invoked once when the connection
// reaches CLOSED.
func (c *Conn) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Start launches the read loop and the write pump, each in its own
// goroutine. Each accepted socket is served independently; nothing a
// slow peer does here can block another connection.
func (c *Conn) Start() {
	go c.readLoop()
	go c.writePump()
}

// readLoop owns the receive buffer exclusively. It appends every chunk
// the socket delivers, then drains as many complete frames as the buffer
// holds before reading again, so several frames packed into one read are
// all delivered and a frame split across reads is delivered exactly once.
func (c *Conn) readLoop() {
	var buf []byte
	chunk := make([]byte, readChunkSize)

	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			for {
				frame, consumed, derr := DecodeFrame(buf)
				if derr != nil {
					// Frame-fatal: a structurally invalid frame poisons
					// the whole stream.
					c.logger.Warn("invalid frame, closing connection", "error", derr)
					c.teardown()
					return
				}
				if frame == nil {
					break // incomplete, wait for more bytes
				}
				// Client data frames must arrive masked (RFC 6455 5.1).
				// The codec itself stays permissive so server-encoded
				// frames round-trip; the asymmetry is enforced here.
				if !frame.Masked && !frame.Opcode.IsControl() {
					c.logger.Warn("unmasked client data frame, closing connection")
					c.teardown()
					return
				}
				buf = buf[consumed:]
				if len(buf) == 0 {
					buf = nil
				}

				if done := c.handleFrame(frame); done {
					return
				}
			}
		}
		if err != nil {
			// Transport-fatal: socket error or EOF goes straight to
			// CLOSED with a single disconnect notification.
			c.teardown()
			return
		}
	}
}

// writePump owns every write to the socket. It drains the send queue
// with a deadline per frame; when the queue is closed by a graceful
// shutdown it finishes the close handshake. Write failures, deadline
// expiry included, tear the connection down.
func (c *Conn) writePump() {
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := c.conn.Write(frame); err != nil {
			c.teardown()
			return
		}
	}

	// Queue closed. On the graceful path the close frame still has to go
	// out; after a teardown the socket is already dead.
	c.mu.Lock()
	graceful := c.state == StateClosing
	c.state = StateClosed
	c.mu.Unlock()
	if !graceful {
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.Write(EncodeClose())
	c.conn.Close()
	c.emitDisconnect()
}

// handleFrame dispatches one decoded frame. It reports true when the
// connection is finished and the read loop should exit.
func (c *Conn) handleFrame(frame *Frame) bool {
	switch frame.Opcode {
	case OpcodeText:
		c.mu.Lock()
		fn := c.onMessage
		open := c.state == StateOpen
		c.mu.Unlock()
		if open && fn != nil {
			fn(string(frame.Payload))
		}
		return false
	case OpcodeClose:
		c.beginClose()
		return true
	default:
		// ping/pong/binary/continuation are structurally accepted but the
		// signaling protocol never uses them.
		c.logger.Debug("ignoring frame", "opcode", frame.Opcode.String())
		return false
	}
}

// SendText encodes text as a single text frame and enqueues it for the
// write pump. It fails when the connection is not OPEN; a full queue
// means the peer stopped reading, which closes the connection.
func (c *Conn) SendText(text string) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrConnectionClosed
	}

	select {
	case c.send <- EncodeText([]byte(text)):
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.logger.Warn("send queue full, closing connection")
		c.teardown()
		return ErrConnectionClosed
	}
}

// Close shuts the connection down from our side: queued frames are
// flushed, then the close frame goes out and the socket closes, all on
// the write pump. Close itself never touches the socket and returns
// immediately. Idempotent: a second call has no effect and no second
// disconnect is emitted.
func (c *Conn) Close() {
	c.beginClose()
}

// beginClose moves OPEN to CLOSING and hands the rest of the shutdown to
// the write pump by closing the queue.
func (c *Conn) beginClose() {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	close(c.send)
	c.mu.Unlock()
}

// teardown handles transport-level failure: straight to CLOSED, no close
// frame on a socket that already failed. Closing the socket also
// unblocks a write pump stuck mid-write.
func (c *Conn) teardown() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.state == StateOpen {
		close(c.send)
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.conn.Close()
	c.emitDisconnect()
}

func (c *Conn) emitDisconnect() {
	c.disconnectOnce.Do(func() {
		c.mu.Lock()
		closed := c.onClosed
		fn := c.onDisconnect
		c.mu.Unlock()
		if closed != nil {
			closed()
		}
		if fn != nil {
			fn()
		}
	})
}
