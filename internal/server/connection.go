package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/mineduel/internal/protocol"
	"github.com/lox/mineduel/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Reply sent for frames the server cannot make sense of.
const genericErrorMessage = "An error occurred"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Coordinator is the part of session.Coordinator a connection drives.
type Coordinator interface {
	Connect(ctx context.Context, peer session.Peer) error
	Finish(ctx context.Context, peer session.Peer, report protocol.PlayerFinished) error
	Disconnect(ctx context.Context, peer session.Peer) error
}

// Connection is a WebSocket client. It implements session.Peer.
type Connection struct {
	id          string
	conn        *websocket.Conn
	coordinator Coordinator
	logger      *log.Logger

	mu     sync.Mutex
	send   chan *protocol.Message
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

var _ session.Peer = (*Connection)(nil)

// NewConnection wraps an upgraded WebSocket.
func NewConnection(id string, conn *websocket.Conn, coordinator Coordinator, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:          id,
		conn:        conn,
		coordinator: coordinator,
		logger:      logger.WithPrefix("conn").With("conn", id),
		send:        make(chan *protocol.Message, sendBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Connection) ID() string { return c.id }

// Done is closed once the socket has been closed.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Start joins the session and begins pumping messages. Messages queued by the
// join are written before anything is read from the client.
func (c *Connection) Start() {
	go c.writePump()

	err := c.coordinator.Connect(c.ctx, c)
	switch {
	case errors.Is(err, session.ErrSessionFull):
		// Already told and closed by the coordinator.
		return
	case err != nil:
		c.logger.Error("Failed to join session", "error", err)
		_ = c.Close()
		// The join may have been applied before ctx ended.
		_ = c.coordinator.Disconnect(context.Background(), c)
		return
	}

	go c.readPump()
}

// Send queues msg for the client. A client that falls too far behind is
// disconnected rather than allowed to stall the sender.
func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "type", msg.Type)
		c.closeLocked()
		return ErrSendBufferFull
	}
}

// Close flushes queued messages, sends a close frame and closes the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump handles incoming messages from the client. When the client goes
// away the connection leaves the session.
func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
		if err := c.coordinator.Disconnect(context.Background(), c); err != nil {
			c.logger.Debug("Failed to leave session", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Warn("Discarding malformed message", "error", err)
			c.sendError()
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump drains the send queue onto the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			data, err := protocol.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", "type", msg.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case protocol.TypePlayerFinished:
		var report protocol.PlayerFinished
		if err := msg.Decode(&report); err != nil {
			c.logger.Warn("Failed to parse finish report", "error", err)
			c.sendError()
			return
		}
		if err := c.coordinator.Finish(c.ctx, c, report); err != nil {
			c.logger.Warn("Failed to record finish report", "error", err)
		}

	default:
		c.logger.Warn("Unexpected message from client", "type", msg.Type)
		c.sendError()
	}
}

func (c *Connection) sendError() {
	msg, err := protocol.NewMessage(protocol.TypeConnectionError, protocol.ConnectionError{
		Message: genericErrorMessage,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	_ = c.Send(msg) // Ignore send errors during error handling
}
