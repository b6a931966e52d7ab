// Package client connects a player to a match server and plays the local
// board.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/mineduel/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	bufferSize     = 64
)

var ErrNotConnected = errors.New("not connected")

// Client is a WebSocket connection to the match server. Incoming messages are
// delivered in arrival order on Messages.
type Client struct {
	serverURL string
	logger    *log.Logger

	conn     *websocket.Conn
	send     chan *protocol.Message
	incoming chan *protocol.Message
	done     chan struct{}

	mu        sync.Mutex
	closed    bool
	err       error
	closeOnce sync.Once
}

// NewClient creates a client for serverURL. http and https URLs are mapped
// to ws and wss, and the /ws path is used when none is given.
func NewClient(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("client"),
		send:      make(chan *protocol.Message, bufferSize),
		incoming:  make(chan *protocol.Message, bufferSize),
		done:      make(chan struct{}),
	}
}

// WebSocketURL converts a server URL into the WebSocket endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", serverURL, u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Connect dials the server and starts the read and write pumps.
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := WebSocketURL(c.serverURL)
	if err != nil {
		return err
	}

	c.logger.Info("Connecting to server", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to server")
	return nil
}

// Messages delivers server messages in order. It is closed when the
// connection ends; Err then reports why.
func (c *Client) Messages() <-chan *protocol.Message { return c.incoming }

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, or nil after a clean close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send queues a message for the server without blocking.
func (c *Client) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed {
		return ErrNotConnected
	}

	select {
	case <-c.done:
		return ErrNotConnected
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Close sends any queued messages and a close frame, then closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		close(c.done)
		close(c.incoming)
		return nil
	}
	close(c.send)
	return nil
}

func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		_ = c.conn.Close()
		close(c.done)
	})
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer close(c.incoming)

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.finish(nil)
			} else {
				if websocket.IsUnexpectedCloseError(err) {
					c.logger.Error("WebSocket error", "error", err)
				}
				c.finish(err)
			}
			return
		}

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Warn("Discarding malformed message", "error", err)
			continue
		}

		c.logger.Debug("Received message", "type", msg.Type)

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// The read pump ends when the server answers the close frame.
				select {
				case <-c.done:
				case <-time.After(writeWait):
					c.finish(nil)
				}
				return
			}

			data, err := protocol.Marshal(msg)
			if err != nil {
				c.logger.Error("Failed to encode message", "type", msg.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				c.finish(err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.finish(err)
				return
			}

		case <-c.done:
			return
		}
	}
}
