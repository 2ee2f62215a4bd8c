package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/signaling"
)

// Options tunes a client connection.
type Options struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64

	// Outbound queue length. A client that falls this far behind is dropped.
	SendBuffer int
}

// DefaultOptions returns the stock connection settings.
func DefaultOptions() Options {
	pongWait := 60 * time.Second
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 64 * 1024, // enough for a fully gathered SDP
		SendBuffer:     256,
	}
}

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	opts Options
	log  zerolog.Logger

	// send is drained by WritePump. mu and closed guard it against sends
	// racing with Unregister.
	mu     sync.Mutex
	send   chan *signaling.Message
	closed bool
}

// NewClient wraps conn. Call hub.Register and start both pumps afterwards.
func NewClient(hub *Hub, conn *websocket.Conn, opts Options) *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		opts: opts,
		log:  hub.log.With().Str("client_id", id).Logger(),
		send: make(chan *signaling.Message, opts.SendBuffer),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send queues msg without blocking. A full queue closes the connection.
func (c *Client) Send(msg *signaling.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn().Str("type", msg.Type).Msg("Send queue full, dropping client")
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var msg signaling.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.log.Debug().Msg("Malformed message")
			c.Send(signaling.NewErrorMessage(signaling.CodeBadRequest, "malformed message"))
			continue
		}

		c.hub.Dispatch(c, &msg)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
