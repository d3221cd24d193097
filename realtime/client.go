package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fitpair/coachlink/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBufferSize = 64
)

// Client is one authenticated websocket connection. A user with several
// devices owns several clients.
type Client struct {
	ID       string
	UserID   uint
	UserName string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.User) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		UserName: user.Fullname,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

// ReadPump consumes inbound frames and hands them to the router. It owns
// teardown: when the read loop ends for any reason the client unregisters
// from the hub (and with it from presence) exactly once.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Str("conn_id", c.ID).Uint("user_id", c.UserID).Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		handler(c, raw)
	}
}

// WritePump drains the send buffer onto the wire and keeps the connection
// alive with pings. It exits when the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent queues one frame for this connection only. Frames are dropped
// when the buffer is full rather than blocking the caller.
func (c *Client) SendEvent(event string, data interface{}) {
	frame, err := EncodeEvent(event, data)
	if err != nil {
		log.Error().Str("event", event).Err(err).Msg("could not encode event")
		return
	}
	c.enqueue(frame)
}

// SendError emits a scoped error event to this connection.
func (c *Client) SendError(message string) {
	c.SendEvent(EventError, ErrorPayload{Message: message})
}

func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A broadcast racing the close of this connection fails silently.
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("conn_id", c.ID).Uint("user_id", c.UserID).Msg("send buffer full, dropping frame")
	}
}

// closeSend shuts the outbound buffer exactly once. Called by the hub when
// the client unregisters.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
