package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/parleychat/parley/internal/infrastructure/configs"
)

// Client is one live push connection. Its identity is unknown until the
// connection sends a join event; routing and cleanup key off Client.ID,
// an opaque per-connection identifier.
type Client struct {
	ID   string
	conn *connWrapper
	cfg  configs.WSConfig

	// send is the bounded outgoing queue. Enqueue never blocks; a full
	// queue drops the event for this recipient only.
	send chan *Outbound

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, id string, cfg configs.WSConfig) *Client {
	c := &Client{
		ID:     id,
		cfg:    cfg,
		send:   make(chan *Outbound, cfg.SendQueueSize),
		closed: make(chan struct{}),
	}
	if conn != nil {
		c.conn = newConnWrapper(conn)
	}
	return c
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// enqueue queues an outbound event without blocking. It reports false
// when the client is closed or its queue is full.
func (c *Client) enqueue(msg *Outbound) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ReadPump reads inbound frames and hands them to the core until the
// connection errors or closes, then runs disconnect cleanup.
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.Disconnect(c)
	}()

	c.conn.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

	c.conn.conn.SetPongHandler(func(string) error {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				core.logReadError(c, err)
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		core.Dispatch(c, raw)
	}
}

// WritePump drains the outgoing queue onto the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	defer c.Close()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(time.Now().Add(c.cfg.WriteWait), msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(time.Now().Add(c.cfg.WriteWait), websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.conn.WriteControl(time.Now().Add(c.cfg.WriteWait), websocket.CloseMessage, nil)
			return
		}
	}
}
