package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-match-live/internal/domain"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

// Client is one websocket connection. It implements domain.Session.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte
	config      Config

	mu     sync.Mutex
	closed bool
}

func NewClient(id, userID string, hub *Hub, conn *websocket.Conn, cfg Config) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		ConnectedAt: cfg.clock().Now(),
		Hub:         hub,
		Conn:        conn,
		Send:        make(chan []byte, cfg.sendBuffer()),
		config:      cfg,
	}
}

func (c *Client) SessionID() string { return c.ID }
func (c *Client) OwnerID() string   { return c.UserID }

// Deliver queues ev for the write pump without blocking. A client whose
// buffer is full is disconnected.
func (c *Client) Deliver(ev domain.ServerEvent) error {
	data, err := domain.EncodeServerEvent(ev)
	if err != nil {
		return err
	}
	return c.deliverRaw(data)
}

func (c *Client) deliverRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrSessionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldSessionID, c.ID).Str(pkglog.FieldUserID, c.UserID).Msg("send buffer full, dropping client")
		if c.Conn != nil {
			c.Conn.Close()
		}
		return domain.ErrSessionClosed
	}
}

// Closed reports whether the client has left the hub.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// close stops further deliveries and lets the write pump finish.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ReadPump reads frames until the connection fails, passing each to
// onMessage. onClose runs once after the client has left the hub.
func (c *Client) ReadPump(onMessage func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.Hub.Unregister(c)
		if onClose != nil {
			onClose(c)
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Debug().Err(err).Str(pkglog.FieldSessionID, c.ID).Msg("websocket read error")
			}
			break
		}

		onMessage(c, message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
