package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

// Config holds websocket connection settings.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// Clock stamps ConnectedAt. Nil means the wall clock.
	Clock clock.Clock
}

func (c Config) clock() clock.Clock {
	if c.Clock == nil {
		return clock.Real()
	}
	return c.Clock
}

func (c Config) sendBuffer() int {
	if c.SendBuffer <= 0 {
		return 256
	}
	return c.SendBuffer
}

// Hub tracks connected clients and their conversation subscriptions.
type Hub struct {
	clients       map[string]*Client            // clientID -> client
	conversations map[string]map[string]*Client // conversationKey -> clientID -> client
	mu            sync.RWMutex
	config        Config
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		conversations: make(map[string]map[string]*Client),
		config:        cfg,
	}
}

func (h *Hub) Config() Config { return h.config }

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldSessionID, client.ID).Str(pkglog.FieldUserID, client.UserID).Msg("client registered")
}

// Unregister removes client from the hub and every subscription and closes
// its send channel. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		for key, subs := range h.conversations {
			delete(subs, client.ID)
			if len(subs) == 0 {
				delete(h.conversations, key)
			}
		}
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()

	client.close()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldSessionID, client.ID).Msg("client unregistered")
}

func (h *Hub) JoinConversation(client *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.conversations[key]; !ok {
		h.conversations[key] = make(map[string]*Client)
	}
	h.conversations[key][client.ID] = client
}

func (h *Hub) LeaveConversation(client *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.conversations[key]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.conversations, key)
		}
	}
}

// Subscribers returns the sessions subscribed to key, ordered by id.
func (h *Hub) Subscribers(key string) []domain.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.conversations[key]
	out := make([]domain.Session, 0, len(subs))
	for _, c := range subs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID() < out[j].SessionID() })
	return out
}

// Broadcast sends ev to every connected client. Clients that cannot keep
// up are dropped by their own Deliver.
func (h *Hub) Broadcast(ev domain.ServerEvent) error {
	data, err := domain.EncodeServerEvent(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.deliverRaw(data)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client connection. Read pumps then unregister their
// clients and run their disconnect handling.
func (h *Hub) Stop() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.Conn != nil {
			c.Conn.Close()
		}
	}
}
