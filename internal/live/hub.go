// Package live pushes domain events to connected staff dashboards and driver
// apps over websockets.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shuttle/internal/domain"
	"shuttle/internal/events"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 64
)

// Authenticator resolves a session token into the actor behind it.
type Authenticator interface {
	ValidateToken(token string) (domain.Actor, error)
}

// ClientMetrics observes the number of connected clients.
type ClientMetrics interface {
	LiveClientsAdd(delta int)
}

type noopMetrics struct{}

func (noopMetrics) LiveClientsAdd(int) {}

// Client is one authenticated websocket connection.
type Client struct {
	ID    string
	Actor domain.Actor
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
}

// Hub tracks connected clients and fans events out to the ones allowed to
// see the event's hotel.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	auth     Authenticator
	metrics  ClientMetrics
	upgrader websocket.Upgrader
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(auth Authenticator, m ClientMetrics, allowedOrigins []string) *Hub {
	if m == nil {
		m = noopMetrics{}
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Hub{
		clients: make(map[string]*Client),
		auth:    auth,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func (h *Hub) Name() string { return "websocket" }

// Publish queues the event for every client that may see it. A client whose
// buffer is full is disconnected instead of blocking the publisher.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if !receives(c.Actor, e) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			log.Printf("live: dropping slow client %s", id)
			h.removeLocked(c)
		}
	}
	return nil
}

func receives(a domain.Actor, e events.Event) bool {
	if a.Role == domain.RoleGuest {
		return false
	}
	return a.CanAccessHotel(e.HotelID)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.metrics.LiveClientsAdd(1)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.metrics.LiveClientsAdd(-1)
}

// ServeWS upgrades the request. The client must send {"token": "..."} as its
// first message within authTimeout; a token query parameter is accepted too.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live: upgrade failed: %v", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
		var authMsg struct {
			Token string `json:"token"`
		}
		if err := conn.ReadJSON(&authMsg); err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth timeout"))
			_ = conn.Close()
			return
		}
		token = authMsg.Token
	}

	actor, err := h.auth.ValidateToken(token)
	if err != nil || actor.Role == domain.RoleGuest {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		return
	}

	client := &Client{
		ID:    uuid.New().String(),
		Actor: actor,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		hub:   h,
	}
	h.register(client)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(map[string]string{"status": "authenticated", "userId": actor.UserID})

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("live: read error on %s: %v", c.ID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

var _ events.Publisher = (*Hub)(nil)
