package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-practice/internal/models"
	"quiz-practice/pkg/logger"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	MessageSessionCompleted    = "session_completed"
	MessageAchievementUnlocked = "achievement_unlocked"
	MessageItemDelivered       = "item_delivered"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UserResolver extracts the authenticated user from a request.
type UserResolver func(r *http.Request) (uint, bool)

// Hub fans notifications out to every open connection of a user.
type Hub struct {
	clientsByUser map[uint]map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	done          chan struct{}
	mu            sync.RWMutex
	resolveUser   UserResolver
	log           *logger.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

func NewHub(resolveUser UserResolver, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clientsByUser: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		resolveUser:   resolveUser,
		log:           log.With("component", "ws_hub"),
	}
}

// Run listens on the register and unregister channels until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clientsByUser[client.userID] == nil {
				h.clientsByUser[client.userID] = make(map[*Client]bool)
			}
			h.clientsByUser[client.userID][client] = true
			h.mu.Unlock()
			h.log.Debug("client registered", "user_id", client.userID)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clientsByUser[client.userID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clientsByUser, client.userID)
	}
	close(client.send)
	h.log.Debug("client unregistered", "user_id", client.userID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clientsByUser {
		for c := range conns {
			close(c.send)
		}
		delete(h.clientsByUser, userID)
	}
}

// IsOnline reports whether the user has at least one open connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID]) > 0
}

// SendToUser queues a message on every connection of the user. Slow
// connections whose buffer is full are dropped.
func (h *Hub) SendToUser(userID uint, messageType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		h.log.Error("marshal ws message", "type", messageType, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("send buffer full, dropping client", "user_id", userID)
		go h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SessionCompleted notifies the user about a committed session and each newly
// earned badge.
func (h *Hub) SessionCompleted(_ context.Context, res models.SessionResult) error {
	h.SendToUser(res.UserID, MessageSessionCompleted, map[string]interface{}{
		"session_id": res.SessionID,
		"points":     res.Points,
		"accuracy":   res.Outcome.Accuracy,
	})
	for _, a := range res.Achievements {
		h.SendToUser(res.UserID, MessageAchievementUnlocked, a)
	}
	return nil
}

// ItemDelivered tells the owner a scheduled item was generated.
func (h *Hub) ItemDelivered(_ context.Context, item models.ItemDTO, ownerID uint) error {
	h.SendToUser(ownerID, MessageItemDelivered, item)
	return nil
}

// HandleWebSocket upgrades an authenticated request and registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only drains control frames; clients never send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.Warn("write failed", "user_id", c.userID, "error", err)
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
