package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	wshandler "github.com/windfall/poplingo_service/internal/handler/ws"
	authmw "github.com/windfall/poplingo_service/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

var errClientGone = stderrors.New("websocket client disconnected")

// WebSocketMessage represents a WebSocket message.
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client represents a WebSocket client.
type Client struct {
	ID     string
	UserID string
	Hub    *WebSocketHub
	Conn   *websocket.Conn
	Send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketHub manages WebSocket connections. The client set is owned by
// Run; other goroutines only read it under mu. A client is shut down by
// cancelling its context; Send is never closed.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

// NewWebSocketHub creates a new WebSocket hub accepting upgrades from the
// given origins. "*" accepts any origin.
func NewWebSocketHub(log zerolog.Logger, allowedOrigins []string) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Run starts the WebSocket hub.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("WebSocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				client.cancel()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Str("client_id", client.ID).Str("user_id", client.UserID).Int("clients", count).Msg("Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			count := len(h.clients)
			h.mu.Unlock()
			client.cancel()
			h.log.Info().Str("client_id", client.ID).Int("clients", count).Msg("Client disconnected")
		}
	}
}

// Handler returns the upgrade endpoint. Requests must already carry the
// authenticated user in their context.
func (h *WebSocketHub) Handler(handler *wshandler.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.HandleWebSocket(w, r, handler)
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request, handler *wshandler.Handler) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID := middleware.GetReqID(r.Context())
	if clientID == "" {
		clientID = uuid.NewString()
	}

	// The request context ends once the handler returns, so the client
	// gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:     clientID,
		UserID: authmw.GetUserID(r.Context()),
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(handler)
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver queues message for the client, waiting while its buffer is full
// until the client goes away.
func (c *Client) deliver(message []byte) error {
	if c.ctx.Err() != nil {
		return errClientGone
	}
	select {
	case c.Send <- message:
		return nil
	case <-c.ctx.Done():
		return errClientGone
	}
}

func (c *Client) readPump(handler *wshandler.Handler) {
	defer func() {
		c.cancel()
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.log.Warn().Err(err).Str("client_id", c.ID).Msg("WebSocket read error")
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Hub.log.Warn().Err(err).Str("client_id", c.ID).Msg("Failed to parse WebSocket message")
			continue
		}

		err = handler.Handle(c.ctx, c.ID, c.UserID, msg.Type, msg.Payload, c.deliver)
		if err != nil {
			if stderrors.Is(err, errClientGone) || stderrors.Is(err, context.Canceled) {
				return
			}
			c.Hub.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to handle message")
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.cancel()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
