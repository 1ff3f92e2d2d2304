package handler

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Baaaki/imf-gadgets/internal/broker"
	"github.com/Baaaki/imf-gadgets/internal/middleware"
	"github.com/Baaaki/imf-gadgets/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxSessionLifetime = 15 * time.Minute
	writeWait          = 10 * time.Second // Time allowed to write a message to the peer
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10 // 54 seconds
	maxMessageSize     = 1024                // clients only send control frames
)

// WSResponse is one frame on the event feed
type WSResponse struct {
	Type  string              `json:"type"` // "event", "session_expired"
	Event *broker.GadgetEvent `json:"event,omitempty"`
	Error string              `json:"error,omitempty"`
}

// EventFeedHandler streams gadget lifecycle events to websocket clients
type EventFeedHandler struct {
	events   broker.EventBroker
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*Client
	mu       sync.RWMutex
}

type Client struct {
	conn        *websocket.Conn
	userID      string
	connectedAt time.Time
	expiresAt   time.Time
}

func NewEventFeedHandler(events broker.EventBroker, allowedOrigins []string) *EventFeedHandler {
	return &EventFeedHandler{
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin; "*" mirrors the CORS allow-all
				return origin == "" ||
					slices.Contains(allowedOrigins, "*") ||
					slices.Contains(allowedOrigins, origin)
			},
		},
		clients: make(map[*websocket.Conn]*Client),
	}
}

// ClientCount returns the number of connected feed clients
func (h *EventFeedHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventFeedHandler) HandleEvents(c *gin.Context) {
	// Get claims from context (set by AuthMiddleware)
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before upgrading so a broker failure is still a plain HTTP error
	events, err := h.events.Subscribe(ctx)
	if err != nil {
		logger.Log.Error("Failed to subscribe to gadget events",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event feed unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn("Failed to upgrade connection",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
		return
	}

	client := &Client{
		conn:        conn,
		userID:      claims.UserID,
		connectedAt: time.Now(),
		expiresAt:   time.Now().Add(maxSessionLifetime),
	}
	// The session never outlives the token that opened it
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(client.expiresAt) {
		client.expiresAt = claims.ExpiresAt.Time
	}

	h.addClient(client)
	defer h.removeClient(conn)

	go h.readPump(client, cancel)
	h.writePump(ctx, client, events)
}

// readPump consumes control frames and cancels the session when the peer goes away
func (h *EventFeedHandler) readPump(client *Client, cancel context.CancelFunc) {
	defer cancel()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("WebSocket read error",
					zap.String("user_id", client.userID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump is the only writer on the connection
func (h *EventFeedHandler) writePump(ctx context.Context, client *Client, events <-chan broker.GadgetEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sessionTimer := time.NewTimer(time.Until(client.expiresAt))
	defer sessionTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-sessionTimer.C:
			h.closeClientGracefully(client, "session expired")
			return

		case event, ok := <-events:
			if !ok {
				h.closeClientGracefully(client, "event feed closed")
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(WSResponse{Type: "event", Event: &event}); err != nil {
				logger.Log.Debug("Failed to send event",
					zap.String("user_id", client.userID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Debug("Ping failed",
					zap.String("user_id", client.userID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (h *EventFeedHandler) closeClientGracefully(client *Client, reason string) {
	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.conn.WriteJSON(WSResponse{
		Type:  "session_expired",
		Error: reason,
	}); err != nil {
		logger.Log.Debug("Failed to send session_expired message", zap.Error(err))
	}

	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
	); err != nil {
		logger.Log.Debug("Failed to send close frame", zap.Error(err))
	}

	logger.Log.Info("Closed event feed connection",
		zap.String("user_id", client.userID),
		zap.String("reason", reason),
	)
}

func (h *EventFeedHandler) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.conn] = client
	total := len(h.clients)
	h.mu.Unlock()

	logger.Log.Info("Event feed client connected",
		zap.String("user_id", client.userID),
		zap.Int("total", total),
	)
}

func (h *EventFeedHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		conn.Close()

		logger.Log.Info("Event feed client disconnected",
			zap.String("user_id", client.userID),
			zap.Duration("session_duration", time.Since(client.connectedAt).Round(time.Second)),
			zap.Int("remaining", len(h.clients)),
		)
	}
}
