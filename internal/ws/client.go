package ws

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mealdesk/api/internal/auth"
	"github.com/mealdesk/api/internal/enum"
	"github.com/mealdesk/api/internal/logger"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is checked via the JWT
	},
}

// Client is a single dashboard connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	kitchenID uuid.UUID
	send      chan []byte
}

// ReadPump only detects disconnects; dashboards never send messages.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
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
				logger.L().Warn("websocket read failed",
					zap.String("kitchen_id", c.kitchenID.String()),
					zap.Error(err),
				)
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued events, one JSON document per line.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// canWatch reports whether claims may follow kitchenID's bookings.
func canWatch(claims *auth.Claims, kitchenID uuid.UUID) bool {
	switch claims.Role {
	case enum.UserRoleSuperAdmin:
		return true
	case enum.UserRoleKitchenAdmin:
		return claims.KitchenID == kitchenID
	default:
		return false
	}
}

// ServeWS upgrades a dashboard connection.
// Endpoint: WS /ws/kitchens/{kid}/bookings?token=JWT
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	kitchenID, err := uuid.Parse(chi.URLParam(r, "kid"))
	if err != nil {
		http.Error(w, "invalid kitchen id", http.StatusBadRequest)
		return
	}

	if !canWatch(claims, kitchenID) {
		http.Error(w, "kitchen access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.FromCtx(r.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		kitchenID: kitchenID,
		send:      make(chan []byte, 256),
	}
	if !hub.join(client) {
		// The peer may already be gone; nothing to do beyond noting it.
		log := logger.FromCtx(r.Context())
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			log.Debug("websocket close frame failed", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			log.Debug("websocket close failed", zap.Error(err))
		}
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
