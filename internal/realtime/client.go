package realtime

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stocktally/backend/pkg/response"
)

// Heartbeat and write pacing for feed connections. The ping period must be
// shorter than the pong wait or healthy clients get disconnected.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin than the API, so the
	// handshake cannot be origin-gated; the token check below is the gate.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSMessage is the envelope delivered to feed subscribers.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenVerifier validates a session token and returns its tenant scope.
type TokenVerifier func(token string) (userID, organizationID uuid.UUID, err error)

// Client is one dashboard connection inside an organization room.
type Client struct {
	ID             string
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	hub            *Hub
	conn           *websocket.Conn
	send           chan WSMessage
	logger         *zap.Logger
}

// ServeWs upgrades a feed connection and runs it until the peer leaves.
// Browsers cannot attach an Authorization header to a WebSocket handshake,
// so the session token travels in the query string; the room is always the
// organization in the verified claims, never a client-supplied value.
func ServeWs(hub *Hub, logger *zap.Logger, verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "token required")
			return
		}
		userID, orgID, err := verify(token)
		if err != nil {
			response.Forbidden(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			UserID:         userID,
			hub:            hub,
			conn:           conn,
			send:           make(chan WSMessage, 256),
			logger:         logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump drains inbound frames until the peer goes away. The feed is
// server-push only, so frame contents are discarded; reads exist to run
// the pong handler and to notice disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.logger.Debug("feed client disconnected",
			zap.String("client_id", c.ID),
			zap.String("organization_id", c.OrganizationID.String()))
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetPongHandler(func(string) error { return c.extendReadDeadline() })
	if err := c.extendReadDeadline(); err != nil {
		return
	}

	for {
		_, r, err := c.conn.NextReader()
		if err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, r)
		_ = c.extendReadDeadline()
	}
}

func (c *Client) extendReadDeadline() error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// writePump owns all writes on the connection: queued feed events plus the
// ping heartbeat. gorilla/websocket permits a single concurrent writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.control(websocket.CloseMessage)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.control(websocket.PingMessage); err != nil {
				return
			}
		}
	}
}

func (c *Client) control(messageType int) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, nil)
}
