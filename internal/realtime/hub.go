// Package realtime pushes stock events to connected dashboards over
// WebSockets. Connections are grouped into per-organization rooms; an event
// for one organization is never delivered to another organization's
// clients. Redis pub/sub fans events out across server instances.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher publishes an organization event to Redis for cross-instance
// broadcast.
type Publisher interface {
	PublishOrganizationEvent(orgID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to an organization's channel and invokes handler
// for incoming events from other instances.
type Subscriber interface {
	SubscribeOrganization(orgID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains organization_id -> set of connections and broadcasts
// events. Local clients receive directly; the same event is published to
// Redis so clients connected to other instances receive it too.
type Hub struct {
	// orgID -> map[clientID]*Client
	rooms map[uuid.UUID]map[string]*Client
	subs  map[uuid.UUID]func() // cancel Redis subscription per org
	mu    sync.RWMutex

	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a WebSocket hub. pub and sub may be nil, which confines
// events to this instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its organization's room. The first client of
// an organization starts the Redis subscription for that room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.OrganizationID] == nil {
		h.rooms[c.OrganizationID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeOrganization(c.OrganizationID, func(event string, payload []byte) {
				h.BroadcastToOrganization(c.OrganizationID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OrganizationID] = cancel
			}
		}
	}
	h.rooms[c.OrganizationID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room",
		zap.String("client_id", c.ID),
		zap.String("organization_id", c.OrganizationID.String()))
}

// Unregister removes a client from its room. The Redis subscription is
// cancelled when the last client of an organization leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.OrganizationID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.OrganizationID)
			if cancel, ok := h.subs[c.OrganizationID]; ok {
				cancel()
				delete(h.subs, c.OrganizationID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room",
		zap.String("client_id", c.ID),
		zap.String("organization_id", c.OrganizationID.String()))
}

// BroadcastToOrganization sends an event to all local clients in the
// organization's room.
func (h *Hub) BroadcastToOrganization(orgID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[orgID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToOrganizationAndPublish sends to local clients and publishes
// to Redis for other instances.
func (h *Hub) BroadcastToOrganizationAndPublish(orgID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToOrganization(orgID, event, json.RawMessage(data))
	if h.pub != nil {
		_ = h.pub.PublishOrganizationEvent(orgID, event, data)
	}
}

// RoomSize returns the number of connected clients in an organization's
// room on this instance.
func (h *Hub) RoomSize(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orgID])
}
