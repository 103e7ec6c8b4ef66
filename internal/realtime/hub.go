package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains user_id -> set of connections. A user may have several tabs open; every
// session of the user receives that user's upload events.
// With Redis configured, events go through pub/sub so the instance that holds the socket
// delivers them even when another instance ran the upload.
type Hub struct {
	users    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per user
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance delivery).
type RedisPublisher interface {
	PublishUserEvent(userID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to user channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its user's room. Starts the Redis subscription on the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
		if h.redisSub != nil {
			userID := c.UserID
			cancel, err := h.redisSub.SubscribeUser(userID, func(event string, payload []byte) {
				h.SendToUser(userID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.String("user_id", userID.String()), zap.Error(err))
			} else {
				h.subs[userID] = cancel
			}
		}
	}
	h.users[c.UserID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the user's last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// SendToUser sends a message to every local connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// NotifyUser delivers an event to all of the user's sessions on any instance. With Redis the
// subscriber callback performs the local send, so nothing is sent directly here.
func (h *Hub) NotifyUser(userID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.SendToUser(userID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.redis.PublishUserEvent(userID, event, data); err != nil {
		h.logger.Warn("redis publish failed, delivering locally", zap.String("user_id", userID.String()), zap.Error(err))
		h.SendToUser(userID, event, json.RawMessage(data))
	}
}

// ConnectionCount returns the number of local connections of a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
