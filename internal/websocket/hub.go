package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"collab-notes-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// relayChannel is the Redis pub/sub channel instances use to reach
// clients connected to their peers.
const relayChannel = "cluster_events"

type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-device)
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, nil when running a
	// single instance.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast delivers an already-serialized event to every connected
// client, local and cross-instance. Note and lock events go to everyone;
// clients filter by the note ids they are watching.
func (h *Hub) Broadcast(data []byte) {
	// With Redis the relay loops back to this instance too, so local
	// delivery happens exactly once either way.
	if h.rdb != nil {
		payload, _ := json.Marshal(relayPayload{
			TargetUserID: "*",
			Message:      data,
		})
		h.rdb.Publish(context.Background(), relayChannel, payload)
		return
	}

	h.broadcastLocal(data)
}

// Send delivers an event to a single user's connections only.
func (h *Hub) Send(userID uuid.UUID, data []byte) {
	// Relay when clustered; another instance may hold this user's other
	// devices, and the loopback covers local ones.
	if h.rdb != nil {
		payload, _ := json.Marshal(relayPayload{
			TargetUserID: userID.String(),
			Message:      data,
		})
		h.rdb.Publish(context.Background(), relayChannel, payload)
		return
	}

	h.mu.RLock()
	clients := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range clients {
		h.deliver(client, data)
	}
}

func (h *Hub) broadcastLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for _, client := range clients {
			h.deliver(client, data)
		}
	}
}

// deliver queues data for one client, dropping the connection when its
// buffer is full. Callers hold h.mu, so the unregister handoff must not
// block and must not touch the map; Run's unregister path is the single
// place that removes a client and closes its Send channel.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": client.UserID})
		go func() { h.unregister <- client }()
	}
}

type relayPayload struct {
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to the shared relay channel; each
	// message names a target user or "*" for broadcast, and instances
	// deliver to whichever of those connections they hold locally.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload relayPayload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		if payload.TargetUserID == "*" {
			h.broadcastLocal(payload.Message)
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		clients, ok := h.clients[uid]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		for _, client := range clients {
			h.deliver(client, payload.Message)
		}
	}
}
