package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"clinical-coding-be/internal/pkg/logger"
	"clinical-coding-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisChannel carries events between instances so observers connected to a
// different replica still see the full feed.
const redisChannel = "coding_cluster_events"

// Hub fans coding events out to every connected observer. There is no
// per-user addressing: the event feed is a firehose for dashboards and
// operational tooling.
type Hub struct {
	// Registered observer connections
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fanout
	rdb *redis.Client

	// Identifies this instance in relayed payloads so we can skip our own
	// messages when they come back through the channel.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Hub", "Observer connected", map[string]interface{}{"conn_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("Hub", "Observer disconnected", map[string]interface{}{"conn_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent sends an event to every local observer and relays it to the
// other instances through Redis.
func (h *Hub) BroadcastEvent(evt events.Event) {
	data, err := json.Marshal(map[string]interface{}{
		"type":        evt.EventType(),
		"data":        evt.Payload(),
		"occurred_at": evt.Timestamp().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to serialize event", map[string]interface{}{"type": evt.EventType(), "error": err.Error()})
		return
	}

	h.broadcastLocal(data)

	if h.rdb != nil {
		payload := map[string]interface{}{
			"origin":  h.instanceID,
			"message": data,
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

func (h *Hub) broadcastLocal(data []byte) {
	// Slow observers are unregistered rather than blocking the feed. Eviction
	// goes through the unregister channel so Send is closed exactly once.
	var stale []*Client

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("Hub", "Observer send buffer full, dropping connection", map[string]interface{}{"conn_id": client.ID})
		h.unregister <- client
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to the same channel and replays messages that
	// originated elsewhere to its local observers.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin  string          `json:"origin"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		// Local observers already got this one directly.
		if payload.Origin == h.instanceID {
			continue
		}

		h.broadcastLocal(payload.Message)
	}
}
