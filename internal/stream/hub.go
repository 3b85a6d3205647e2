package stream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Hub fans engagement counter updates out to websocket subscribers,
// bridged across instances through redis pub/sub.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	ItemID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(itemID string) *Client {
	client := &Client{
		ItemID: itemID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[itemID] == nil {
		h.clients[itemID] = map[*Client]struct{}{}
	}
	h.clients[itemID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if itemClients, ok := h.clients[client.ItemID]; ok {
		delete(itemClients, client)
		if len(itemClients) == 0 {
			delete(h.clients, client.ItemID)
		}
	}
	close(client.Send)
}

// BroadcastCounters marshals a counter snapshot and broadcasts it to the
// item's subscribers. Marshal failures are logged and dropped.
func (h *Hub) BroadcastCounters(itemID string, snapshot any) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("marshal counter snapshot")
		return
	}
	h.Broadcast(itemID, payload)
}

func (h *Hub) Broadcast(itemID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[itemID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), engagementChannel(itemID), payload).Err()
		if err != nil {
			log.Error().Err(err).Msg("redis publish")
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "engagement:*:counters")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		itemID := itemIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[itemID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func engagementChannel(itemID string) string {
	return "engagement:" + itemID + ":counters"
}

func itemIDFromChannel(ch string) string {
	// engagement:{item}:counters
	const prefix = "engagement:"
	const suffix = ":counters"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
