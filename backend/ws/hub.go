package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Y3rnur/sitesrv/backend/store"
)

// Channel carries access events between server processes.
const Channel = "sitesrv:access"

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	redis  *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewHub relays through redisClient when it is non-nil, otherwise events
// only reach clients connected to this process.
func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients: make(map[*Client]struct{}),
		redis:   redisClient,
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	if redisClient != nil {
		go h.runPubSub()
	}
	return h
}

func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ClientCount reports the number of connected feed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Record publishes ev; it lets the hub sit next to other access recorders.
func (h *Hub) Record(ev store.AccessEvent) {
	if err := h.Publish(ev); err != nil {
		h.log.Warn("access event not published", zap.Stringer("id", ev.ID), zap.Error(err))
	}
}

// Publish sends v to every feed client, through Redis when configured.
func (h *Hub) Publish(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if h.redis == nil {
		h.broadcastLocal(b)
		return nil
	}

	// Retrying the publish with exponential backoff + jitter.
	const maxAttempts = 5
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = h.redis.Publish(h.ctx, Channel, b).Err()
		if err == nil {
			return nil
		}

		h.log.Debug("redis publish failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == maxAttempts || h.ctx.Err() != nil {
			break
		}

		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		select {
		case <-time.After(backoff + jitter):
		case <-h.ctx.Done():
		}
		backoff *= 2
	}
	h.log.Warn("redis publish gave up, broadcasting locally", zap.Error(err))
	h.broadcastLocal(b)
	return err
}

func (h *Hub) broadcastLocal(b []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.send(b)
	}
}

// run a subscription and relay to local clients
func (h *Hub) runPubSub() {
	pubsub := h.redis.Subscribe(h.ctx, Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(h.ctx); err != nil {
		h.log.Error("redis subscribe failed", zap.String("channel", Channel), zap.Error(err))
		return
	}
	h.log.Info("redis subscription started", zap.String("channel", Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcastLocal([]byte(msg.Payload))
		}
	}
}
