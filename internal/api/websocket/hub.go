package websocket

import (
	"context"
	"sync"

	"github.com/maumercado/jobrunner-go/internal/events"
	"github.com/maumercado/jobrunner-go/internal/logger"
	"github.com/maumercado/jobrunner-go/internal/metrics"
)

// Hub fans task lifecycle events out to connected WebSocket clients. Events
// arrive over Redis pub/sub so every API replica sees the full stream.
// Client registration is synchronous under the mutex; only event delivery
// goes through the buffered broadcast channel.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan *events.Event
	source    *events.RedisPubSub
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewHub(source *events.RedisPubSub) *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan *events.Event, 256),
		source:    source,
		stopCh:    make(chan struct{}),
	}
}

// Run starts the hub's pump goroutines and returns.
func (h *Hub) Run(ctx context.Context) {
	eventCh, err := h.source.SubscribeAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to subscribe to events")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-eventCh:
				if !ok {
					return
				}
				h.Broadcast(event)
			}
		}
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				h.closeAllClients()
				return
			case <-h.stopCh:
				h.closeAllClients()
				return
			case event := <-h.broadcast:
				h.broadcastEvent(event)
			}
		}
	}()

	logger.Info().Msg("WebSocket hub started")
}

// Stop shuts the hub down and waits for its goroutines.
func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
	logger.Info().Msg("WebSocket hub stopped")
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetWebSocketConnections(float64(count))
	logger.Debug().Str("client_id", client.ID).Msg("client registered")
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetWebSocketConnections(float64(count))
	logger.Debug().Str("client_id", client.ID).Msg("client unregistered")
}

// Broadcast queues an event for delivery; drops it if the hub is saturated.
func (h *Hub) Broadcast(event *events.Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn().Msg("broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastEvent(event *events.Event) {
	data, err := event.ToJSON()
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize event for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.IsSubscribed(event.Type) {
			continue
		}

		select {
		case client.send <- data:
			metrics.RecordWebSocketMessage(string(event.Type))
		default:
			// Client buffer full, drop the connection. Unregister takes the
			// write lock, so it runs outside this read-locked section.
			go h.Unregister(client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.SetWebSocketConnections(0)
}
