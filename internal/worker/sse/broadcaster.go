// Package sse streams rendered replies to monitoring dashboards over
// Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plenacare/plantao/pkg/models"
)

// sendTimeout bounds how long a slow dashboard may hold up a broadcast
// before its connection is dropped.
const sendTimeout = 2 * time.Second

// ReplyEvent is the wire shape of one broadcast reply.
type ReplyEvent struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Flow      models.Flow `json:"flow,omitempty"`
	Reply     string      `json:"reply"`
	At        time.Time   `json:"at"`
}

// client is one connected dashboard. Messages flow through a buffered
// channel so broadcasts never write to the ResponseWriter from two
// goroutines.
type client struct {
	id   string
	ch   chan []byte
	done chan struct{}
}

// Broadcaster fans rendered replies out to every connected client.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client)}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// BroadcastReply publishes one rendered reply to all clients. Clients whose
// buffers stay full past the send timeout are dropped.
func (b *Broadcaster) BroadcastReply(reply *models.Reply) {
	event := ReplyEvent{
		Type:      "reply",
		SessionID: reply.SessionID,
		Flow:      reply.Flow,
		Reply:     reply.Reply,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE reply event")
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.ch <- data:
		case <-c.done:
		case <-time.After(sendTimeout):
			log.Warn().Str("clientId", c.id).Msg("SSE client too slow, dropping")
			b.remove(c.id)
		}
	}
}

// ServeHTTP handles one SSE connection until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{
		id:   uuid.NewString(),
		ch:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.clients[c.id] = c
	total := len(b.clients)
	b.mu.Unlock()
	defer b.remove(c.id)

	log.Debug().Str("clientId", c.id).Int("totalClients", total).Msg("SSE client connected")

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"clientId\":%q}\n\n", c.id)
	flusher.Flush()

	for {
		select {
		case data := <-c.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		}
	}
}

func (b *Broadcaster) remove(id string) {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	total := len(b.clients)
	b.mu.Unlock()

	if !ok {
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	log.Debug().Str("clientId", id).Int("totalClients", total).Msg("SSE client disconnected")
}
