package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"classroom-poll-service/internal/domain"
	"classroom-poll-service/internal/metrics"
	"github.com/google/uuid"
)

const sendBuffer = 32

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Hub tracks open connections and fans events out to their send queues.
// It implements app.Broadcaster.
type Hub struct {
	log     *slog.Logger
	mu      sync.RWMutex
	clients map[string]chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{log: logger, clients: make(map[string]chan []byte)}
}

// Register allocates a connection handle and its outbound queue.
func (h *Hub) Register() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, sendBuffer)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unregister closes the connection's queue; pending messages are still drained by the writer.
func (h *Hub) Unregister(id string) {
	h.remove(id)
}

func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	close(ch)
	return true
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes ev once and queues it on every connection.
func (h *Hub) Broadcast(ev domain.Event) {
	msg, ok := h.encode(ev)
	if !ok {
		return
	}
	var full []string
	h.mu.RLock()
	for id, ch := range h.clients {
		if !enqueue(ch, msg) {
			full = append(full, id)
		}
	}
	h.mu.RUnlock()
	h.evict(full...)
}

// Send queues ev on one connection; unknown handles are ignored.
func (h *Hub) Send(id string, ev domain.Event) {
	msg, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	ch, ok := h.clients[id]
	delivered := !ok || enqueue(ch, msg)
	h.mu.RUnlock()
	if !delivered {
		h.evict(id)
	}
}

// evict closes the queues of connections that fell behind. Their writers close the
// socket, and the client recovers state by joining again.
func (h *Hub) evict(ids ...string) {
	for _, id := range ids {
		if !h.remove(id) {
			continue
		}
		metrics.ClientsEvicted.Inc()
		h.log.Warn("send queue full, dropping connection", "conn_id", id)
	}
}

func (h *Hub) encode(ev domain.Event) ([]byte, bool) {
	msg, err := json.Marshal(outboundMessage[any]{Type: ev.Type, Payload: ev.Payload})
	if err != nil {
		h.log.Error("encode event", "type", ev.Type, "error", err)
		return nil, false
	}
	return msg, true
}

// enqueue never blocks; it reports false when the queue is full.
func enqueue(ch chan []byte, msg []byte) bool {
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
