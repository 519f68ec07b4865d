// Package clients tracks the open UI contexts (browser tabs) connected to the
// process and delivers structured messages to them.
package clients

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownClient is returned when a message targets a client that is gone.
var ErrUnknownClient = errors.New("clients: unknown client")

// Message types posted to clients.
const (
	TypeFocus             = "focus"
	TypeNavigate          = "navigate"
	TypeClaim             = "claim"
	TypeNotificationClick = "notification-click"
	TypeQueueReplay       = "queue-replay"
	TypeIncidents         = "incidents"
	TypeCenters           = "centers"
	TypeAlert             = "alert"
)

// Message is one structured event sent to a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Info describes a connected client.
type Info struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Focused bool   `json:"focused"`
}

type client struct {
	info Info
	ch   chan Message
}

// Hub is the registry of connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	origin  string
	buffer  int
	logger  *slog.Logger
}

// NewHub creates a hub for clients served from origin. Messages are buffered
// per client; a client that falls behind loses messages instead of blocking
// the sender.
func NewHub(origin string, buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{clients: make(map[string]*client), origin: origin, buffer: buffer, logger: logger}
}

func (h *Hub) Origin() string { return h.origin }

// Register adds a client and returns its message channel and a release func.
func (h *Hub) Register(id, url string) (<-chan Message, func()) {
	c := &client{info: Info{ID: id, URL: url}, ch: make(chan Message, h.buffer)}
	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old.ch)
	}
	h.clients[id] = c
	h.mu.Unlock()

	release := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.clients[id]; ok && cur == c {
			delete(h.clients, id)
			close(c.ch)
		}
	}
	return c.ch, release
}

// MatchAll lists connected clients, sorted by id.
func (h *Hub) MatchAll() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Info, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SameOrigin reports whether a client URL belongs to the hub's origin.
func (h *Hub) SameOrigin(info Info) bool {
	return h.origin != "" && strings.HasPrefix(info.URL, h.origin)
}

// PostMessage delivers msg to one client.
func (h *Hub) PostMessage(id string, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return ErrUnknownClient
	}
	h.send(c, msg)
	return nil
}

// Broadcast delivers msg to every client and returns how many were reached.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.send(c, msg)
	}
	return len(h.clients)
}

// Focus marks a client as focused and tells it so.
func (h *Hub) Focus(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return ErrUnknownClient
	}
	for _, other := range h.clients {
		other.info.Focused = false
	}
	c.info.Focused = true
	h.send(c, Message{Type: TypeFocus})
	return nil
}

// Navigate asks a client to load url.
func (h *Hub) Navigate(id, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return ErrUnknownClient
	}
	c.info.URL = h.origin + url
	h.send(c, Message{Type: TypeNavigate, Data: map[string]string{"url": url}})
	return nil
}

// Claim tells every client the current worker now controls it.
func (h *Hub) Claim(version string) int {
	return h.Broadcast(Message{Type: TypeClaim, Data: map[string]string{"version": version}})
}

// send must be called with h.mu held.
func (h *Hub) send(c *client, msg Message) {
	select {
	case c.ch <- msg:
	default:
		h.logger.Warn("client message dropped", "client", c.info.ID, "type", msg.Type)
	}
}
