package stream

import "sync"

// Hub groups connected clients into per-session rooms and fans payloads
// out to them. Delivery is best-effort: a subscriber whose send buffer
// is full misses that payload and catches up on the next one.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// Client is one connected websocket peer. Subscriptions are tracked on
// the client so a closing connection can be pulled out of every room it
// joined.
type Client struct {
	Send   chan []byte
	subs   map[string]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{rooms: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Register(buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		Send: make(chan []byte, buffer),
		subs: map[string]struct{}{},
	}
}

// Unregister removes the client from every room and closes its send
// channel. Calling it again is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	for sessionID := range client.subs {
		h.dropLocked(sessionID, client)
	}
	client.subs = map[string]struct{}{}
	client.closed = true
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = map[*Client]struct{}{}
	}
	h.rooms[sessionID][client] = struct{}{}
	client.subs[sessionID] = struct{}{}
}

func (h *Hub) Unsubscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.subs, sessionID)
	h.dropLocked(sessionID, client)
}

func (h *Hub) dropLocked(sessionID string, client *Client) {
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// SendTo delivers a payload to one client only.
func (h *Hub) SendTo(client *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client.closed {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

// Subscribers reports the current room size for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
