package relay

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/signaling"
)

var errRoomIDTooLong = errors.New("room id is too long")

// Hub is the central brain of the signaling server.
// It owns the room registry and the set of connected clients.
//
// There is no hub goroutine: each client dispatches its own messages from
// its read pump, and the registry's per-room locks serialize what matters.
type Hub struct {
	rooms *Registry

	mu      sync.RWMutex
	clients map[*Client]struct{}

	log zerolog.Logger
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}

// NewHub creates a new Hub instance.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:   NewRegistry(log.With().Str("component", "registry").Logger()),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Rooms exposes the registry.
func (h *Hub) Rooms() *Registry {
	return h.rooms
}

// Register tracks a newly connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("client_id", c.ID()).Str("remote", c.RemoteAddr()).Msg("Client registered")
}

// Unregister removes c from every room and stops its write pump.
// Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.rooms.Disconnect(c)
	c.closeSend()

	h.log.Debug().Str("client_id", c.ID()).Msg("Client unregistered")
}

// Dispatch handles one message from c.
func (h *Hub) Dispatch(c *Client, msg *signaling.Message) {
	roomID := strings.TrimSpace(msg.RoomID)
	log := h.log.With().Str("client_id", c.ID()).Str("room_id", roomID).Str("type", msg.Type).Logger()

	if len(roomID) > MaxRoomIDLength {
		log.Warn().Msg("Rejected oversized room id")
		c.Send(signaling.ErrorFor(errRoomIDTooLong))
		return
	}

	switch msg.Type {
	case signaling.MessageTypeCreate:
		if roomID == "" {
			roomID = generateRoomID(h.rooms.Exists)
		}
		h.rooms.Create(roomID, c)

	case signaling.MessageTypeJoin:
		if err := h.rooms.Join(roomID, c); err != nil {
			log.Info().Err(err).Msg("Room join failed")
			c.Send(signaling.ErrorFor(err))
		}

	case signaling.MessageTypeSignal:
		n := h.rooms.Relay(roomID, c, msg.Payload)
		log.Debug().Int("delivered", n).Msg("Relayed signal")

	default:
		log.Warn().Msg("Unknown message type")
	}
}

// Stats reports the number of connected clients and open rooms.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()

	return Stats{Clients: clients, Rooms: h.rooms.Len()}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
