package relay

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/signaling"
)

// MaxMembers is the room capacity.
const MaxMembers = 2

// Handle is one connected participant as seen by the registry.
//
// Send must not block: the registry calls it while holding a room lock.
// It reports false when the message was dropped.
type Handle interface {
	ID() string
	Send(msg *signaling.Message) bool
}

// room holds the membership of a single room id. All membership changes
// and all event deliveries for the room happen under mu, which keeps
// events for one room in order.
type room struct {
	id      string
	mu      sync.Mutex
	members []Handle

	// dead is set once the room drained to zero members. Callers holding
	// a stale pointer must look the id up again.
	dead bool
}

func (r *room) has(h Handle) bool {
	for _, m := range r.members {
		if m == h {
			return true
		}
	}
	return false
}

func (r *room) remove(h Handle) bool {
	for i, m := range r.members {
		if m == h {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Registry maps room ids to rooms.
//
// mu only guards the room map and the handle index. It may be taken while
// a room lock is held, never the other way round.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	joined map[Handle]map[string]struct{}

	log zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		joined: make(map[Handle]map[string]struct{}),
		log:    log,
	}
}

func (r *Registry) lookup(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

func (r *Registry) lookupOrCreate(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID}
		r.rooms[roomID] = rm
	}
	return rm
}

func (r *Registry) index(h Handle, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.joined[h]
	if !ok {
		set = make(map[string]struct{})
		r.joined[h] = set
	}
	set[roomID] = struct{}{}
}

func (r *Registry) unindex(h Handle, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.joined[h]
	delete(set, roomID)
	if len(set) == 0 {
		delete(r.joined, h)
	}
}

// Create registers h as a member of roomID, creating the room if absent,
// and acknowledges with a created event.
//
// An id that already has members is not rejected. With one member the
// creator is appended without a ready broadcast. A full room is taken
// over: its members are replaced by the creator and receive peer_left.
// The takeover is the only way a room goes from two members back to one
// without draining first.
func (r *Registry) Create(roomID string, h Handle) {
	for {
		rm := r.lookupOrCreate(roomID)

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}

		var displaced []Handle
		switch {
		case rm.has(h):
		case len(rm.members) < MaxMembers:
			rm.members = append(rm.members, h)
		default:
			displaced = rm.members
			rm.members = []Handle{h}
		}

		r.index(h, roomID)
		for _, d := range displaced {
			r.unindex(d, roomID)
		}

		h.Send(&signaling.Message{Type: signaling.MessageTypeCreated, RoomID: roomID})
		for _, d := range displaced {
			d.Send(&signaling.Message{Type: signaling.MessageTypePeerLeft, RoomID: roomID})
		}
		size := len(rm.members)
		rm.mu.Unlock()

		r.log.Info().
			Str("room_id", roomID).
			Str("client_id", h.ID()).
			Int("members", size).
			Int("displaced", len(displaced)).
			Msg("Room created")
		return
	}
}

// Join adds h to an existing room. It acknowledges h with joined and then
// broadcasts ready to every member, h included.
func (r *Registry) Join(roomID string, h Handle) error {
	for {
		rm := r.lookup(roomID)
		if rm == nil {
			return signaling.ErrRoomNotFound
		}

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}

		// A room inserted by a concurrent Create that has not taken its
		// lock yet is not joinable.
		if len(rm.members) == 0 {
			rm.mu.Unlock()
			return signaling.ErrRoomNotFound
		}

		if rm.has(h) {
			h.Send(&signaling.Message{Type: signaling.MessageTypeJoined, RoomID: roomID})
			rm.mu.Unlock()
			return nil
		}

		if len(rm.members) >= MaxMembers {
			rm.mu.Unlock()
			return signaling.ErrRoomFull
		}

		rm.members = append(rm.members, h)
		r.index(h, roomID)

		h.Send(&signaling.Message{Type: signaling.MessageTypeJoined, RoomID: roomID})
		for _, m := range rm.members {
			m.Send(&signaling.Message{Type: signaling.MessageTypeReady, RoomID: roomID})
		}
		rm.mu.Unlock()

		r.log.Info().Str("room_id", roomID).Str("client_id", h.ID()).Msg("Client joined room")
		return nil
	}
}

// Relay forwards payload as a signal event to every member of roomID
// except sender. Unknown rooms are a no-op. It returns the number of
// members the event was handed to.
func (r *Registry) Relay(roomID string, sender Handle, payload json.RawMessage) int {
	rm := r.lookup(roomID)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.dead {
		return 0
	}

	delivered := 0
	for _, m := range rm.members {
		if m == sender {
			continue
		}
		if m.Send(&signaling.Message{Type: signaling.MessageTypeSignal, RoomID: roomID, Payload: payload}) {
			delivered++
		}
	}
	return delivered
}

// Disconnect removes h from every room it belongs to. Rooms left empty are
// deleted; remaining members receive peer_left.
func (r *Registry) Disconnect(h Handle) {
	r.mu.Lock()
	set := r.joined[h]
	delete(r.joined, h)
	r.mu.Unlock()

	for roomID := range set {
		rm := r.lookup(roomID)
		if rm == nil {
			continue
		}

		rm.mu.Lock()
		if rm.dead || !rm.remove(h) {
			rm.mu.Unlock()
			continue
		}

		if len(rm.members) == 0 {
			rm.dead = true
			r.mu.Lock()
			if r.rooms[roomID] == rm {
				delete(r.rooms, roomID)
			}
			r.mu.Unlock()
			rm.mu.Unlock()

			r.log.Info().Str("room_id", roomID).Msg("Room deleted")
			continue
		}

		for _, m := range rm.members {
			m.Send(&signaling.Message{Type: signaling.MessageTypePeerLeft, RoomID: roomID})
		}
		rm.mu.Unlock()

		r.log.Info().Str("room_id", roomID).Str("client_id", h.ID()).Msg("Peer left room")
	}
}

// Exists reports whether roomID currently has members.
func (r *Registry) Exists(roomID string) bool {
	return r.lookup(roomID) != nil
}

// Members returns the member count of roomID, zero if it does not exist.
func (r *Registry) Members(roomID string) int {
	rm := r.lookup(roomID)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.dead {
		return 0
	}
	return len(rm.members)
}

// Len returns the number of open rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
