package signaling

import (
	"encoding/json"
	"errors"
)

// Message is the JSON envelope exchanged between peers and the relay.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Client to relay.
	MessageTypeCreate = "create"
	MessageTypeJoin   = "join"

	// Both directions.
	MessageTypeSignal = "signal"

	// Relay to client.
	MessageTypeCreated  = "created"
	MessageTypeJoined   = "joined"
	MessageTypeReady    = "ready"
	MessageTypePeerLeft = "peer_left"
	MessageTypeError    = "error"
)

// Error codes carried in ErrorPayload.Code.
const (
	CodeRoomNotFound = "room_not_found"
	CodeRoomFull     = "room_full"
	CodeBadRequest   = "bad_request"
)

var (
	ErrRoomNotFound = errors.New("room does not exist")
	ErrRoomFull     = errors.New("room is full")
)

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewErrorMessage builds an error event.
func NewErrorMessage(code, text string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Error: text, Code: code})
	return &Message{Type: MessageTypeError, Payload: payload}
}

// ErrorFor builds the error event for err, using the room sentinels' codes
// where they apply.
func ErrorFor(err error) *Message {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return NewErrorMessage(CodeRoomNotFound, "Room does not exist")
	case errors.Is(err, ErrRoomFull):
		return NewErrorMessage(CodeRoomFull, "Room is full")
	default:
		return NewErrorMessage(CodeBadRequest, err.Error())
	}
}

// Err decodes an error event back into an error. Known codes map to the
// package sentinels so callers can use errors.Is.
func (m *Message) Err() error {
	if m.Type != MessageTypeError {
		return nil
	}

	var payload ErrorPayload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return errors.New("malformed error from relay")
	}

	switch payload.Code {
	case CodeRoomNotFound:
		return ErrRoomNotFound
	case CodeRoomFull:
		return ErrRoomFull
	}

	if payload.Error == "" {
		return errors.New("unknown relay error")
	}
	return errors.New(payload.Error)
}
