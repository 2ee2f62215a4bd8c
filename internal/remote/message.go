package remote

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type constants.
const (
	MessageTypeExecute = "execute"
	MessageTypeResult  = "result"
)

var ErrMalformedMessage = errors.New("malformed message")

// Message is one frame on the data channel. An execute frame carries
// Language and Code. A result frame carries exactly one of Result and
// Error.
type Message struct {
	Type     string  `msgpack:"type"`
	Language string  `msgpack:"language,omitempty"`
	Code     string  `msgpack:"code,omitempty"`
	Result   *string `msgpack:"result,omitempty"`
	Error    *string `msgpack:"error,omitempty"`
}

func NewExecute(language, code string) *Message {
	return &Message{Type: MessageTypeExecute, Language: language, Code: code}
}

func NewResult(result string) *Message {
	return &Message{Type: MessageTypeResult, Result: &result}
}

func NewErrorResult(message string) *Message {
	return &Message{Type: MessageTypeResult, Error: &message}
}

// Encode marshals msg after checking it is well formed.
func Encode(msg *Message) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}

// Decode parses and validates one frame. Every failure wraps
// ErrMalformedMessage.
func Decode(frame []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Message) validate() error {
	switch m.Type {
	case MessageTypeExecute:
		if m.Language == "" {
			return fmt.Errorf("%w: execute without language", ErrMalformedMessage)
		}
	case MessageTypeResult:
		if (m.Result == nil) == (m.Error == nil) {
			return fmt.Errorf("%w: result needs exactly one of result and error", ErrMalformedMessage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, m.Type)
	}
	return nil
}
