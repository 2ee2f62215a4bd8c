package webrtc

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrConnectionFailed = errors.New("peer connection failed")
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrChannelClosed    = errors.New("data channel closed")
)

// Signal is an opaque negotiation payload. Only the engine that produced it
// and the engine that consumes it interpret it.
type Signal = json.RawMessage

// NegotiationEngine produces and consumes negotiation payloads for one
// connection attempt and reports when the data channel opens.
//
// Local signals are returned complete: CreateOffer and CreateAnswer wait
// until candidate gathering finishes, so each side emits one payload.
type NegotiationEngine interface {
	CreateOffer(ctx context.Context) (Signal, error)
	CreateAnswer(ctx context.Context, offer Signal) (Signal, error)
	ApplyRemoteSignal(signal Signal) error

	// OnChannelReady fires once, when the data channel is open.
	OnChannelReady(fn func(DataChannel))

	// OnFailure fires at most once, when the transport fails.
	OnFailure(fn func(error))

	Close() error
}

// DataChannel is an open, ordered, reliable message channel.
type DataChannel interface {
	Send(frame []byte) error

	// OnMessage installs the frame handler. Frames received before a
	// handler is installed are delivered to it in order.
	OnMessage(fn func(frame []byte))

	// OnClose fires at most once.
	OnClose(fn func())

	Close() error
}
