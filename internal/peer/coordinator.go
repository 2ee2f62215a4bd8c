package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/signaling"
	"github.com/BioHazard786/Warprun/internal/webrtc"
)

// Signaler carries relay events. signaling.Client implements it.
type Signaler interface {
	SendMessage(msg *signaling.Message)
	Incoming() <-chan *signaling.Message
}

// Handlers receive coordinator events. Any of them may be nil. They are
// called without internal locks held, from the goroutine that caused the
// event.
type Handlers struct {
	OnRoomCreated  func(roomID string)
	OnStateChange  func(from, to State)
	OnConnected    func()
	OnDisconnected func()
	OnData         func(frame []byte)
	OnError        func(err error)
}

// Coordinator drives one connection attempt from room setup to an open
// data channel. There is no retry and no handshake timeout: a stalled
// peer leaves the coordinator waiting until Close.
type Coordinator struct {
	signaler Signaler
	engine   webrtc.NegotiationEngine
	handlers Handlers
	log      zerolog.Logger

	mu       sync.Mutex
	state    State
	role     Role
	roomID   string
	signaled bool // remote signal consumed; later ones are dropped
	channel  webrtc.DataChannel
}

// NewCoordinator wires engine callbacks into a new coordinator in
// StateIdle.
func NewCoordinator(sig Signaler, engine webrtc.NegotiationEngine, handlers Handlers, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		signaler: sig,
		engine:   engine,
		handlers: handlers,
		log:      log,
	}

	engine.OnChannelReady(c.onChannelReady)
	engine.OnFailure(func(err error) {
		c.fail(NewError("transport", fmt.Errorf("%w: %w", ErrPeerConnection, err)))
	})

	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Role returns the role chosen by CreateRoom or JoinRoom.
func (c *Coordinator) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// RoomID returns the room, as confirmed by the relay once created.
func (c *Coordinator) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Connected reports whether the data channel is open.
func (c *Coordinator) Connected() bool {
	return c.State() == StateConnected
}

// CreateRoom makes this side the initiator. An empty roomID asks the relay
// to pick one.
func (c *Coordinator) CreateRoom(roomID string) error {
	return c.start(RoleInitiator, signaling.MessageTypeCreate, roomID)
}

// JoinRoom makes this side the responder.
func (c *Coordinator) JoinRoom(roomID string) error {
	return c.start(RoleResponder, signaling.MessageTypeJoin, roomID)
}

func (c *Coordinator) start(role Role, msgType, roomID string) error {
	c.mu.Lock()
	from, ok := c.transitionLocked(StateSignaling)
	if !ok {
		c.mu.Unlock()
		return WrapError(msgType, ErrInvalidTransition, "state "+from.String())
	}
	c.role = role
	c.roomID = roomID
	c.mu.Unlock()

	c.log.Info().Str("role", role.String()).Str("room_id", roomID).Msg("Starting connection")
	c.changed(from, StateSignaling)
	c.signaler.SendMessage(&signaling.Message{Type: msgType, RoomID: roomID})
	return nil
}

// Run processes relay events until ctx ends or the relay connection
// closes. Losing the relay before the channel is open fails the attempt
// with ErrSignalingConnection; afterwards it is harmless.
func (c *Coordinator) Run(ctx context.Context) error {
	incoming := c.signaler.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-incoming:
			if !ok {
				return c.signalingLost()
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Coordinator) signalingLost() error {
	state := c.State()
	if state == StateConnected || state.Terminal() {
		c.log.Debug().Str("state", state.String()).Msg("Signaling connection closed")
		return nil
	}

	err := NewError("signaling", ErrSignalingConnection)
	c.fail(err)
	return err
}

func (c *Coordinator) handle(ctx context.Context, msg *signaling.Message) {
	c.log.Debug().Str("type", msg.Type).Msg("Relay event")

	switch msg.Type {
	case signaling.MessageTypeCreated:
		c.mu.Lock()
		if msg.RoomID != "" {
			c.roomID = msg.RoomID
		}
		roomID := c.roomID
		c.mu.Unlock()

		if c.handlers.OnRoomCreated != nil {
			c.handlers.OnRoomCreated(roomID)
		}

	case signaling.MessageTypeJoined:
		// ready follows

	case signaling.MessageTypeReady:
		c.onReady(ctx)

	case signaling.MessageTypeSignal:
		c.onSignal(ctx, msg.Payload)

	case signaling.MessageTypePeerLeft:
		if c.State() == StateNegotiating {
			c.fail(NewError("negotiate", fmt.Errorf("%w: %w", ErrPeerConnection, ErrPeerLeft)))
			return
		}
		c.log.Info().Msg("Peer left the room")

	case signaling.MessageTypeError:
		op := "create room"
		if c.Role() == RoleResponder {
			op = "join room"
		}
		c.fail(NewError(op, msg.Err()))

	default:
		c.log.Warn().Str("type", msg.Type).Msg("Unknown relay event")
	}
}

// onReady starts negotiation. Only the initiator speaks first.
func (c *Coordinator) onReady(ctx context.Context) {
	c.mu.Lock()
	from, ok := c.transitionLocked(StateNegotiating)
	role, roomID := c.role, c.roomID
	c.mu.Unlock()

	if !ok {
		return
	}
	c.changed(from, StateNegotiating)

	if role != RoleInitiator {
		return
	}

	offer, err := c.engine.CreateOffer(ctx)
	if err != nil {
		c.fail(NewError("create offer", fmt.Errorf("%w: %w", ErrPeerConnection, err)))
		return
	}

	if c.State() != StateNegotiating {
		return
	}
	c.signaler.SendMessage(&signaling.Message{Type: signaling.MessageTypeSignal, RoomID: roomID, Payload: offer})
}

// onSignal consumes the single remote signal: the answer for the
// initiator, the offer for the responder, which answers exactly once.
func (c *Coordinator) onSignal(ctx context.Context, payload webrtc.Signal) {
	c.mu.Lock()
	state, role, roomID := c.state, c.role, c.roomID
	if state != StateNegotiating {
		c.mu.Unlock()
		c.log.Warn().Str("state", state.String()).Msg("Dropping signal outside negotiation")
		return
	}
	if c.signaled {
		c.mu.Unlock()
		c.log.Warn().Msg("Dropping extra signal")
		return
	}
	c.signaled = true
	c.mu.Unlock()

	if role == RoleInitiator {
		if err := c.engine.ApplyRemoteSignal(payload); err != nil {
			c.fail(NewError("apply answer", fmt.Errorf("%w: %w", ErrPeerConnection, err)))
		}
		return
	}

	answer, err := c.engine.CreateAnswer(ctx, payload)
	if err != nil {
		c.fail(NewError("create answer", fmt.Errorf("%w: %w", ErrPeerConnection, err)))
		return
	}

	if c.State() != StateNegotiating {
		return
	}
	c.signaler.SendMessage(&signaling.Message{Type: signaling.MessageTypeSignal, RoomID: roomID, Payload: answer})
}

func (c *Coordinator) onChannelReady(ch webrtc.DataChannel) {
	c.mu.Lock()
	from, ok := c.transitionLocked(StateConnected)
	if ok {
		c.channel = ch
	}
	c.mu.Unlock()

	if !ok {
		ch.Close()
		return
	}

	ch.OnMessage(c.onFrame)
	ch.OnClose(c.onChannelClosed)

	c.changed(from, StateConnected)
	c.log.Info().Msg("Connected to peer")
	if c.handlers.OnConnected != nil {
		c.handlers.OnConnected()
	}
}

func (c *Coordinator) onFrame(frame []byte) {
	if c.handlers.OnData != nil {
		c.handlers.OnData(frame)
	}
}

func (c *Coordinator) onChannelClosed() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	from, _ := c.transitionLocked(StateClosed)
	c.channel = nil
	c.mu.Unlock()

	c.changed(from, StateClosed)
	c.log.Info().Msg("Peer disconnected")

	go c.engine.Close()
	if c.handlers.OnDisconnected != nil {
		c.handlers.OnDisconnected()
	}
}

func (c *Coordinator) fail(err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		c.log.Debug().Err(err).Msg("Ignoring error after close")
		return
	}
	from, _ := c.transitionLocked(StateErrored)
	c.channel = nil
	c.mu.Unlock()

	c.changed(from, StateErrored)
	c.log.Error().Err(err).Msg("Connection failed")

	go c.engine.Close()
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

// Send transmits one frame. It is a silent no-op unless connected.
func (c *Coordinator) Send(frame []byte) error {
	c.mu.Lock()
	ch := c.channel
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || ch == nil {
		c.log.Debug().Msg("Dropping frame, not connected")
		return nil
	}

	if err := ch.Send(frame); err != nil {
		return NewError("send", err)
	}
	return nil
}

// Close ends the attempt. It fires OnDisconnected when a channel was open.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return nil
	}
	from, _ := c.transitionLocked(StateClosed)
	c.channel = nil
	c.mu.Unlock()

	c.changed(from, StateClosed)
	err := c.engine.Close()

	if from == StateConnected && c.handlers.OnDisconnected != nil {
		c.handlers.OnDisconnected()
	}
	return err
}

// transitionLocked moves to `to` when the edge is legal and returns the
// previous state. Rejections are logged and leave the state unchanged.
func (c *Coordinator) transitionLocked(to State) (State, bool) {
	from := c.state
	if !canTransition(from, to) {
		c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Rejected state transition")
		return from, false
	}
	c.state = to
	return from, true
}

func (c *Coordinator) changed(from, to State) {
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("State changed")
	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(from, to)
	}
}
