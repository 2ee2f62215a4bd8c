package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNotConnected    = errors.New("not connected to a peer")
	ErrRequestInFlight = errors.New("a remote request is already in flight")
	ErrDisconnected    = errors.New("peer disconnected")
)

// errBusy is sent back when an execute arrives while another is served.
const errBusy = "peer is busy running another request"

// Channel transmits frames to the peer. peer.Coordinator implements it.
type Channel interface {
	Send(frame []byte) error
	Connected() bool
}

// Executor runs code for an inbound request. sandbox.Sandbox implements it.
type Executor interface {
	Execute(ctx context.Context, language, code string) (string, error)
}

// RemoteError is an execution failure reported by the peer.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Handlers observe requests served for the peer. Any of them may be nil.
type Handlers struct {
	OnRequest func(language, code string)
	OnServed  func(language string, err error)
}

type reply struct {
	result string
	err    error
}

// Endpoint speaks the execution protocol over one connection. It keeps at
// most one outgoing request and serves at most one inbound request at a
// time.
type Endpoint struct {
	channel  Channel
	executor Executor
	handlers Handlers
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending chan reply
	serving bool
	closed  bool
}

// NewEndpoint creates an endpoint. A nil executor refuses inbound requests.
func NewEndpoint(channel Channel, executor Executor, handlers Handlers, log zerolog.Logger) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		channel:  channel,
		executor: executor,
		handlers: handlers,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Execute asks the peer to run code and waits for the result. When ctx
// ends first the request stays outstanding until its result arrives or
// the endpoint closes.
func (e *Endpoint) Execute(ctx context.Context, language, code string) (string, error) {
	frame, err := Encode(NewExecute(language, code))
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return "", ErrDisconnected
	case !e.channel.Connected():
		e.mu.Unlock()
		return "", ErrNotConnected
	case e.pending != nil:
		e.mu.Unlock()
		return "", ErrRequestInFlight
	}
	wait := make(chan reply, 1)
	e.pending = wait
	e.mu.Unlock()

	if err := e.channel.Send(frame); err != nil {
		e.mu.Lock()
		if e.pending == wait {
			e.pending = nil
		}
		e.mu.Unlock()
		return "", err
	}

	e.log.Debug().Str("language", language).Msg("Sent execute request")

	select {
	case r := <-wait:
		return r.result, r.err
	case <-ctx.Done():
		e.log.Debug().Msg("Abandoned remote request")
		return "", ctx.Err()
	}
}

// Pending reports whether an outgoing request awaits its result.
func (e *Endpoint) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// HandleFrame processes one inbound frame. Malformed frames are logged
// and dropped.
func (e *Endpoint) HandleFrame(frame []byte) {
	msg, err := Decode(frame)
	if err != nil {
		e.log.Warn().Err(err).Int("bytes", len(frame)).Msg("Dropping frame")
		return
	}

	switch msg.Type {
	case MessageTypeExecute:
		e.serve(msg.Language, msg.Code)
	case MessageTypeResult:
		e.complete(msg)
	}
}

func (e *Endpoint) complete(msg *Message) {
	e.mu.Lock()
	wait := e.pending
	e.pending = nil
	e.mu.Unlock()

	if wait == nil {
		e.log.Warn().Msg("Dropping result with no outstanding request")
		return
	}

	if msg.Error != nil {
		wait <- reply{err: &RemoteError{Message: *msg.Error}}
		return
	}
	wait <- reply{result: *msg.Result}
}

func (e *Endpoint) serve(language, code string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.serving || e.executor == nil {
		e.mu.Unlock()
		e.log.Warn().Str("language", language).Msg("Refusing execute request")
		e.reply(NewErrorResult(errBusy))
		return
	}
	e.serving = true
	e.mu.Unlock()

	if e.handlers.OnRequest != nil {
		e.handlers.OnRequest(language, code)
	}

	go func() {
		result, err := e.executor.Execute(e.ctx, language, code)

		e.mu.Lock()
		e.serving = false
		e.mu.Unlock()

		if e.handlers.OnServed != nil {
			e.handlers.OnServed(language, err)
		}

		if err != nil {
			e.reply(NewErrorResult(err.Error()))
			return
		}
		e.reply(NewResult(result))
	}()
}

func (e *Endpoint) reply(msg *Message) {
	frame, err := Encode(msg)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to encode result")
		return
	}
	if err := e.channel.Send(frame); err != nil {
		e.log.Warn().Err(err).Msg("Failed to send result")
	}
}

// Close fails the outstanding request with ErrDisconnected and cancels
// any request being served.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	wait := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.cancel()
	if wait != nil {
		wait <- reply{err: ErrDisconnected}
	}
}
