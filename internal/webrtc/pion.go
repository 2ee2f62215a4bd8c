package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/logging"
)

// ChannelLabel names the single data channel of a connection.
const ChannelLabel = "warprun"

// Options configures a PionEngine.
type Options struct {
	Configuration pion.Configuration

	// API overrides the pion API, e.g. one bound to a virtual network.
	API *pion.API

	Logger zerolog.Logger
}

// PionEngine implements NegotiationEngine on a pion PeerConnection.
// The initiator creates the data channel; the responder receives it.
type PionEngine struct {
	pc  *pion.PeerConnection
	log zerolog.Logger

	mu        sync.Mutex
	channel   *channel
	onReady   func(DataChannel)
	onFailure func(error)
	ready     DataChannel
	failure   error
	readyOnce sync.Once
	failOnce  sync.Once
}

// NewEngine creates the peer connection for one connection attempt.
func NewEngine(opts Options) (*PionEngine, error) {
	api := opts.API
	if api == nil {
		se := pion.SettingEngine{LoggerFactory: logging.PionLoggerFactory{Logger: opts.Logger}}
		api = pion.NewAPI(pion.WithSettingEngine(se))
	}

	pc, err := api.NewPeerConnection(opts.Configuration)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	e := &PionEngine{pc: pc, log: opts.Logger}

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != ChannelLabel {
			e.log.Warn().Str("label", dc.Label()).Msg("Ignoring unexpected data channel")
			return
		}
		e.attach(dc)
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		e.log.Debug().Str("state", state.String()).Msg("Peer connection state changed")

		switch state {
		case pion.PeerConnectionStateFailed:
			e.fail(ErrConnectionFailed)
			e.closeChannel()
		case pion.PeerConnectionStateClosed:
			e.closeChannel()
		}
	})

	return e, nil
}

func (e *PionEngine) attach(dc *pion.DataChannel) {
	ch := newChannel(dc)

	e.mu.Lock()
	e.channel = ch
	e.mu.Unlock()

	dc.OnOpen(func() {
		e.log.Debug().Str("label", dc.Label()).Msg("Data channel open")
		e.readyOnce.Do(func() {
			e.mu.Lock()
			fn := e.onReady
			if fn == nil {
				e.ready = ch
			}
			e.mu.Unlock()

			if fn != nil {
				fn(ch)
			}
		})
	})
}

func (e *PionEngine) closeChannel() {
	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()

	if ch != nil {
		ch.markClosed()
	}
}

func (e *PionEngine) fail(err error) {
	e.failOnce.Do(func() {
		e.mu.Lock()
		fn := e.onFailure
		if fn == nil {
			e.failure = err
		}
		e.mu.Unlock()

		if fn != nil {
			fn(err)
		}
	})
}

// OnChannelReady implements NegotiationEngine.
func (e *PionEngine) OnChannelReady(fn func(DataChannel)) {
	e.mu.Lock()
	e.onReady = fn
	pending := e.ready
	e.ready = nil
	e.mu.Unlock()

	if pending != nil {
		fn(pending)
	}
}

// OnFailure implements NegotiationEngine.
func (e *PionEngine) OnFailure(fn func(error)) {
	e.mu.Lock()
	e.onFailure = fn
	pending := e.failure
	e.failure = nil
	e.mu.Unlock()

	if pending != nil {
		fn(pending)
	}
}

// CreateOffer creates the data channel and returns the complete offer.
func (e *PionEngine) CreateOffer(ctx context.Context) (Signal, error) {
	dc, err := e.pc.CreateDataChannel(ChannelLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	e.attach(dc)

	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	return e.localDescription(ctx, offer)
}

// CreateAnswer applies the remote offer and returns the complete answer.
func (e *PionEngine) CreateAnswer(ctx context.Context, offer Signal) (Signal, error) {
	desc, err := decodeDescription(offer, pion.SDPTypeOffer)
	if err != nil {
		return nil, err
	}

	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}

	return e.localDescription(ctx, answer)
}

// ApplyRemoteSignal applies the remote answer.
func (e *PionEngine) ApplyRemoteSignal(signal Signal) error {
	desc, err := decodeDescription(signal, pion.SDPTypeAnswer)
	if err != nil {
		return err
	}

	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// localDescription sets desc and waits for candidate gathering so the
// returned description carries every candidate.
func (e *PionEngine) localDescription(ctx context.Context, desc pion.SessionDescription) (Signal, error) {
	gathered := pion.GatheringCompletePromise(e.pc)

	if err := e.pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, fmt.Errorf("gather candidates: %w", ctx.Err())
	}

	data, err := json.Marshal(e.pc.LocalDescription())
	if err != nil {
		return nil, fmt.Errorf("encode description: %w", err)
	}
	return data, nil
}

// Close tears down the peer connection.
func (e *PionEngine) Close() error {
	err := e.pc.Close()
	e.closeChannel()
	return err
}

func decodeDescription(signal Signal, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(signal, &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrUnexpectedSignal, err)
	}
	if desc.Type != want || desc.SDP == "" {
		return desc, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedSignal, desc.Type, want)
	}
	return desc, nil
}
