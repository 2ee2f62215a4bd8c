package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/config"
	"github.com/BioHazard786/Warprun/internal/peer"
	"github.com/BioHazard786/Warprun/internal/remote"
	"github.com/BioHazard786/Warprun/internal/sandbox"
	"github.com/BioHazard786/Warprun/internal/signaling"
	"github.com/BioHazard786/Warprun/internal/ui"
	"github.com/BioHazard786/Warprun/internal/webrtc"
)

// Session wires one connection attempt: relay client, WebRTC engine,
// coordinator and the execution endpoint.
type Session struct {
	Config   *config.Config
	Sandbox  *sandbox.Sandbox
	Client   *signaling.Client
	Peer     *peer.Coordinator
	Endpoint *remote.Endpoint

	log zerolog.Logger

	roomCreated  chan string
	connected    chan struct{}
	disconnected chan struct{}
	failed       chan error

	connectOnce    sync.Once
	disconnectOnce sync.Once

	outMu sync.Mutex
	out   io.Writer
}

// NewSession connects to the relay and prepares a connection attempt.
func NewSession(ctx context.Context, cfg *config.Config, sb *sandbox.Sandbox, log zerolog.Logger) (*Session, error) {
	s := &Session{
		Config:       cfg,
		Sandbox:      sb,
		log:          log,
		roomCreated:  make(chan string, 1),
		connected:    make(chan struct{}),
		disconnected: make(chan struct{}),
		failed:       make(chan error, 1),
		out:          os.Stdout,
	}

	s.Client = signaling.NewClient(cfg.WebSocketURL(), log.With().Str("component", "signaling").Logger())
	if err := s.Client.Connect(ctx); err != nil {
		return nil, peer.WrapError("connect to server", peer.ErrSignalingConnection, err.Error())
	}

	engine, err := webrtc.NewEngine(webrtc.Options{
		Configuration: webrtc.Configuration(cfg),
		Logger:        log.With().Str("component", "webrtc").Logger(),
	})
	if err != nil {
		s.Client.Close()
		return nil, peer.NewError("create peer connection", err)
	}

	s.Peer = peer.NewCoordinator(s.Client, engine, peer.Handlers{
		OnRoomCreated:  s.onRoomCreated,
		OnConnected:    s.onConnected,
		OnDisconnected: s.onDisconnected,
		OnData:         s.onData,
		OnError:        s.onError,
	}, log.With().Str("component", "peer").Logger())

	s.Endpoint = remote.NewEndpoint(s.Peer, sb, remote.Handlers{
		OnRequest: func(language, code string) {
			s.printf("%s\n", ui.RequestNotice(language, code))
		},
		OnServed: func(language string, err error) {
			if err != nil {
				s.log.Debug().Err(err).Str("language", language).Msg("Served request failed")
			}
		},
	}, log.With().Str("component", "remote").Logger())

	go func() {
		if err := s.Peer.Run(ctx); err != nil {
			s.log.Debug().Err(err).Msg("Coordinator stopped")
		}
	}()

	return s, nil
}

func (s *Session) onRoomCreated(roomID string) {
	select {
	case s.roomCreated <- roomID:
	default:
	}
}

func (s *Session) onConnected() {
	s.connectOnce.Do(func() { close(s.connected) })
}

func (s *Session) onDisconnected() {
	s.disconnectOnce.Do(func() { close(s.disconnected) })
	s.Endpoint.Close()
}

func (s *Session) onData(frame []byte) {
	s.Endpoint.HandleFrame(frame)
}

func (s *Session) onError(err error) {
	select {
	case s.failed <- err:
	default:
	}
	s.disconnectOnce.Do(func() { close(s.disconnected) })
	s.Endpoint.Close()
}

// SetOutput redirects notices, for example into the console's writer.
func (s *Session) SetOutput(w io.Writer) {
	s.outMu.Lock()
	s.out = w
	s.outMu.Unlock()
}

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// AwaitRoom waits for the relay to confirm a created room.
func (s *Session) AwaitRoom(ctx context.Context) (string, error) {
	select {
	case id := <-s.roomCreated:
		return id, nil
	case err := <-s.failed:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AwaitConnected waits until the data channel is open.
func (s *Session) AwaitConnected(ctx context.Context) error {
	select {
	case <-s.connected:
		return nil
	case err := <-s.failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnected is closed when the connection ends, cleanly or not.
func (s *Session) Disconnected() <-chan struct{} {
	return s.disconnected
}

// Close tears everything down.
func (s *Session) Close() {
	s.Endpoint.Close()
	s.Peer.Close()
	s.Client.Close()
}
