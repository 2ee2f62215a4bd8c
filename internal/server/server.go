package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warprun/internal/config"
	"github.com/BioHazard786/Warprun/internal/relay"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front of the signaling relay.
type Server struct {
	hub    *relay.Hub
	router chi.Router
	http   *http.Server
	log    zerolog.Logger
}

// ClientOptions derives websocket settings from cfg. Zero values keep the
// defaults.
func ClientOptions(cfg config.RelayConfig) relay.Options {
	opts := relay.DefaultOptions()
	if cfg.WriteWait > 0 {
		opts.WriteWait = cfg.WriteWait
	}
	if cfg.PongWait > 0 {
		opts.PongWait = cfg.PongWait
		opts.PingPeriod = (cfg.PongWait * 9) / 10
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	if cfg.SendBuffer > 0 {
		opts.SendBuffer = cfg.SendBuffer
	}
	return opts
}

// New creates a Server for hub.
func New(hub *relay.Hub, opts relay.Options, log zerolog.Logger) *Server {
	s := &Server{
		hub:    hub,
		router: NewRouter(hub, opts, log),
		log:    log,
	}
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// NewRouter mounts the relay routes.
func NewRouter(hub *relay.Hub, opts relay.Options, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(log))

	r.Get("/health", healthCheck)
	r.Get("/stats", stats(hub))
	r.Get("/ws", ServeWs(hub, opts, log))

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info().Str("addr", l.Addr().String()).Msg("Relay listening")
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and drops every websocket client.
// Upgraded connections are hijacked, so http.Server does not track them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	s.hub.CloseAll()
	return err
}
