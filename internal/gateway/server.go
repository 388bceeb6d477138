// Package gateway is the voxgate HTTP + WebSocket surface: provider
// webhooks in, media streams through, dashboard reads out.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/engine"
	"github.com/voxgate/voxgate/internal/logging"
	"github.com/voxgate/voxgate/internal/notify"
	"github.com/voxgate/voxgate/internal/store"
	"github.com/voxgate/voxgate/internal/version"
	"github.com/voxgate/voxgate/internal/voice"
)

// Server is the voxgate gateway server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	engine  *engine.Engine
	hub     *Hub
	version string

	// Optional collaborators.
	bridge  *voice.Bridge
	relay   notify.EventRelay
	callLog store.CallLog

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithBridge enables the voice media stream endpoints.
func WithBridge(b *voice.Bridge) ServerOption {
	return func(s *Server) { s.bridge = b }
}

// WithRelay forwards delivery status callbacks to the workflow engine.
func WithRelay(r notify.EventRelay) ServerOption {
	return func(s *Server) { s.relay = r }
}

// WithCallLog exposes finished calls on the dashboard API.
func WithCallLog(cl store.CallLog) ServerOption {
	return func(s *Server) { s.callLog = cl }
}

// WithHub substitutes a shared observer hub, so the engine and the
// voice bridge can be wired to the same one before the server exists.
func WithHub(h *Hub) ServerOption {
	return func(s *Server) { s.hub = h }
}

// New creates a gateway server around an engine.
func New(cfg config.Config, eng *engine.Engine, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		engine:  eng,
		version: version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Provider media streams and dashboard clients are not
			// browsers posting from foreign origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.hub = NewHub(log.Sub("observers"))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub exposes the observer hub so the engine and voice bridge can push
// updates through it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	handler := withMiddleware(mux, s.log)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // media stream sockets outlive any write deadline
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("delivery", s.cfg.Delivery.Mode).
		Bool("voice", s.bridge != nil).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
