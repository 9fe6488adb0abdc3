// Package server implements the TCP accept loop that ties the connection
// state machine to the application registry and lifecycle hook manager.
//
// The listener lifecycle, connection-tracking map, and hook manager wiring
// follow the same shape as a media-session server, generalized here to a
// plain RPC connection registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rtmpd/fmsgo/internal/app"
	"github.com/rtmpd/fmsgo/internal/logger"
	"github.com/rtmpd/fmsgo/internal/rtmp/conn"
	"github.com/rtmpd/fmsgo/internal/rtmp/hooks"
)

// Config holds the server's startup configuration.
type Config struct {
	ListenAddr       string
	ChunkSize        int
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	KeepAliveTimeout time.Duration

	HookScripts     []string // event_type=script_path pairs
	HookWebhooks    []string // event_type=webhook_url pairs
	HookStdioFormat string
	HookTimeout     string
	HookConcurrency int
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":1935"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 128
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 75 * time.Second
	}
	if c.HookTimeout == "" {
		c.HookTimeout = "30s"
	}
	if c.HookConcurrency == 0 {
		c.HookConcurrency = 10
	}
}

// Server accepts RTMP connections and dispatches them against a shared
// application registry.
type Server struct {
	cfg         Config
	registry    *app.Registry
	hookManager *hooks.HookManager
	log         *slog.Logger

	mu      sync.RWMutex
	l       net.Listener
	conns   map[string]*conn.Connection
	closing bool

	acceptingWg sync.WaitGroup
}

// New creates an unstarted Server bound to registry.
func New(cfg Config, registry *app.Registry) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:         cfg,
		registry:    registry,
		hookManager: newHookManager(cfg, logger.Logger()),
		conns:       make(map[string]*conn.Connection),
		log:         logger.Logger().With("component", "rtmp_server"),
	}
}

// Start binds the listen address and launches the accept loop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("rtmp server listening", "addr", ln.Addr().String())
	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		s.mu.RUnlock()
		if l == nil {
			return
		}
		raw, err := l.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}

		c := conn.New(raw, conn.Config{
			ChunkSize:        s.cfg.ChunkSize,
			HandshakeTimeout: s.cfg.HandshakeTimeout,
			PingInterval:     s.cfg.PingInterval,
			KeepAliveTimeout: s.cfg.KeepAliveTimeout,
			Registry:         s.registry,
			HookManager:      s.hookManager,
		})

		s.mu.Lock()
		s.conns[c.ID()] = c
		s.mu.Unlock()
		s.log.Info("connection accepted", "conn_id", c.ID(), "remote", raw.RemoteAddr().String())
		s.emitEvent(hooks.EventConnectionAccept, c.ID())

		go s.serveAndUntrack(c)
	}
}

func (s *Server) serveAndUntrack(c *conn.Connection) {
	c.Serve()
	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
	s.emitEvent(hooks.EventConnectionClose, c.ID())
}

// Stop closes the listener and every tracked connection, then waits for the
// accept loop to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	s.mu.Unlock()
	_ = l.Close()

	s.mu.RLock()
	conns := make([]*conn.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}

	if s.hookManager != nil {
		s.log.Info("hook manager stats at shutdown", "stats", s.hookManager.GetStats())
		s.hookManager.DisableStdioOutput()
		_ = s.hookManager.Close()
	}

	s.acceptingWg.Wait()
	s.log.Info("rtmp server stopped")
	return nil
}

// Addr returns the bound listener address, or nil if not started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// ConnectionCount returns the number of currently tracked connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Registry exposes the application registry this server dispatches
// against, for the -apps-dir hot-reload watcher to mutate.
func (s *Server) Registry() *app.Registry { return s.registry }

// HookManager exposes the lifecycle hook manager built from Config's
// -hook-script/-hook-webhook flags, so callers can wire it into the
// applications they register before Start (app.Application.WithHookManager)
// and get room_create/room_destroy/client_enter/client_leave/invoke_failed
// events alongside the connection-level ones this package already emits.
func (s *Server) HookManager() *hooks.HookManager { return s.hookManager }

func (s *Server) emitEvent(t hooks.EventType, connID string) {
	if s.hookManager == nil {
		return
	}
	s.hookManager.TriggerEvent(context.Background(), *hooks.NewEvent(t).WithConnID(connID))
}
