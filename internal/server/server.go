// Package server hosts the accept loop, the message router, the periodic
// tickers and the graceful shutdown sequence.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/config"
	"github.com/gridwalk/server/internal/events"
	"github.com/gridwalk/server/internal/game"
	"github.com/gridwalk/server/internal/protocol"
	"github.com/gridwalk/server/internal/ws"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // terminal clients connect from anywhere
	},
}

// Server ties the engine, the hub and the event bus together behind the HTTP
// shell.
type Server struct {
	cfg     *config.Config
	log     *zap.Logger
	engine  *game.Engine
	hub     *ws.Hub
	bus     *events.Bus
	httpSrv *http.Server
}

// New wires the default event subscriber and installs the server as the
// hub's frame handler.
func New(cfg *config.Config, log *zap.Logger, engine *game.Engine, hub *ws.Hub, bus *events.Bus) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
		hub:    hub,
		bus:    bus,
	}
	hub.SetHandler(s)
	s.subscribeEvents()
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
// A bind failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router()}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	tickerCtx, stopTickers := context.WithCancel(context.Background())
	defer stopTickers()
	go s.runBroadcastTicker(tickerCtx)
	go s.runPurgeTicker(tickerCtx)

	s.log.Info("server listening",
		zap.String("addr", addr),
		zap.String("mode", s.cfg.MoveBroadcastMode),
		zap.Duration("broadcast_interval", s.cfg.BroadcastInterval()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stopTickers()
		s.shutdown()
		return nil
	}
}

// router builds the HTTP shell: health endpoint plus the websocket upgrade.
func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// handleWebSocket upgrades the HTTP request and registers the connection.
// The CONNECT ack is sent once the client identifies itself.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.Register(conn, s.cfg.PingInterval(), writeTimeout)
}

// publishStateTick encodes the current state and enqueues it on the bus for
// broadcast. Encoding happens here, at publish time, so a tick queued ahead
// of a join never leaks the joined player into a STATE_UPDATE that is
// delivered before the PLAYER_JOINED.
func (s *Server) publishStateTick() {
	msg := protocol.NewStateUpdate(s.engine.Snapshot())
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode state update", zap.Error(err))
		return
	}
	s.bus.Publish(events.StateTick{Frame: data})
}

// runBroadcastTicker publishes a state frame on every period. Going through
// the bus keeps state updates ordered behind join/leave events.
func (s *Server) runBroadcastTicker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BroadcastInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ActiveCount() > 0 {
				s.publishStateTick()
			}
		}
	}
}

// runPurgeTicker sweeps both disconnected registries.
func (s *Server) runPurgeTicker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PurgeInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			conns := s.hub.Purge(now, s.cfg.ConnectionGrace())
			players := s.engine.PurgeExpired(now, s.cfg.PlayerGrace())
			if conns > 0 || players > 0 {
				s.log.Info("purged expired entries",
					zap.Int("connections", conns),
					zap.Int("players", players))
			}
		}
	}
}

// shutdown tells every client the server is going away, closes transports
// and drains the HTTP listener.
func (s *Server) shutdown() {
	s.log.Info("shutting down")

	farewell := protocol.NewError(protocol.CodeServerShutdown, "server is shutting down", protocol.ErrorContext{})
	if data, err := protocol.Encode(farewell); err == nil {
		s.hub.Broadcast(data)
	}

	// Give the write pumps a moment to flush the farewell.
	time.Sleep(100 * time.Millisecond)
	s.hub.CloseAll()
	s.bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", zap.Error(err))
	}
}
