package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/events"
	"github.com/gridwalk/server/internal/game"
	"github.com/gridwalk/server/internal/protocol"
	"github.com/gridwalk/server/internal/ws"
)

// HandleFrame parses one wire frame and routes it by type. Parse and
// validation failures earn the sender a single ERROR; they never mutate game
// state or touch other connections.
func (s *Server) HandleFrame(c *ws.Client, frame []byte) {
	msg, werr := protocol.Parse(frame)
	if werr != nil {
		s.sendWireError(c, werr)
		return
	}

	in, werr := protocol.DecodeIncoming(msg)
	if werr != nil {
		s.sendWireError(c, werr)
		return
	}

	switch m := in.(type) {
	case protocol.Connect:
		s.handleConnect(c, m)
	case protocol.Disconnect:
		s.handleDisconnect(c)
	case protocol.Move:
		s.handleMove(c, m)
	case protocol.SetPlayerName:
		s.handleSetPlayerName(c, m)
	case protocol.Restart:
		s.handleRestart(c)
	case protocol.Ping:
		s.sendMessage(c, protocol.NewPong())
	}
}

// HandleClose runs when a transport closes underneath a connection. The
// player moves to the disconnected registry and keeps its position for the
// grace period.
func (s *Server) HandleClose(c *ws.Client) {
	now := time.Now()
	if playerID := c.PlayerID(); playerID != "" {
		if err := s.engine.RemovePlayer(playerID, game.RemoveDisconnect, now); err != nil && !errors.Is(err, game.ErrNoSuchPlayer) {
			s.log.Warn("remove player on close", zap.String("player_id", playerID), zap.Error(err))
		}
	}
	s.hub.MarkDisconnected(c.ClientID(), now)
}

// handleConnect creates a new player or restores a disconnected one. The ack
// is queued before the PlayerJoined event is published, so the joining client
// always receives its CONNECT ack first.
func (s *Server) handleConnect(c *ws.Client, m protocol.Connect) {
	if pid := c.PlayerID(); pid != "" {
		if s.engine.IsActive(pid) {
			s.sendError(c, protocol.CodePlayerAddFailed, "connection is already bound to a player",
				protocol.ErrorContext{Action: "connect", PlayerID: pid, Reason: "already_connected"})
			return
		}
		// The binding is stale: the game was reset underneath this
		// connection. Treat it as unbound and let the client join again.
	}

	now := time.Now()

	if m.PlayerID != "" {
		// A player that is still active never reached the disconnected
		// registry. The new socket takes over the session and any surviving
		// old connection is unbound and closed.
		if taken, joined, err := s.engine.TakeOverPlayer(m.PlayerID, c.ClientID(), now); err == nil {
			if old, ok := s.hub.PlayerClient(m.PlayerID); ok && old.ClientID() != c.ClientID() {
				s.hub.UnbindPlayer(old.ClientID())
				s.hub.MarkDisconnected(old.ClientID(), now)
			}
			s.completeConnect(c, taken.ID, taken.Name, true, joined)
			return
		}

		restored, joined, err := s.engine.RestorePlayer(m.PlayerID, c.ClientID(), now, s.cfg.PlayerGrace())
		switch {
		case err == nil:
			s.completeConnect(c, restored.ID, restored.Name, true, joined)
			return
		case errors.Is(err, game.ErrNoSuchPlayer) || errors.Is(err, game.ErrGraceExpired):
			// Unknown or expired identity: fall through to a fresh join.
			s.log.Info("reconnect rejected, joining as new player",
				zap.String("requested_player_id", m.PlayerID),
				zap.Error(err))
		default:
			s.sendError(c, protocol.CodePlayerAddFailed, "could not restore player",
				protocol.ErrorContext{Action: "connect", PlayerID: m.PlayerID, Reason: "restore_failed"})
			return
		}
	}

	playerID := uuid.New().String()
	playerName := m.PlayerName
	if playerName == "" {
		playerName = fmt.Sprintf("player-%s", playerID[:8])
	}

	hintX, hintY := s.engine.DefaultSpawnHint()
	added, joined, err := s.engine.AddPlayer(playerID, playerName, c.ClientID(), hintX, hintY, now)
	if err != nil {
		code := protocol.CodePlayerAddFailed
		if errors.Is(err, game.ErrNoSpawnCell) {
			code = protocol.CodeNoSpawnCell
		}
		s.sendError(c, code, "could not add player",
			protocol.ErrorContext{Action: "connect", Reason: "spawn_failed"})
		return
	}

	s.completeConnect(c, added.ID, added.Name, false, joined)
}

// completeConnect binds the identity to the connection, queues the CONNECT
// ack and only then publishes the join broadcast.
func (s *Server) completeConnect(c *ws.Client, playerID, playerName string, isReconnection bool, joined events.PlayerJoined) {
	if err := s.hub.BindPlayer(c.ClientID(), playerID, playerName); err != nil {
		// The connection dropped between upgrade and bind; undo the join.
		s.engine.RemovePlayer(playerID, game.RemoveDisconnect, time.Now())
		return
	}

	ack := protocol.NewConnectAck(c.ClientID(), playerID, playerName, isReconnection, s.engine.Snapshot())
	s.sendMessage(c, ack)
	s.bus.Publish(joined)

	s.log.Info("player connected",
		zap.String("client_id", c.ClientID()),
		zap.String("player_id", playerID),
		zap.String("player_name", playerName),
		zap.Bool("is_reconnection", isReconnection))
}

// handleDisconnect is a graceful leave. The player is parked in the
// disconnected registry exactly as if the transport had dropped.
func (s *Server) handleDisconnect(c *ws.Client) {
	playerID := c.PlayerID()
	if playerID == "" {
		s.sendError(c, protocol.CodeNotConnected, "no player bound to this connection",
			protocol.ErrorContext{Action: "disconnect", Reason: "not_connected"})
		return
	}

	now := time.Now()
	if err := s.engine.RemovePlayer(playerID, game.RemoveDisconnect, now); err != nil && !errors.Is(err, game.ErrNoSuchPlayer) {
		s.log.Warn("remove player", zap.String("player_id", playerID), zap.Error(err))
	}
	s.hub.MarkDisconnected(c.ClientID(), now)
}

// handleMove runs the movement validator under the engine mutex. Verdict
// rejections surface as a targeted Bump event, which the default subscriber
// turns into the one ERROR the client receives.
func (s *Server) handleMove(c *ws.Client, m protocol.Move) {
	playerID := c.PlayerID()
	if playerID == "" {
		s.sendError(c, protocol.CodeNotConnected, "connect before moving",
			protocol.ErrorContext{Action: "move", Reason: "not_connected"})
		return
	}

	verdict, err := s.engine.MovePlayer(playerID, m.Dx, m.Dy, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, game.ErrNotRunning):
			s.sendError(c, protocol.CodeGameNotRunning, "game is not running",
				protocol.ErrorContext{Action: "move", PlayerID: playerID, Reason: "not_running"})
		case errors.Is(err, game.ErrInvalidDelta):
			s.sendError(c, protocol.CodeInvalidMove, "move delta must be one step",
				protocol.ErrorContext{Action: "move", PlayerID: playerID, Reason: "invalid_delta"})
		case errors.Is(err, game.ErrNoSuchPlayer):
			s.sendError(c, protocol.CodeNoSuchPlayer, "player is not active",
				protocol.ErrorContext{Action: "move", PlayerID: playerID, Reason: "no_such_player"})
		default:
			s.sendError(c, protocol.CodeInternalError, "move failed",
				protocol.ErrorContext{Action: "move", PlayerID: playerID})
		}
		return
	}

	if verdict.OK() && s.cfg.ImmediateMoveBroadcast() {
		s.publishStateTick()
	}
}

func (s *Server) handleSetPlayerName(c *ws.Client, m protocol.SetPlayerName) {
	playerID := c.PlayerID()
	if playerID == "" {
		s.sendError(c, protocol.CodeNotConnected, "connect before setting a name",
			protocol.ErrorContext{Action: "set_player_name", Reason: "not_connected"})
		return
	}

	if err := s.engine.SetPlayerName(playerID, m.PlayerName, time.Now()); err != nil {
		s.sendError(c, protocol.CodeNoSuchPlayer, "player is not active",
			protocol.ErrorContext{Action: "set_player_name", PlayerID: playerID})
		return
	}
	s.hub.BindPlayer(c.ClientID(), playerID, m.PlayerName)
}

// handleRestart rebuilds the game and broadcasts the fresh state right away.
func (s *Server) handleRestart(c *ws.Client) {
	if c.PlayerID() == "" {
		s.sendError(c, protocol.CodeNotConnected, "connect before restarting",
			protocol.ErrorContext{Action: "restart", Reason: "not_connected"})
		return
	}

	if err := s.engine.Reset(); err != nil {
		s.log.Error("game reset failed", zap.Error(err))
		s.sendError(c, protocol.CodeInternalError, "restart failed",
			protocol.ErrorContext{Action: "restart"})
		return
	}
	s.log.Info("game restarted", zap.String("requested_by", c.PlayerID()))
	s.publishStateTick()
}

func (s *Server) sendMessage(c *ws.Client, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if !c.Send(data) {
		s.hub.MarkDisconnected(c.ClientID(), time.Now())
	}
}

func (s *Server) sendError(c *ws.Client, code, message string, ctx protocol.ErrorContext) {
	s.sendMessage(c, protocol.NewError(code, message, ctx))
}

func (s *Server) sendWireError(c *ws.Client, werr *protocol.WireError) {
	s.sendError(c, werr.Code, werr.Message, protocol.ErrorContext{})
}
