package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/gridwalk/server/internal/events"
	"github.com/gridwalk/server/internal/protocol"
)

// subscribeEvents installs the default subscriber that turns game events into
// wire messages. All events share one subscriber, so joins, leaves, bumps and
// state broadcasts reach the send queues in publish order.
func (s *Server) subscribeEvents() {
	err := s.bus.Subscribe(func(ev events.Event) {
		switch e := ev.(type) {
		case events.PlayerJoined:
			s.broadcastMessage(protocol.NewPlayerJoined(e))
		case events.PlayerLeft:
			s.broadcastMessage(protocol.NewPlayerLeft(e.PlayerID))
		case events.Bump:
			s.sendTargeted(e.ClientID, protocol.NewBumpError(e))
		case events.StateTick:
			s.hub.Broadcast(e.Frame)
		}
	})
	if err != nil {
		s.log.Error("subscribe to game events", zap.Error(err))
	}
}

func (s *Server) broadcastMessage(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode broadcast", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) sendTargeted(clientID string, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error("encode targeted message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if !s.hub.SendToClient(clientID, data) {
		s.log.Debug("targeted message dropped, client gone",
			zap.String("client_id", clientID),
			zap.String("type", msg.Type),
			zap.Time("at", time.Now()))
	}
}
