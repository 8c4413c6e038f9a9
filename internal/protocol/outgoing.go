package protocol

import (
	"encoding/json"

	"github.com/gridwalk/server/internal/events"
	"github.com/gridwalk/server/internal/game"
)

// ConnectAckPayload answers a CONNECT with the assigned identity and a full
// state snapshot.
type ConnectAckPayload struct {
	ClientID       string        `json:"clientId"`
	PlayerID       string        `json:"playerId"`
	PlayerName     string        `json:"playerName"`
	IsReconnection bool          `json:"isReconnection"`
	GameState      game.Snapshot `json:"gameState"`
}

type PlayerJoinedPayload struct {
	ClientID       string `json:"clientId"`
	PlayerID       string `json:"playerId"`
	PlayerName     string `json:"playerName"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	IsReconnection bool   `json:"isReconnection"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type ErrorContext struct {
	Action        string `json:"action,omitempty"`
	PlayerID      string `json:"playerId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OtherPlayerID string `json:"otherPlayerId,omitempty"`
	OtherEntityID string `json:"otherEntityId,omitempty"`
}

type ErrorPayload struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Context ErrorContext `json:"context"`
}

// NewConnectAck builds the CONNECT acknowledgement for a joined or restored
// player.
func NewConnectAck(clientID, playerID, playerName string, isReconnection bool, snap game.Snapshot) Message {
	return build(TypeConnect, ConnectAckPayload{
		ClientID:       clientID,
		PlayerID:       playerID,
		PlayerName:     playerName,
		IsReconnection: isReconnection,
		GameState:      snap,
	})
}

// NewStateUpdate builds the periodic full-state broadcast from a snapshot.
func NewStateUpdate(snap game.Snapshot) Message {
	return build(TypeStateUpdate, snap)
}

// NewPlayerJoined builds the join broadcast from the bus event.
func NewPlayerJoined(ev events.PlayerJoined) Message {
	return build(TypePlayerJoined, PlayerJoinedPayload{
		ClientID:       ev.ClientID,
		PlayerID:       ev.PlayerID,
		PlayerName:     ev.PlayerName,
		X:              ev.X,
		Y:              ev.Y,
		IsReconnection: ev.IsReconnection,
	})
}

// NewPlayerLeft builds the leave broadcast.
func NewPlayerLeft(playerID string) Message {
	return build(TypePlayerLeft, PlayerLeftPayload{PlayerID: playerID})
}

// NewError builds an ERROR message with a stable code.
func NewError(code, message string, ctx ErrorContext) Message {
	return build(TypeError, ErrorPayload{Code: code, Message: message, Context: ctx})
}

// NewPong answers a PING.
func NewPong() Message {
	return build(TypePong, struct{}{})
}

// NewBumpError translates a rejected move into the single ERROR message the
// offending client receives.
func NewBumpError(ev events.Bump) Message {
	ctx := ErrorContext{
		Action:        "move",
		PlayerID:      ev.PlayerID,
		Reason:        string(ev.Kind),
		OtherPlayerID: ev.OtherPlayerID,
		OtherEntityID: ev.OtherEntityID,
	}
	switch ev.Kind {
	case events.BumpWall:
		return NewError(CodeMoveFailedWall, "move blocked by a wall", ctx)
	case events.BumpPlayer:
		return NewError(CodeMoveFailedPlayer, "move blocked by another player", ctx)
	case events.BumpEntity:
		return NewError(CodeMoveFailedEntity, "move blocked by an entity", ctx)
	default:
		return NewError(CodeOutOfBounds, "move would leave the board", ctx)
	}
}

func build(msgType string, payload any) Message {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload types are plain structs; marshalling them cannot fail.
		raw = json.RawMessage("{}")
	}
	return Message{
		Type:      msgType,
		Payload:   raw,
		Timestamp: nowMillis(),
	}
}
