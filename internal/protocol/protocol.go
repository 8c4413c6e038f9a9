// Package protocol is the only place that touches the on-wire message
// format. Every frame is a UTF-8 JSON envelope carrying a type tag, a
// payload object and a millisecond timestamp.
package protocol

import (
	"encoding/json"
	"time"
)

// Client -> server type tags.
const (
	TypeConnect       = "CONNECT"
	TypeDisconnect    = "DISCONNECT"
	TypeMove          = "MOVE"
	TypeSetPlayerName = "SET_PLAYER_NAME"
	TypeRestart       = "RESTART"
	TypePing          = "PING"
)

// Server -> client type tags. CONNECT doubles as the ack tag.
const (
	TypeStateUpdate  = "STATE_UPDATE"
	TypePlayerJoined = "PLAYER_JOINED"
	TypePlayerLeft   = "PLAYER_LEFT"
	TypeError        = "ERROR"
	TypePong         = "PONG"
)

// Error codes carried in ERROR payloads.
const (
	CodeMalformedJSON = "MALFORMED_JSON"
	CodeMissingType   = "MISSING_TYPE"
	CodeInvalidType   = "INVALID_TYPE"
	CodeInvalidInput  = "INVALID_INPUT"

	CodeNotConnected  = "NOT_CONNECTED"
	CodeUnknownClient = "UNKNOWN_CLIENT"
	CodeGraceExpired  = "GRACE_EXPIRED"

	CodeGameNotRunning   = "GAME_NOT_RUNNING"
	CodeInvalidMove      = "INVALID_MOVE"
	CodeMoveFailedWall   = "MOVE_FAILED_WALL"
	CodeMoveFailedEntity = "MOVE_FAILED_ENTITY"
	CodeMoveFailedPlayer = "MOVE_FAILED_PLAYER"
	CodeOutOfBounds      = "OUT_OF_BOUNDS"
	CodeNoSuchPlayer     = "NO_SUCH_PLAYER"
	CodeNoSuchEntity     = "NO_SUCH_ENTITY"
	CodeEntityConflict   = "ENTITY_CONFLICT"
	CodeNoSpawnCell      = "NO_SPAWN_CELL"
	CodePlayerAddFailed  = "PLAYER_ADD_FAILED"

	CodeInternalError  = "INTERNAL_ERROR"
	CodeServerShutdown = "SERVER_SHUTDOWN"
)

// Message is the wire envelope.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	ClientID  string          `json:"clientId,omitempty"`
}

// WireError pairs a stable protocol code with a human-readable message.
type WireError struct {
	Code    string
	Message string
}

func (e *WireError) Error() string { return e.Code + ": " + e.Message }

// Overridable clock for deterministic tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Encode serializes a message to wire bytes.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Parse reads the envelope from wire bytes. Payload stays raw; DecodeIncoming
// turns it into a typed variant.
func Parse(raw []byte) (Message, *WireError) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, &WireError{Code: CodeMalformedJSON, Message: "message is not valid JSON"}
	}
	if msg.Type == "" {
		return Message{}, &WireError{Code: CodeMissingType, Message: "message has no type"}
	}
	return msg, nil
}
