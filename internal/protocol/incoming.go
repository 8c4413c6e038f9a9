package protocol

import "encoding/json"

// Incoming is the closed set of client message variants. All dispatch past
// the codec happens on these types, never on raw payload fields.
type Incoming interface {
	isIncoming()
}

// Connect joins the game. A known PlayerID within the grace period means
// reconnection; otherwise a new player is created.
type Connect struct {
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

// Disconnect is a graceful leave.
type Disconnect struct{}

// Move requests a one-step move.
type Move struct {
	Dx int `json:"dx"`
	Dy int `json:"dy"`
}

// SetPlayerName updates the display name.
type SetPlayerName struct {
	PlayerName string `json:"playerName"`
}

// Restart requests a game reset.
type Restart struct{}

// Ping is a keepalive; the server answers with PONG.
type Ping struct{}

func (Connect) isIncoming()       {}
func (Disconnect) isIncoming()    {}
func (Move) isIncoming()          {}
func (SetPlayerName) isIncoming() {}
func (Restart) isIncoming()       {}
func (Ping) isIncoming()          {}

// DecodeIncoming validates the type tag and payload shape of a parsed
// envelope and returns the typed variant.
func DecodeIncoming(msg Message) (Incoming, *WireError) {
	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	switch msg.Type {
	case TypeConnect:
		var p Connect
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	case TypeDisconnect:
		var p Disconnect
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	case TypeMove:
		var p Move
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	case TypeSetPlayerName:
		var p SetPlayerName
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		if p.PlayerName == "" {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	case TypeRestart:
		var p Restart
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	case TypePing:
		var p Ping
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, invalidInput(msg.Type)
		}
		return p, nil
	default:
		return nil, &WireError{Code: CodeInvalidType, Message: "unknown message type " + msg.Type}
	}
}

func invalidInput(msgType string) *WireError {
	return &WireError{Code: CodeInvalidInput, Message: "invalid payload for " + msgType}
}
