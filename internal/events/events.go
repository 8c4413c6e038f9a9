// Package events is the in-process publish/subscribe layer for game events.
// All events flow through a single topic with a single default subscriber, so
// delivery order matches publish order; that is what guarantees clients see a
// PLAYER_JOINED before the first STATE_UPDATE that contains the player.
package events

import (
	"time"

	messagebus "github.com/vardius/message-bus"
)

const gameTopic = "game.events"

// BumpKind names the obstacle that rejected a move.
type BumpKind string

const (
	BumpWall        BumpKind = "wall"
	BumpPlayer      BumpKind = "player"
	BumpEntity      BumpKind = "entity"
	BumpOutOfBounds BumpKind = "out_of_bounds"
)

// Event is implemented by every game event carried on the bus.
type Event interface {
	eventKind() string
}

// PlayerJoined is broadcast after a player is added or restored.
type PlayerJoined struct {
	ClientID       string
	PlayerID       string
	PlayerName     string
	X              int
	Y              int
	IsReconnection bool
}

// PlayerLeft is broadcast after a player disconnects or quits.
type PlayerLeft struct {
	PlayerID string
}

// Bump is targeted at the connection whose move was rejected.
type Bump struct {
	ClientID      string // target connection
	PlayerID      string
	Kind          BumpKind
	AttemptedX    int
	AttemptedY    int
	CurrentX      int
	CurrentY      int
	OtherPlayerID string
	OtherEntityID string
	At            time.Time
}

// StateTick carries one encoded STATE_UPDATE frame for broadcast. The frame
// is built when the tick is published, not when it is delivered, so a tick
// enqueued before a join broadcasts the pre-join state. Routing state
// broadcasts through the bus keeps them ordered with respect to join/leave
// events.
type StateTick struct {
	Frame []byte
}

func (PlayerJoined) eventKind() string { return "player_joined" }
func (PlayerLeft) eventKind() string   { return "player_left" }
func (Bump) eventKind() string         { return "bump" }
func (StateTick) eventKind() string    { return "state_tick" }

// Bus wraps the message bus with a typed publish/subscribe surface over the
// closed event set above.
type Bus struct {
	mb messagebus.MessageBus
}

// NewBus creates a bus whose per-subscriber queue holds up to queueSize
// pending events.
func NewBus(queueSize int) *Bus {
	return &Bus{mb: messagebus.New(queueSize)}
}

// Publish enqueues an event for every subscriber. Never blocks the publisher
// unless a subscriber queue is full.
func (b *Bus) Publish(ev Event) {
	b.mb.Publish(gameTopic, ev)
}

// Subscribe registers fn for every game event. Each subscriber receives
// events in publish order.
func (b *Bus) Subscribe(fn func(Event)) error {
	return b.mb.Subscribe(gameTopic, fn)
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mb.Close(gameTopic)
}
