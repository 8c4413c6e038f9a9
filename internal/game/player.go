package game

import "time"

// Player is one character on the board. ClientID is a key into the connection
// registry, never a reference; it is empty while the player sits in the
// disconnected registry.
type Player struct {
	ID           string
	Name         string
	ClientID     string
	X            int
	Y            int
	ConnectedAt  time.Time
	LastActivity time.Time
}
