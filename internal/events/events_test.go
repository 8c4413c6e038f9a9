package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

func TestSubscriberReceivesPublishOrder(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ch := make(chan Event, 16)
	require.NoError(t, bus.Subscribe(func(ev Event) { ch <- ev }))

	bus.Publish(PlayerJoined{PlayerID: "p1"})
	bus.Publish(StateTick{})
	bus.Publish(PlayerLeft{PlayerID: "p1"})

	got := drain(t, ch, 3)
	assert.Equal(t, PlayerJoined{PlayerID: "p1"}, got[0])
	assert.Equal(t, StateTick{}, got[1])
	assert.Equal(t, PlayerLeft{PlayerID: "p1"}, got[2])
}

func TestAllSubscribersSeeEveryEvent(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	a := make(chan Event, 4)
	b := make(chan Event, 4)
	require.NoError(t, bus.Subscribe(func(ev Event) { a <- ev }))
	require.NoError(t, bus.Subscribe(func(ev Event) { b <- ev }))

	bump := Bump{ClientID: "c1", Kind: BumpWall, At: time.Unix(0, 0)}
	bus.Publish(bump)

	assert.Equal(t, Event(bump), drain(t, a, 1)[0])
	assert.Equal(t, Event(bump), drain(t, b, 1)[0])
}
