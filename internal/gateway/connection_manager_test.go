package gateway

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/typerace/internal/race/events"
)

// newTestConn registers a connection without a live socket; delivery is
// observed on the buffered Send channel.
func newTestConn(cm *ConnectionManager, id string) *Connection {
	conn := &Connection{
		ID:      id,
		UserID:  uuid.New(),
		Send:    make(chan []byte, 8),
		Manager: cm,
	}
	cm.registerConnection(conn)
	return conn
}

// flushBroadcasts drains the pending queue through the delivery path, the
// same way the Start loop does.
func flushBroadcasts(cm *ConnectionManager) {
	for {
		select {
		case m := <-cm.broadcastCh:
			cm.handleBroadcast(m)
		default:
			return
		}
	}
}

// receivedEvent pops one delivered event, or reports none pending.
func receivedEvent(t *testing.T, conn *Connection) (events.Event, bool) {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		if !ok {
			return events.Event{}, false
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev, true
	default:
		return events.Event{}, false
	}
}

func TestBroadcastToSessionDeliversToAllSubscribers(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	b := newTestConn(cm, "conn-b")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a", "conn-b"})

	cm.BroadcastToSession(sessionID, events.Event{Type: events.EventTypeRaceMatched})
	flushBroadcasts(cm)

	ev, ok := receivedEvent(t, a)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceMatched, ev.Type)
	ev, ok = receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceMatched, ev.Type)
}

func TestBroadcastToSessionExceptSkipsSender(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	b := newTestConn(cm, "conn-b")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a", "conn-b"})

	cm.BroadcastToSessionExcept(sessionID, "conn-a", events.Event{Type: events.EventTypeOpponentProgress})
	flushBroadcasts(cm)

	_, ok := receivedEvent(t, a)
	assert.False(t, ok, "sender must not receive its own progress back")
	ev, ok := receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeOpponentProgress, ev.Type)
}

func TestSendToConnTargetsOneConnection(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	b := newTestConn(cm, "conn-b")

	cm.SendToConn("conn-a", events.Event{Type: events.EventTypeWaitingForOpponent})
	flushBroadcasts(cm)

	ev, ok := receivedEvent(t, a)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeWaitingForOpponent, ev.Type)
	_, ok = receivedEvent(t, b)
	assert.False(t, ok)
}

func TestBroadcastSurvivesImmediateUnsubscribe(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	b := newTestConn(cm, "conn-b")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a", "conn-b"})

	// The engine broadcasts results and tears the session down right after;
	// the queued event must still reach both players.
	cm.BroadcastToSession(sessionID, events.Event{Type: events.EventTypeRaceResults})
	cm.Unsubscribe(sessionID)
	flushBroadcasts(cm)

	ev, ok := receivedEvent(t, a)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceResults, ev.Type)
	ev, ok = receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceResults, ev.Type)
}

func TestBroadcastAfterUnsubscribeDeliversNothing(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a"})
	cm.Unsubscribe(sessionID)

	cm.BroadcastToSession(sessionID, events.Event{Type: events.EventTypeRaceResults})
	flushBroadcasts(cm)

	_, ok := receivedEvent(t, a)
	assert.False(t, ok)
	assert.Zero(t, cm.GetConnectionStats().ActiveSessions)
}

func TestSubscribeIgnoresUnknownConnections(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a", "conn-gone"})

	cm.BroadcastToSession(sessionID, events.Event{Type: events.EventTypeRaceMatched})
	flushBroadcasts(cm)

	_, ok := receivedEvent(t, a)
	assert.True(t, ok)
}

func TestUnregisterRemovesConnectionFromTopics(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	a := newTestConn(cm, "conn-a")
	b := newTestConn(cm, "conn-b")
	sessionID := uuid.New()
	cm.Subscribe(sessionID, []string{"conn-a", "conn-b"})

	cm.unregisterConnection(a)

	cm.BroadcastToSession(sessionID, events.Event{Type: events.EventTypeRaceAborted})
	flushBroadcasts(cm)

	_, ok := receivedEvent(t, a)
	assert.False(t, ok, "send channel closed on unregister")
	ev, ok := receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceAborted, ev.Type)

	stats := cm.GetConnectionStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveSessions)
}
