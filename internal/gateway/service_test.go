package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/typerace/internal/matchmaking"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/race"
	"github.com/mcdev12/typerace/internal/race/events"
	"github.com/mcdev12/typerace/internal/races"
	"github.com/mcdev12/typerace/internal/stats"
)

type fakeTexts struct{}

func (fakeTexts) RandomText(ctx context.Context, difficulty models.TextDifficulty, category string) (*models.Text, error) {
	return &models.Text{ID: uuid.New(), Content: "pack my box with five dozen liquor jugs"}, nil
}

type fakeRaceStore struct{}

func (fakeRaceStore) CreateRace(ctx context.Context, req races.CreateRaceRequest) (*models.Race, error) {
	return &models.Race{ID: uuid.New(), Type: req.Type, TextID: req.TextID}, nil
}

func (fakeRaceStore) UpdateRaceRecord(ctx context.Context, id uuid.UUID, req races.UpdateRaceRecordRequest) error {
	return nil
}

type fakeStats struct{}

func (fakeStats) ApplyResult(ctx context.Context, userID uuid.UUID, result stats.RaceResult) (*models.UserStats, error) {
	return &models.UserStats{UserID: userID}, nil
}

type fakeStream struct{}

func (fakeStream) Publish(ctx context.Context, eventType string, raceID uuid.UUID, payload any) error {
	return nil
}

type serviceFixture struct {
	svc    *Service
	cm     *ConnectionManager
	queue  *matchmaking.Queue
	engine *race.Engine
	clock  *clockwork.FakeClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cm := NewConnectionManager(DefaultConnectionConfig())
	engine := race.NewEngine(race.DefaultConfig(), clock, fakeTexts{}, fakeRaceStore{}, fakeStats{}, cm, fakeStream{})
	queue := matchmaking.NewQueue(clock)
	svc := NewService(queue, engine, cm)
	return &serviceFixture{svc: svc, cm: cm, queue: queue, engine: engine, clock: clock}
}

// drainBroadcasts empties the manager's pending queue without delivering.
func drainBroadcasts(cm *ConnectionManager) []BroadcastMessage {
	var out []BroadcastMessage
	for {
		select {
		case m := <-cm.broadcastCh:
			out = append(out, m)
		default:
			return out
		}
	}
}

func joinMsg(userID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"type":"join-queue","data":{"userId":%q}}`, userID))
}

// matchedPair joins two connections and returns the resulting session.
func matchedPair(t *testing.T, f *serviceFixture) (*race.Session, *Connection, *Connection) {
	t.Helper()
	a := newTestConn(f.cm, "conn-a")
	b := newTestConn(f.cm, "conn-b")
	ctx := context.Background()

	f.svc.HandleClientMessage(ctx, a, joinMsg(a.UserID))
	f.svc.HandleClientMessage(ctx, b, joinMsg(b.UserID))

	session, ok := f.engine.Registry().GetByConn("conn-a")
	require.True(t, ok)
	return session, a, b
}

// activate advances past the countdown.
func activate(t *testing.T, f *serviceFixture, session *race.Session) {
	t.Helper()
	f.clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		return session.State() == race.SessionStateActive
	}, time.Second, 10*time.Millisecond)
}

func TestMalformedEnvelopeSendsErrorEvent(t *testing.T) {
	f := newServiceFixture(t)
	a := newTestConn(f.cm, "conn-a")

	f.svc.HandleClientMessage(context.Background(), a, []byte("{not json"))

	pending := drainBroadcasts(f.cm)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"conn-a"}, pending[0].ConnIDs)
	assert.Equal(t, events.EventTypeError, pending[0].Event.Type)
}

func TestJoinQueueFirstPlayerWaits(t *testing.T) {
	f := newServiceFixture(t)
	a := newTestConn(f.cm, "conn-a")

	f.svc.HandleClientMessage(context.Background(), a, joinMsg(a.UserID))

	assert.Equal(t, 1, f.queue.Len())
	assert.Zero(t, f.engine.Registry().Len())

	pending := drainBroadcasts(f.cm)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"conn-a"}, pending[0].ConnIDs)
	assert.Equal(t, events.EventTypeWaitingForOpponent, pending[0].Event.Type)
}

func TestJoinQueueSecondPlayerFormsSession(t *testing.T) {
	f := newServiceFixture(t)
	session, _, _ := matchedPair(t, f)

	assert.Zero(t, f.queue.Len())
	assert.Equal(t, 1, f.engine.Registry().Len())

	var matched []BroadcastMessage
	for _, m := range drainBroadcasts(f.cm) {
		if m.Event.Type == events.EventTypeRaceMatched {
			matched = append(matched, m)
		}
	}
	require.Len(t, matched, 1)
	assert.Equal(t, session.ID, matched[0].SessionID)
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, matched[0].ConnIDs)
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	f := newServiceFixture(t)
	a := newTestConn(f.cm, "conn-a")

	f.svc.HandleClientMessage(context.Background(), a, []byte(`{"type":"teleport","data":{}}`))

	assert.Empty(t, drainBroadcasts(f.cm))
	assert.Zero(t, f.queue.Len())
}

func TestDisconnectRemovesWaitingPlayer(t *testing.T) {
	f := newServiceFixture(t)
	a := newTestConn(f.cm, "conn-a")
	f.svc.HandleClientMessage(context.Background(), a, joinMsg(a.UserID))
	drainBroadcasts(f.cm)

	f.svc.HandleDisconnect("conn-a")

	assert.Zero(t, f.queue.Len())
	assert.Zero(t, f.engine.Registry().Len())
	assert.Empty(t, drainBroadcasts(f.cm), "no abort events for a player who was only waiting")
}

func TestDisconnectMidSessionNotifiesOpponentOnly(t *testing.T) {
	f := newServiceFixture(t)
	session, a, b := matchedPair(t, f)
	drainBroadcasts(f.cm)

	f.svc.HandleDisconnect("conn-a")

	assert.Zero(t, f.engine.Registry().Len())
	assert.Equal(t, race.SessionStateAborted, session.State())

	flushBroadcasts(f.cm)
	_, ok := receivedEvent(t, a)
	assert.False(t, ok)
	ev, ok := receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeRaceAborted, ev.Type)
}

func TestProgressRelayDoesNotEchoToSender(t *testing.T) {
	f := newServiceFixture(t)
	session, a, b := matchedPair(t, f)
	drainBroadcasts(f.cm)
	activate(t, f, session)

	msg := []byte(fmt.Sprintf(
		`{"type":"race-progress","data":{"sessionId":%q,"currentIndex":7,"wpm":55,"accuracy":96.5}}`,
		session.ID,
	))
	f.svc.HandleClientMessage(context.Background(), a, msg)

	flushBroadcasts(f.cm)
	_, ok := receivedEvent(t, a)
	assert.False(t, ok, "sender must not receive its own progress back")
	ev, ok := receivedEvent(t, b)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeOpponentProgress, ev.Type)
}

func TestRaceFinishedRoutesToEngine(t *testing.T) {
	f := newServiceFixture(t)
	session, a, b := matchedPair(t, f)
	drainBroadcasts(f.cm)
	activate(t, f, session)

	finish := func(wpm int) []byte {
		return []byte(fmt.Sprintf(
			`{"type":"race-finished","data":{"sessionId":%q,"wpm":%d,"accuracy":95,"errors":1,"timeTaken":30}}`,
			session.ID, wpm,
		))
	}
	f.svc.HandleClientMessage(context.Background(), a, finish(80))
	f.svc.HandleClientMessage(context.Background(), b, finish(60))

	assert.Equal(t, race.SessionStateCompleted, session.State())
	assert.Zero(t, f.engine.Registry().Len())

	// The results broadcast is already queued even though the session topic
	// is gone; both players still receive it.
	flushBroadcasts(f.cm)
	var got []events.Event
	for _, conn := range []*Connection{a, b} {
		for {
			ev, ok := receivedEvent(t, conn)
			if !ok {
				break
			}
			got = append(got, ev)
		}
	}
	var results int
	for _, ev := range got {
		if ev.Type == events.EventTypeRaceResults {
			results++
		}
	}
	assert.Equal(t, 2, results)
}
