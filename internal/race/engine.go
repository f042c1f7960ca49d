package race

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/matchmaking"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/race/events"
	"github.com/mcdev12/typerace/internal/races"
	"github.com/mcdev12/typerace/internal/stats"
)

// TextProvider defines what the engine needs from the text corpus.
type TextProvider interface {
	RandomText(ctx context.Context, difficulty models.TextDifficulty, category string) (*models.Text, error)
}

// RaceStore defines what the engine needs from race persistence.
type RaceStore interface {
	CreateRace(ctx context.Context, req races.CreateRaceRequest) (*models.Race, error)
	UpdateRaceRecord(ctx context.Context, id uuid.UUID, req races.UpdateRaceRecordRequest) error
}

// StatsApp defines what the engine needs from the stats collaborator.
type StatsApp interface {
	ApplyResult(ctx context.Context, userID uuid.UUID, result stats.RaceResult) (*models.UserStats, error)
}

// Broadcaster is the per-session publish/subscribe surface the gateway
// implements. The engine subscribes a session's connections at creation and
// unsubscribes them at destruction; broadcasts never block the caller.
type Broadcaster interface {
	Subscribe(sessionID uuid.UUID, connIDs []string)
	Unsubscribe(sessionID uuid.UUID)
	BroadcastToSession(sessionID uuid.UUID, event events.Event)
	BroadcastToSessionExcept(sessionID uuid.UUID, exceptConnID string, event events.Event)
	SendToConn(connID string, event events.Event)
}

// StreamPublisher publishes race lifecycle events to the event stream.
type StreamPublisher interface {
	Publish(ctx context.Context, eventType string, raceID uuid.UUID, payload any) error
}

// Stream event types published by the engine.
const (
	StreamEventRaceStarted   = "RaceStarted"
	StreamEventRaceCompleted = "RaceCompleted"
	StreamEventRaceAborted   = "RaceAborted"
)

// Config holds the engine's timing knobs.
type Config struct {
	// CountdownDuration is the fixed delay between match formation and the
	// race start.
	CountdownDuration time.Duration
	// CompletionCeiling is the hard deadline after the race starts; a
	// session that is not fully completed by then aborts rather than
	// holding its participants forever.
	CompletionCeiling time.Duration
	// TextDifficulty is the difficulty bucket sessions draw passages from.
	TextDifficulty models.TextDifficulty
}

// DefaultConfig returns the production timing configuration.
func DefaultConfig() Config {
	return Config{
		CountdownDuration: 3 * time.Second,
		CompletionCeiling: 10 * time.Minute,
		TextDifficulty:    models.TextDifficultyMedium,
	}
}

// Engine coordinates race sessions end to end: creating a session for a
// matched pair, running the countdown, relaying progress, aggregating
// completions into a result, and destroying the session.
type Engine struct {
	cfg         Config
	clock       clockwork.Clock
	registry    *Registry
	texts       TextProvider
	raceStore   RaceStore
	stats       StatsApp
	broadcaster Broadcaster
	stream      StreamPublisher
}

// NewEngine creates a race engine.
func NewEngine(cfg Config, clock clockwork.Clock, texts TextProvider, raceStore RaceStore, statsApp StatsApp, broadcaster Broadcaster, stream StreamPublisher) *Engine {
	return &Engine{
		cfg:         cfg,
		clock:       clock,
		registry:    NewRegistry(),
		texts:       texts,
		raceStore:   raceStore,
		stats:       statsApp,
		broadcaster: broadcaster,
		stream:      stream,
	}
}

// Registry exposes the engine's session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// CreateSession forms a session for a matched pair: it fetches an immutable
// text snapshot, persists the race shell, schedules the countdown, and
// notifies both participants. If the text lookup or the initial persist
// fails the match aborts and both players are told, rather than being left
// in a matching state forever.
func (e *Engine) CreateSession(ctx context.Context, pair []matchmaking.Entry) (*Session, error) {
	if len(pair) != 2 {
		return nil, fmt.Errorf("session requires exactly two participants, got %d", len(pair))
	}

	sessionID := uuid.New()

	text, err := e.texts.RandomText(ctx, e.cfg.TextDifficulty, "")
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("text lookup failed, aborting match")
		e.notifyMatchFailed(pair)
		return nil, fmt.Errorf("fetch text for session: %w", err)
	}

	participants := [2]Participant{
		{UserID: pair[0].UserID, ConnID: pair[0].ConnID},
		{UserID: pair[1].UserID, ConnID: pair[1].ConnID},
	}

	// The row stays open here; started_at is written once the countdown
	// actually elapses.
	now := e.clock.Now()
	raceRec, err := e.raceStore.CreateRace(ctx, races.CreateRaceRequest{
		Type:   models.RaceTypeMultiplayer,
		TextID: text.ID,
		Participants: []models.RaceParticipant{
			{UserID: participants[0].UserID},
			{UserID: participants[1].UserID},
		},
	})
	if err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("race persist failed, aborting match")
		e.notifyMatchFailed(pair)
		return nil, fmt.Errorf("create race record: %w", err)
	}

	session := &Session{
		ID:               sessionID,
		RaceID:           raceRec.ID,
		Participants:     participants,
		Text:             *text,
		ScheduledStartAt: now.Add(e.cfg.CountdownDuration),
		CreatedAt:        now,
		state:            SessionStateCountdownScheduled,
		progress:         make(map[uuid.UUID]Progress, 2),
		completions:      make(map[uuid.UUID]Completion, 2),
	}

	e.registry.Add(session)
	e.broadcaster.Subscribe(sessionID, []string{participants[0].ConnID, participants[1].ConnID})

	e.broadcaster.BroadcastToSession(sessionID, events.Event{
		Type: events.EventTypeRaceMatched,
		Data: events.RaceMatchedPayload{
			SessionID: sessionID,
			Text:      text.Content,
			Participants: []events.ParticipantRef{
				{UserID: participants[0].UserID},
				{UserID: participants[1].UserID},
			},
			StartTime: session.ScheduledStartAt,
		},
	})

	session.mu.Lock()
	session.countdownTimer = e.clock.AfterFunc(e.cfg.CountdownDuration, func() {
		e.activateSession(sessionID)
	})
	session.mu.Unlock()

	log.Info().
		Str("session_id", sessionID.String()).
		Str("race_id", raceRec.ID.String()).
		Str("user_a", participants[0].UserID.String()).
		Str("user_b", participants[1].UserID.String()).
		Time("start_at", session.ScheduledStartAt).
		Msg("session created")
	return session, nil
}

// notifyMatchFailed tells both members of a failed pair that the match is
// off so their clients can leave the matching state.
func (e *Engine) notifyMatchFailed(pair []matchmaking.Entry) {
	for _, entry := range pair {
		e.broadcaster.SendToConn(entry.ConnID, events.Event{
			Type: events.EventTypeRaceAborted,
			Data: events.RaceAbortedPayload{Reason: events.AbortReasonTextUnavailable},
		})
	}
}

// activateSession flips a session to Active when its countdown elapses and
// arms the completion ceiling timer.
func (e *Engine) activateSession(sessionID uuid.UUID) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.mu.Lock()
	if session.state != SessionStateCountdownScheduled {
		session.mu.Unlock()
		return
	}
	now := e.clock.Now()
	session.state = SessionStateActive
	session.startedAt = &now
	session.ceilingTimer = e.clock.AfterFunc(e.cfg.CompletionCeiling, func() {
		e.abortSession(sessionID, events.AbortReasonDeadlineExceeded, "")
	})
	session.mu.Unlock()

	log.Info().
		Str("session_id", sessionID.String()).
		Msg("countdown elapsed, session active")

	if err := e.stream.Publish(context.Background(), StreamEventRaceStarted, session.RaceID, events.RaceStartedPayload{
		SessionID: sessionID,
		StartedAt: now,
	}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to publish RaceStarted")
	}
}

// ReportProgress overwrites a participant's progress snapshot and relays the
// same payload to the other participant. Events naming an unknown session or
// a non-participant are dropped. The current index is clamped to the text
// length and never moves backwards; a stale lower-index update is ignored.
func (e *Engine) ReportProgress(sessionID, userID uuid.UUID, currentIndex, wpm int, accuracy float64) error {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		log.Debug().Str("session_id", sessionID.String()).Msg("progress for unknown session dropped")
		return ErrSessionNotFound
	}
	if !session.HasParticipant(userID) {
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("user_id", userID.String()).
			Msg("progress from non-participant dropped")
		return ErrNotParticipant
	}

	if currentIndex < 0 {
		currentIndex = 0
	}
	if max := len(session.Text.Content); currentIndex > max {
		currentIndex = max
	}

	session.mu.Lock()
	if session.state != SessionStateActive {
		session.mu.Unlock()
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("state", string(session.State())).
			Msg("progress outside active state dropped")
		return nil
	}
	if prev, ok := session.progress[userID]; ok && currentIndex < prev.CurrentIndex {
		session.mu.Unlock()
		return nil
	}
	session.progress[userID] = Progress{
		UserID:       userID,
		CurrentIndex: currentIndex,
		WPM:          wpm,
		Accuracy:     accuracy,
	}
	senderConn := ""
	for _, p := range session.Participants {
		if p.UserID == userID {
			senderConn = p.ConnID
		}
	}
	session.mu.Unlock()

	e.broadcaster.BroadcastToSessionExcept(sessionID, senderConn, events.Event{
		Type: events.EventTypeOpponentProgress,
		Data: events.OpponentProgressPayload{
			UserID:       userID,
			CurrentIndex: currentIndex,
			WPM:          wpm,
			Accuracy:     accuracy,
		},
	})
	return nil
}

// ReportCompletion stores a participant's completion record, overwriting any
// earlier report from the same user. Once every participant has a record the
// session finalizes: the winner is computed, the race row and both stats
// profiles are updated, results are broadcast, and the session is destroyed.
func (e *Engine) ReportCompletion(ctx context.Context, sessionID, userID uuid.UUID, report CompletionReport) error {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		log.Debug().Str("session_id", sessionID.String()).Msg("completion for unknown session dropped")
		return ErrSessionNotFound
	}
	if !session.HasParticipant(userID) {
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("user_id", userID.String()).
			Msg("completion from non-participant dropped")
		return ErrNotParticipant
	}

	// Same floor the solo endpoint enforces; a negative WPM must not drag
	// XP or the running average down.
	if report.WPM < 0 {
		report.WPM = 0
	}

	session.mu.Lock()
	if session.state != SessionStateActive {
		session.mu.Unlock()
		return nil
	}
	session.completions[userID] = Completion{
		UserID:      userID,
		WPM:         report.WPM,
		Accuracy:    report.Accuracy,
		Errors:      report.Errors,
		TimeTaken:   report.TimeTaken,
		CompletedAt: e.clock.Now(),
	}
	allDone := len(session.completions) == len(session.Participants)
	if allDone {
		// Transition under the lock so a duplicate report can never
		// finalize twice.
		session.state = SessionStateCompleted
		now := e.clock.Now()
		session.endedAt = &now
	}
	session.mu.Unlock()

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("user_id", userID.String()).
		Int("wpm", report.WPM).
		Bool("all_done", allDone).
		Msg("completion recorded")

	if !allDone {
		return nil
	}
	e.finalizeSession(ctx, session)
	return nil
}

// finalizeSession computes the outcome of a fully completed session,
// persists it, updates stats, broadcasts results, and drops the session.
func (e *Engine) finalizeSession(ctx context.Context, session *Session) {
	session.mu.Lock()
	if session.ceilingTimer != nil {
		session.ceilingTimer.Stop()
	}
	winner := e.pickWinner(session)
	session.winnerID = &winner
	winnerID := *session.winnerID
	startedAt := session.startedAt

	results := make([]events.ParticipantResult, 0, len(session.Participants))
	record := make([]models.RaceParticipant, 0, len(session.Participants))
	for _, p := range session.Participants {
		c := session.completions[p.UserID]
		completedAt := c.CompletedAt
		results = append(results, events.ParticipantResult{
			UserID:      c.UserID,
			WPM:         c.WPM,
			Accuracy:    c.Accuracy,
			Errors:      c.Errors,
			TimeTaken:   c.TimeTaken,
			CompletedAt: completedAt,
		})
		record = append(record, models.RaceParticipant{
			UserID:      c.UserID,
			WPM:         c.WPM,
			Accuracy:    c.Accuracy,
			Errors:      c.Errors,
			TimeTaken:   c.TimeTaken,
			CompletedAt: &completedAt,
		})
	}
	endedAt := session.endedAt
	session.mu.Unlock()

	// Persistence failure does not block the broadcast: clients still get
	// their result, and the gap is logged for reconciliation.
	if err := e.raceStore.UpdateRaceRecord(ctx, session.RaceID, races.UpdateRaceRecordRequest{
		Participants: record,
		WinnerID:     &winnerID,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
	}); err != nil {
		log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Str("race_id", session.RaceID.String()).
			Msg("failed to persist race result")
	}

	for _, p := range session.Participants {
		c := session.completions[p.UserID]
		if _, err := e.stats.ApplyResult(ctx, p.UserID, stats.RaceResult{
			WPM: c.WPM,
			Won: p.UserID == winnerID,
		}); err != nil {
			log.Error().Err(err).
				Str("session_id", session.ID.String()).
				Str("user_id", p.UserID.String()).
				Msg("failed to update user stats")
		}
	}

	e.broadcaster.BroadcastToSession(session.ID, events.Event{
		Type: events.EventTypeRaceResults,
		Data: events.RaceResultsPayload{
			SessionID:    session.ID,
			Participants: results,
			Winner:       winnerID,
		},
	})

	if err := e.stream.Publish(ctx, StreamEventRaceCompleted, session.RaceID, events.RaceResultsPayload{
		SessionID:    session.ID,
		Participants: results,
		Winner:       winnerID,
	}); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to publish RaceCompleted")
	}

	e.destroySession(session.ID)

	log.Info().
		Str("session_id", session.ID.String()).
		Str("winner_id", winnerID.String()).
		Msg("session completed")
}

// pickWinner returns the participant with the highest WPM. Ties break on
// the earlier completion time, then on pairing order. Callers hold
// session.mu.
func (e *Engine) pickWinner(session *Session) uuid.UUID {
	best := session.Participants[0].UserID
	bestC := session.completions[best]
	for _, p := range session.Participants[1:] {
		c := session.completions[p.UserID]
		switch {
		case c.WPM > bestC.WPM:
			best, bestC = p.UserID, c
		case c.WPM == bestC.WPM && c.CompletedAt.Before(bestC.CompletedAt):
			best, bestC = p.UserID, c
		}
	}
	return best
}

// HandleDisconnect cleans up after a dropped connection. A player still in
// a countdown or an active race takes the session down with them: the
// opponent is notified and the session aborts instead of waiting forever.
func (e *Engine) HandleDisconnect(connID string) {
	session, ok := e.registry.GetByConn(connID)
	if !ok {
		return
	}
	e.abortSession(session.ID, events.AbortReasonOpponentDisconnected, connID)
}

// abortSession moves a session onto the terminal abort path: timers are
// cancelled, remaining participants are notified, the race row is closed
// without a winner, and the session is destroyed. exceptConnID suppresses
// the notification to the connection that caused the abort.
func (e *Engine) abortSession(sessionID uuid.UUID, reason events.AbortReason, exceptConnID string) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return
	}

	session.mu.Lock()
	if session.state == SessionStateCompleted || session.state == SessionStateAborted {
		session.mu.Unlock()
		return
	}
	session.state = SessionStateAborted
	now := e.clock.Now()
	session.endedAt = &now
	startedAt := session.startedAt
	if session.countdownTimer != nil {
		session.countdownTimer.Stop()
	}
	if session.ceilingTimer != nil {
		session.ceilingTimer.Stop()
	}
	session.mu.Unlock()

	e.broadcaster.BroadcastToSessionExcept(sessionID, exceptConnID, events.Event{
		Type: events.EventTypeRaceAborted,
		Data: events.RaceAbortedPayload{SessionID: sessionID, Reason: reason},
	})

	if err := e.raceStore.UpdateRaceRecord(context.Background(), session.RaceID, races.UpdateRaceRecordRequest{
		StartedAt: startedAt,
		EndedAt:   &now,
	}); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to close aborted race record")
	}

	if err := e.stream.Publish(context.Background(), StreamEventRaceAborted, session.RaceID, events.RaceAbortedPayload{
		SessionID: sessionID,
		Reason:    reason,
	}); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to publish RaceAborted")
	}

	e.destroySession(sessionID)

	log.Info().
		Str("session_id", sessionID.String()).
		Str("reason", string(reason)).
		Msg("session aborted")
}

// destroySession removes a session from the registry and tears down its
// broadcast topic. No session ID is ever reused.
func (e *Engine) destroySession(sessionID uuid.UUID) {
	e.broadcaster.Unsubscribe(sessionID)
	e.registry.Remove(sessionID)
}
