package race

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/typerace/internal/models"
)

// SessionState defines where a session sits in its lifecycle. Transitions
// are monotonic; no state is ever re-entered.
type SessionState string

const (
	SessionStateCountdownScheduled SessionState = "COUNTDOWN_SCHEDULED"
	SessionStateActive             SessionState = "ACTIVE"
	SessionStateCompleted          SessionState = "COMPLETED"
	SessionStateAborted            SessionState = "ABORTED"
)

var (
	// ErrSessionNotFound is returned for events naming an unknown session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotParticipant is returned for events from a user outside the session.
	ErrNotParticipant = errors.New("user is not a session participant")
)

// Participant ties a user to the connection it joined through.
type Participant struct {
	UserID uuid.UUID `json:"user_id"`
	ConnID string    `json:"conn_id"`
}

// Progress is one participant's latest snapshot. It is overwritten on each
// update, not appended; only the most recent value is ever kept.
type Progress struct {
	UserID       uuid.UUID `json:"user_id"`
	CurrentIndex int       `json:"current_index"`
	WPM          int       `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
}

// Completion is one participant's final report for a session.
type Completion struct {
	UserID      uuid.UUID `json:"user_id"`
	WPM         int       `json:"wpm"`
	Accuracy    float64   `json:"accuracy"`
	Errors      int       `json:"errors"`
	TimeTaken   float64   `json:"time_taken"`
	CompletedAt time.Time `json:"completed_at"`
}

// Session is one scheduled race between exactly two matched participants.
// Its mutable fields are guarded by mu; the text snapshot and roster are
// fixed for the session's entire lifetime.
type Session struct {
	ID               uuid.UUID
	RaceID           uuid.UUID
	Participants     [2]Participant
	Text             models.Text
	ScheduledStartAt time.Time
	CreatedAt        time.Time

	mu          sync.Mutex
	state       SessionState
	startedAt   *time.Time
	endedAt     *time.Time
	winnerID    *uuid.UUID
	progress    map[uuid.UUID]Progress
	completions map[uuid.UUID]Completion

	countdownTimer clockwork.Timer
	ceilingTimer   clockwork.Timer
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasParticipant reports whether the user belongs to this session.
func (s *Session) HasParticipant(userID uuid.UUID) bool {
	return s.Participants[0].UserID == userID || s.Participants[1].UserID == userID
}

// ProgressFor returns the latest stored snapshot for the user, if any.
func (s *Session) ProgressFor(userID uuid.UUID) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	return p, ok
}

// CompletionReport is the inbound payload of a race-finished event.
type CompletionReport struct {
	WPM       int     `json:"wpm"`
	Accuracy  float64 `json:"accuracy"`
	Errors    int     `json:"errors"`
	TimeTaken float64 `json:"time_taken"`
}
