package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a client-visible race event.
type EventType string

const (
	EventTypeWaitingForOpponent EventType = "waiting-for-opponent"
	EventTypeRaceMatched        EventType = "race-matched"
	EventTypeRaceStarted        EventType = "race-started"
	EventTypeOpponentProgress   EventType = "opponent-progress"
	EventTypeRaceResults        EventType = "race-results"
	EventTypeRaceAborted        EventType = "race-aborted"
	EventTypeError              EventType = "error"
)

// Event is the envelope relayed to websocket clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ParticipantRef identifies one participant in a session.
type ParticipantRef struct {
	UserID uuid.UUID `json:"userId"`
}

// RaceMatchedPayload is sent to both players when a pair leaves the queue.
type RaceMatchedPayload struct {
	SessionID    uuid.UUID        `json:"sessionId"`
	Text         string           `json:"text"`
	Participants []ParticipantRef `json:"participants"`
	StartTime    time.Time        `json:"startTime"`
}

// RaceStartedPayload is sent when the countdown elapses and the session
// begins accepting progress.
type RaceStartedPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// OpponentProgressPayload relays one participant's latest progress snapshot
// to the other participant.
type OpponentProgressPayload struct {
	UserID       uuid.UUID `json:"userId"`
	CurrentIndex int       `json:"currentIndex"`
	WPM          int       `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
}

// ParticipantResult is one participant's final line in the results payload.
type ParticipantResult struct {
	UserID      uuid.UUID `json:"userId"`
	WPM         int       `json:"wpm"`
	Accuracy    float64   `json:"accuracy"`
	Errors      int       `json:"errors"`
	TimeTaken   float64   `json:"timeTaken"`
	CompletedAt time.Time `json:"completedAt"`
}

// RaceResultsPayload is broadcast to the whole session once every
// participant has reported completion.
type RaceResultsPayload struct {
	SessionID    uuid.UUID           `json:"sessionId"`
	Participants []ParticipantResult `json:"participants"`
	Winner       uuid.UUID           `json:"winner"`
}

// AbortReason explains why a session ended without results.
type AbortReason string

const (
	AbortReasonTextUnavailable      AbortReason = "text_unavailable"
	AbortReasonOpponentDisconnected AbortReason = "opponent_disconnected"
	AbortReasonDeadlineExceeded     AbortReason = "deadline_exceeded"
)

// RaceAbortedPayload is sent to the remaining participants when a session
// ends on the abort path.
type RaceAbortedPayload struct {
	SessionID uuid.UUID   `json:"sessionId"`
	Reason    AbortReason `json:"reason"`
}

// ErrorPayload carries a client-visible error on the real-time channel.
type ErrorPayload struct {
	Message string `json:"message"`
}
