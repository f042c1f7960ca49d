package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ClientMessageType names an inbound event on the real-time channel.
type ClientMessageType string

const (
	ClientMessageJoinQueue    ClientMessageType = "join-queue"
	ClientMessageRaceProgress ClientMessageType = "race-progress"
	ClientMessageRaceFinished ClientMessageType = "race-finished"
)

// ClientMessage is the envelope clients send over the websocket.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// JoinQueuePayload asks to be matched against an opponent.
type JoinQueuePayload struct {
	UserID uuid.UUID `json:"userId"`
}

// RaceProgressPayload carries a live progress snapshot during a race.
type RaceProgressPayload struct {
	SessionID    uuid.UUID `json:"sessionId"`
	UserID       uuid.UUID `json:"userId"`
	CurrentIndex int       `json:"currentIndex"`
	WPM          int       `json:"wpm"`
	Accuracy     float64   `json:"accuracy"`
}

// RaceFinishedPayload carries a participant's final report for a race.
type RaceFinishedPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	UserID    uuid.UUID `json:"userId"`
	WPM       int       `json:"wpm"`
	Accuracy  float64   `json:"accuracy"`
	Errors    int       `json:"errors"`
	TimeTaken float64   `json:"timeTaken"`
}
