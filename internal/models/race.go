package models

import (
	"time"

	"github.com/google/uuid"
)

// RaceType defines how a race was run.
type RaceType string

const (
	RaceTypeSolo        RaceType = "solo"
	RaceTypeMultiplayer RaceType = "multiplayer"
)

// RaceParticipant holds one participant's final line in a persisted race.
type RaceParticipant struct {
	UserID      uuid.UUID  `json:"user_id"`
	WPM         int        `json:"wpm"`
	Accuracy    float64    `json:"accuracy"`
	Errors      int        `json:"errors"`
	TimeTaken   float64    `json:"time_taken"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Race represents a persisted race record, solo or multiplayer.
type Race struct {
	ID           uuid.UUID         `json:"id"`
	Type         RaceType          `json:"type"`
	TextID       uuid.UUID         `json:"text_id"`
	Participants []RaceParticipant `json:"participants"`
	WinnerID     *uuid.UUID        `json:"winner_id,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
