package races

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/internal/models"
)

// CreateRaceRequest represents the data needed to persist a new race.
type CreateRaceRequest struct {
	Type         models.RaceType          `json:"type"`
	TextID       uuid.UUID                `json:"text_id"`
	Participants []models.RaceParticipant `json:"participants"`
	WinnerID     *uuid.UUID               `json:"winner_id,omitempty"`
	StartedAt    *time.Time               `json:"started_at,omitempty"`
	EndedAt      *time.Time               `json:"ended_at,omitempty"`
}

// UpdateRaceRecordRequest carries the fields written back onto a race once
// its outcome is known. Nil fields are left untouched.
type UpdateRaceRecordRequest struct {
	Participants []models.RaceParticipant `json:"participants,omitempty"`
	WinnerID     *uuid.UUID               `json:"winner_id,omitempty"`
	StartedAt    *time.Time               `json:"started_at,omitempty"`
	EndedAt      *time.Time               `json:"ended_at,omitempty"`
}

// SoloResultRequest is the payload of the solo completion endpoint.
type SoloResultRequest struct {
	TextID    uuid.UUID `json:"textId"`
	WPM       int       `json:"wpm"`
	Accuracy  float64   `json:"accuracy"`
	Errors    int       `json:"errors"`
	TimeTaken float64   `json:"timeTaken"`
}

// SoloResultResponse is returned from the solo completion endpoint.
type SoloResultResponse struct {
	Race         *models.Race     `json:"race"`
	UpdatedStats models.UserStats `json:"updatedStats"`
}
