package models

import (
	"time"

	"github.com/google/uuid"
)

// TextDifficulty defines the difficulty bucket of a passage.
type TextDifficulty string

const (
	TextDifficultyEasy   TextDifficulty = "easy"
	TextDifficultyMedium TextDifficulty = "medium"
	TextDifficultyHard   TextDifficulty = "hard"
)

// Text represents one passage from the typing corpus.
type Text struct {
	ID         uuid.UUID      `json:"id"`
	Content    string         `json:"content"`
	Difficulty TextDifficulty `json:"difficulty"`
	Category   string         `json:"category"`
	CreatedAt  time.Time      `json:"created_at"`
}
