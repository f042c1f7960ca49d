package models

import "github.com/google/uuid"

// UserRank defines the named tier a user sits in, derived from level.
type UserRank string

const (
	UserRankBronze   UserRank = "Bronze"
	UserRankSilver   UserRank = "Silver"
	UserRankGold     UserRank = "Gold"
	UserRankPlatinum UserRank = "Platinum"
	UserRankDiamond  UserRank = "Diamond"
)

// UserStats is a user's cumulative performance profile.
type UserStats struct {
	UserID     uuid.UUID `json:"user_id"`
	XP         int       `json:"xp"`
	Level      int       `json:"level"`
	Rank       UserRank  `json:"rank"`
	TotalRaces int       `json:"total_races"`
	RacesWon   int       `json:"races_won"`
	BestWPM    int       `json:"best_wpm"`
	AvgWPM     int       `json:"avg_wpm"`
}
