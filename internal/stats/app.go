package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/models"
)

// StatsRepository defines what the app layer needs from the repository.
type StatsRepository interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
	SaveUserStats(ctx context.Context, s models.UserStats) error
}

// App handles user stats business logic.
type App struct {
	repo StatsRepository
}

// NewApp creates a new stats App.
func NewApp(repo StatsRepository) *App {
	return &App{
		repo: repo,
	}
}

// GetUserStats returns the user's cumulative profile.
func (a *App) GetUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	s, err := a.repo.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return s, nil
}

// ApplyResult folds one finished race into the user's profile and saves it.
func (a *App) ApplyResult(ctx context.Context, userID uuid.UUID, result RaceResult) (*models.UserStats, error) {
	cur, err := a.repo.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for update: %w", err)
	}

	next := Apply(*cur, result)
	if err := a.repo.SaveUserStats(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save updated stats: %w", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Int("wpm", result.WPM).
		Bool("won", result.Won).
		Int("total_races", next.TotalRaces).
		Int("avg_wpm", next.AvgWPM).
		Msg("applied race result to user stats")
	return &next, nil
}

// Apply is the canonical stats formula, shared by the solo and multiplayer
// paths. The running mean uses the updated total race count as its
// denominator for both, so the two paths can never drift apart.
func Apply(cur models.UserStats, result RaceResult) models.UserStats {
	next := cur
	next.TotalRaces++
	if result.Won {
		next.RacesWon++
	}
	if result.WPM > next.BestWPM {
		next.BestWPM = result.WPM
	}
	next.XP += result.WPM / 10
	next.AvgWPM = int(math.Round(
		(float64(cur.AvgWPM)*float64(next.TotalRaces-1) + float64(result.WPM)) / float64(next.TotalRaces),
	))
	next.Level = LevelForXP(next.XP)
	next.Rank = RankForLevel(next.Level)
	return next
}

// LevelForXP maps accumulated experience onto a level, 100 xp per level.
func LevelForXP(xp int) int {
	return xp/100 + 1
}

// RankForLevel maps a level onto its named tier.
func RankForLevel(level int) models.UserRank {
	switch {
	case level >= 35:
		return models.UserRankDiamond
	case level >= 20:
		return models.UserRankPlatinum
	case level >= 10:
		return models.UserRankGold
	case level >= 5:
		return models.UserRankSilver
	default:
		return models.UserRankBronze
	}
}
