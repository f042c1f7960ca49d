package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/sqlutil"
)

// Repository persists cumulative user stats in Postgres.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{
		db: db,
	}
}

// WithTx returns a Repository bound to the given transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

// GetUserStats returns the user's stats row, or a fresh zeroed profile if
// the user has never raced.
func (r *Repository) GetUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, xp, level, rank, total_races, races_won, best_wpm, avg_wpm
		FROM user_stats WHERE user_id = $1`, userID)

	var s models.UserStats
	var rank string
	err := row.Scan(&s.UserID, &s.XP, &s.Level, &rank, &s.TotalRaces, &s.RacesWon, &s.BestWPM, &s.AvgWPM)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserStats{
			UserID: userID,
			Level:  1,
			Rank:   models.UserRankBronze,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	s.Rank = models.UserRank(rank)
	return &s, nil
}

// SaveUserStats upserts the user's stats row.
func (r *Repository) SaveUserStats(ctx context.Context, s models.UserStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, xp, level, rank, total_races, races_won, best_wpm, avg_wpm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			xp = EXCLUDED.xp,
			level = EXCLUDED.level,
			rank = EXCLUDED.rank,
			total_races = EXCLUDED.total_races,
			races_won = EXCLUDED.races_won,
			best_wpm = EXCLUDED.best_wpm,
			avg_wpm = EXCLUDED.avg_wpm`,
		s.UserID, s.XP, s.Level, string(s.Rank), s.TotalRaces, s.RacesWon, s.BestWPM, s.AvgWPM,
	)
	if err != nil {
		return fmt.Errorf("failed to save user stats: %w", err)
	}
	return nil
}
