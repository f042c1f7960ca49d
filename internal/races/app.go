package races

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/sqlutil"
	"github.com/mcdev12/typerace/internal/stats"
)

// ErrInvalidResult is returned when a solo result fails validation; nothing
// is persisted in that case.
var ErrInvalidResult = errors.New("invalid race result")

// App handles race persistence business logic, including the solo path
// that bypasses matchmaking and sessions entirely.
type App struct {
	db        *sql.DB
	raceRepo  *Repository
	statsRepo *stats.Repository
	clock     clockwork.Clock
}

// NewApp creates a new races App.
func NewApp(db *sql.DB, raceRepo *Repository, statsRepo *stats.Repository, clock clockwork.Clock) *App {
	return &App{
		db:        db,
		raceRepo:  raceRepo,
		statsRepo: statsRepo,
		clock:     clock,
	}
}

// CreateRace persists a new race record.
func (a *App) CreateRace(ctx context.Context, req CreateRaceRequest) (*models.Race, error) {
	return a.raceRepo.CreateRace(ctx, req)
}

// UpdateRaceRecord writes outcome fields onto an existing race.
func (a *App) UpdateRaceRecord(ctx context.Context, id uuid.UUID, req UpdateRaceRecordRequest) error {
	return a.raceRepo.UpdateRaceRecord(ctx, id, req)
}

// RaceHistory returns the user's ten most recent races.
func (a *App) RaceHistory(ctx context.Context, userID uuid.UUID) ([]models.Race, error) {
	return a.raceRepo.RaceHistory(ctx, userID, 10)
}

// SubmitSoloResult validates and persists a solo race and folds it into the
// user's stats. Every solo attempt counts as a win by convention. The race
// insert and the stats update share one transaction so neither can land
// without the other.
func (a *App) SubmitSoloResult(ctx context.Context, userID uuid.UUID, req SoloResultRequest) (*SoloResultResponse, error) {
	if err := validateSoloResult(req); err != nil {
		return nil, err
	}

	var resp SoloResultResponse
	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		now := a.clock.Now()
		race, err := a.raceRepo.WithTx(tx).CreateRace(ctx, CreateRaceRequest{
			Type:   models.RaceTypeSolo,
			TextID: req.TextID,
			Participants: []models.RaceParticipant{{
				UserID:      userID,
				WPM:         req.WPM,
				Accuracy:    req.Accuracy,
				Errors:      req.Errors,
				TimeTaken:   req.TimeTaken,
				CompletedAt: &now,
			}},
			WinnerID: &userID,
			EndedAt:  &now,
		})
		if err != nil {
			return err
		}

		statsRepo := a.statsRepo.WithTx(tx)
		cur, err := statsRepo.GetUserStats(ctx, userID)
		if err != nil {
			return err
		}
		next := stats.Apply(*cur, stats.RaceResult{WPM: req.WPM, Won: true})
		if err := statsRepo.SaveUserStats(ctx, next); err != nil {
			return err
		}

		resp = SoloResultResponse{Race: race, UpdatedStats: next}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit solo result: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("race_id", resp.Race.ID.String()).
		Int("wpm", req.WPM).
		Msg("solo race recorded")
	return &resp, nil
}

func validateSoloResult(req SoloResultRequest) error {
	switch {
	case req.TextID == uuid.Nil:
		return fmt.Errorf("%w: textId is required", ErrInvalidResult)
	case req.WPM < 0:
		return fmt.Errorf("%w: wpm must be non-negative", ErrInvalidResult)
	case req.Accuracy < 0 || req.Accuracy > 100:
		return fmt.Errorf("%w: accuracy must be between 0 and 100", ErrInvalidResult)
	case req.Errors < 0:
		return fmt.Errorf("%w: errors must be non-negative", ErrInvalidResult)
	case req.TimeTaken <= 0:
		return fmt.Errorf("%w: timeTaken must be positive", ErrInvalidResult)
	}
	return nil
}
