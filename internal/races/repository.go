package races

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/sqlutil"
)

// Repository persists races in Postgres. Participants are stored as a JSONB
// column; the row is created when a session forms and updated once the
// outcome is known.
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

func (r *Repository) CreateRace(ctx context.Context, req CreateRaceRequest) (*models.Race, error) {
	participantsBytes, err := json.Marshal(req.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal race participants: %w", err)
	}

	id := uuid.New()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO races (id, type, text_id, participants, winner_id, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, type, text_id, participants, winner_id, started_at, ended_at, created_at`,
		id, string(req.Type), req.TextID, participantsBytes,
		sqlutil.ToNullUUID(req.WinnerID), sqlutil.ToSqlTime(req.StartedAt), sqlutil.ToSqlTime(req.EndedAt),
	)

	race, err := scanRace(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create race: %w", err)
	}
	return race, nil
}

func (r *Repository) GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, text_id, participants, winner_id, started_at, ended_at, created_at
		FROM races WHERE id = $1`, id)

	race, err := scanRace(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}
	return race, nil
}

// UpdateRaceRecord writes the outcome fields onto an existing race row.
// Nil request fields keep their current value.
func (r *Repository) UpdateRaceRecord(ctx context.Context, id uuid.UUID, req UpdateRaceRecordRequest) error {
	var participantsBytes []byte
	if req.Participants != nil {
		b, err := json.Marshal(req.Participants)
		if err != nil {
			return fmt.Errorf("failed to marshal race participants: %w", err)
		}
		participantsBytes = b
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE races SET
			participants = COALESCE($2, participants),
			winner_id    = COALESCE($3, winner_id),
			started_at   = COALESCE($4, started_at),
			ended_at     = COALESCE($5, ended_at)
		WHERE id = $1`,
		id, participantsBytes, sqlutil.ToNullUUID(req.WinnerID),
		sqlutil.ToSqlTime(req.StartedAt), sqlutil.ToSqlTime(req.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update race record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update race record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("race %s not found", id)
	}
	return nil
}

// RaceHistory returns the user's most recent races, newest first.
func (r *Repository) RaceHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.Race, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, text_id, participants, winner_id, started_at, ended_at, created_at
		FROM races
		WHERE participants @> $1
		ORDER BY created_at DESC
		LIMIT $2`,
		fmt.Sprintf(`[{"user_id": %q}]`, userID.String()), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query race history: %w", err)
	}
	defer rows.Close()

	var races []models.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race history row: %w", err)
		}
		races = append(races, *race)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read race history: %w", err)
	}
	return races, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRace(row rowScanner) (*models.Race, error) {
	var (
		race              models.Race
		raceType          string
		participantsBytes []byte
		winnerID          uuid.NullUUID
		startedAt         sql.NullTime
		endedAt           sql.NullTime
	)
	if err := row.Scan(&race.ID, &raceType, &race.TextID, &participantsBytes,
		&winnerID, &startedAt, &endedAt, &race.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participantsBytes, &race.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal race participants: %w", err)
	}
	race.Type = models.RaceType(raceType)
	race.WinnerID = sqlutil.FromNullUUID(winnerID)
	race.StartedAt = sqlutil.FromSqlTime(startedAt)
	race.EndedAt = sqlutil.FromSqlTime(endedAt)
	return &race, nil
}
