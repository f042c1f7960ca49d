package texts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/internal/models"
	"github.com/mcdev12/typerace/internal/sqlutil"
)

// ErrNoTexts is returned when the corpus has nothing matching the request
// and no fallback passage either.
var ErrNoTexts = errors.New("no texts available")

// Repository reads the typing corpus from Postgres.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{
		db: db,
	}
}

// RandomText returns one random passage matching the difficulty and,
// if non-empty, the category. When nothing matches it falls back to any
// passage at all rather than failing a match for want of the exact bucket.
func (r *Repository) RandomText(ctx context.Context, difficulty models.TextDifficulty, category string) (*models.Text, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, difficulty, category, created_at
		FROM texts
		WHERE difficulty = $1 AND ($2 = '' OR category = $2)
		ORDER BY random()
		LIMIT 1`,
		string(difficulty), category,
	)

	text, err := scanText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r.anyText(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get random text: %w", err)
	}
	return text, nil
}

func (r *Repository) anyText(ctx context.Context) (*models.Text, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, difficulty, category, created_at
		FROM texts
		ORDER BY random()
		LIMIT 1`,
	)

	text, err := scanText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTexts
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fallback text: %w", err)
	}
	return text, nil
}

// GetText returns one passage by ID.
func (r *Repository) GetText(ctx context.Context, id uuid.UUID) (*models.Text, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content, difficulty, category, created_at
		FROM texts WHERE id = $1`, id)

	text, err := scanText(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

// ListTexts returns the whole corpus, newest first.
func (r *Repository) ListTexts(ctx context.Context) ([]models.Text, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, content, difficulty, category, created_at
		FROM texts
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list texts: %w", err)
	}
	defer rows.Close()

	var texts []models.Text
	for rows.Next() {
		text, err := scanText(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan text row: %w", err)
		}
		texts = append(texts, *text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read texts: %w", err)
	}
	return texts, nil
}

// CreateText adds one passage to the corpus.
func (r *Repository) CreateText(ctx context.Context, content string, difficulty models.TextDifficulty, category string) (*models.Text, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO texts (id, content, difficulty, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, content, difficulty, category, created_at`,
		uuid.New(), content, string(difficulty), category,
	)

	text, err := scanText(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create text: %w", err)
	}
	return text, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanText(row rowScanner) (*models.Text, error) {
	var (
		text       models.Text
		difficulty string
	)
	if err := row.Scan(&text.ID, &text.Content, &difficulty, &text.Category, &text.CreatedAt); err != nil {
		return nil, err
	}
	text.Difficulty = models.TextDifficulty(difficulty)
	return &text, nil
}
