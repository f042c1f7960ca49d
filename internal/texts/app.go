package texts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/typerace/internal/models"
)

// TextsRepository defines what the app layer needs from the repository.
type TextsRepository interface {
	RandomText(ctx context.Context, difficulty models.TextDifficulty, category string) (*models.Text, error)
	GetText(ctx context.Context, id uuid.UUID) (*models.Text, error)
	ListTexts(ctx context.Context) ([]models.Text, error)
	CreateText(ctx context.Context, content string, difficulty models.TextDifficulty, category string) (*models.Text, error)
}

// App handles text corpus business logic.
type App struct {
	repo TextsRepository
}

// NewApp creates a new texts App.
func NewApp(repo TextsRepository) *App {
	return &App{
		repo: repo,
	}
}

// RandomText returns one random passage for the given difficulty bucket.
// An unknown difficulty defaults to medium, mirroring the public endpoint.
func (a *App) RandomText(ctx context.Context, difficulty models.TextDifficulty, category string) (*models.Text, error) {
	switch difficulty {
	case models.TextDifficultyEasy, models.TextDifficultyMedium, models.TextDifficultyHard:
	default:
		difficulty = models.TextDifficultyMedium
	}
	text, err := a.repo.RandomText(ctx, difficulty, category)
	if err != nil {
		return nil, fmt.Errorf("failed to get random text: %w", err)
	}
	return text, nil
}

// GetText returns one passage by ID.
func (a *App) GetText(ctx context.Context, id uuid.UUID) (*models.Text, error) {
	return a.repo.GetText(ctx, id)
}

// ListTexts returns the whole corpus.
func (a *App) ListTexts(ctx context.Context) ([]models.Text, error) {
	return a.repo.ListTexts(ctx)
}
