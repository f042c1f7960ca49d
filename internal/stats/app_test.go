package stats

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/typerace/internal/models"
)

type fakeRepo struct {
	stats map[uuid.UUID]*models.UserStats
	saved []models.UserStats
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stats: make(map[uuid.UUID]*models.UserStats)}
}

func (f *fakeRepo) GetUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	if s, ok := f.stats[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return &models.UserStats{UserID: userID, Level: 1, Rank: models.UserRankBronze}, nil
}

func (f *fakeRepo) SaveUserStats(ctx context.Context, s models.UserStats) error {
	cp := s
	f.stats[s.UserID] = &cp
	f.saved = append(f.saved, s)
	return nil
}

func TestApplyFirstRace(t *testing.T) {
	cur := models.UserStats{Level: 1, Rank: models.UserRankBronze}

	next := Apply(cur, RaceResult{WPM: 50, Won: true})

	assert.Equal(t, 1, next.TotalRaces)
	assert.Equal(t, 1, next.RacesWon)
	assert.Equal(t, 50, next.BestWPM)
	assert.Equal(t, 50, next.AvgWPM)
	assert.Equal(t, 5, next.XP)
	assert.Equal(t, 1, next.Level)
	assert.Equal(t, models.UserRankBronze, next.Rank)
}

func TestApplyRunningAverage(t *testing.T) {
	cur := models.UserStats{TotalRaces: 1, AvgWPM: 50, BestWPM: 50, XP: 5, Level: 1, Rank: models.UserRankBronze}

	next := Apply(cur, RaceResult{WPM: 70, Won: false})

	assert.Equal(t, 2, next.TotalRaces)
	assert.Equal(t, 0, next.RacesWon)
	assert.Equal(t, 60, next.AvgWPM)
	assert.Equal(t, 70, next.BestWPM)
	assert.Equal(t, 12, next.XP)
}

func TestApplyAverageRounds(t *testing.T) {
	cur := models.UserStats{TotalRaces: 2, AvgWPM: 60}

	// (60*2 + 65) / 3 = 61.66… rounds to 62.
	next := Apply(cur, RaceResult{WPM: 65})
	assert.Equal(t, 62, next.AvgWPM)
}

func TestApplyKeepsBestWPM(t *testing.T) {
	cur := models.UserStats{TotalRaces: 3, BestWPM: 90, AvgWPM: 80}

	next := Apply(cur, RaceResult{WPM: 40})
	assert.Equal(t, 90, next.BestWPM)
}

func TestApplyXPFloorsDivision(t *testing.T) {
	next := Apply(models.UserStats{}, RaceResult{WPM: 49})
	assert.Equal(t, 4, next.XP)
}

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp    int
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{250, 3},
		{1000, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelForXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestRankForLevel(t *testing.T) {
	tests := []struct {
		level int
		rank  models.UserRank
	}{
		{1, models.UserRankBronze},
		{4, models.UserRankBronze},
		{5, models.UserRankSilver},
		{9, models.UserRankSilver},
		{10, models.UserRankGold},
		{19, models.UserRankGold},
		{20, models.UserRankPlatinum},
		{34, models.UserRankPlatinum},
		{35, models.UserRankDiamond},
		{100, models.UserRankDiamond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.rank, RankForLevel(tt.level), "level=%d", tt.level)
	}
}

func TestApplyResultPersistsUpdatedProfile(t *testing.T) {
	repo := newFakeRepo()
	app := NewApp(repo)
	userID := uuid.New()

	got, err := app.ApplyResult(context.Background(), userID, RaceResult{WPM: 80, Won: true})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRaces)
	assert.Equal(t, 80, got.AvgWPM)

	got, err = app.ApplyResult(context.Background(), userID, RaceResult{WPM: 60, Won: false})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalRaces)
	assert.Equal(t, 1, got.RacesWon)
	assert.Equal(t, 70, got.AvgWPM)
	assert.Equal(t, 80, got.BestWPM)

	require.Len(t, repo.saved, 2)
	assert.Equal(t, *got, repo.saved[1])
}
