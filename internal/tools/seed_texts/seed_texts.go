package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/typerace/internal/dbconfig"
)

// seedText mirrors the texts table shape.
type seedText struct {
	Content    string
	Difficulty string
	Category   string
}

var schema = `
CREATE TABLE IF NOT EXISTS texts (
    id UUID PRIMARY KEY,
    content TEXT NOT NULL,
    difficulty TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'general',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (content)
);

CREATE TABLE IF NOT EXISTS races (
    id UUID PRIMARY KEY,
    type TEXT NOT NULL,
    text_id UUID NOT NULL REFERENCES texts(id),
    participants JSONB NOT NULL DEFAULT '[]',
    winner_id UUID,
    started_at TIMESTAMPTZ,
    ended_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS races_created_at_idx ON races (created_at DESC);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id UUID PRIMARY KEY,
    xp INT NOT NULL DEFAULT 0,
    level INT NOT NULL DEFAULT 1,
    rank TEXT NOT NULL DEFAULT 'Bronze',
    total_races INT NOT NULL DEFAULT 0,
    races_won INT NOT NULL DEFAULT 0,
    best_wpm INT NOT NULL DEFAULT 0,
    avg_wpm INT NOT NULL DEFAULT 0
);
`

var texts = []seedText{
	{
		Content:    "The quick brown fox jumps over the lazy dog. This pangram contains every letter of the alphabet at least once.",
		Difficulty: "easy",
		Category:   "general",
	},
	{
		Content:    "In a hole in the ground there lived a hobbit. Not a nasty, dirty, wet hole, filled with the ends of worms and an oozy smell.",
		Difficulty: "easy",
		Category:   "quotes",
	},
	{
		Content:    "function calculateWPM(text, timeInMinutes) { const words = text.split(' ').length; return Math.round(words / timeInMinutes); }",
		Difficulty: "hard",
		Category:   "code",
	},
	{
		Content:    "To be or not to be, that is the question. Whether 'tis nobler in the mind to suffer the slings and arrows of outrageous fortune.",
		Difficulty: "medium",
		Category:   "quotes",
	},
	{
		Content:    "The only way to do great work is to love what you do. If you haven't found it yet, keep looking. Don't settle.",
		Difficulty: "medium",
		Category:   "quotes",
	},
}

func main() {
	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Ensure the schema exists
	if _, err := pool.Exec(context.Background(), schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert and count
	var (
		total    = len(texts)
		inserted int
		skipped  int
		errs     int
	)

	for _, t := range texts {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO texts (id, content, difficulty, category)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (content) DO NOTHING
        `,
			uuid.New(), t.Content, t.Difficulty, t.Category,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting text (%s/%s): %v\n", t.Difficulty, t.Category, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Texts seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
