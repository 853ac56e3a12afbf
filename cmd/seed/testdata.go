package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seedTestData loads a small catalog of published videos plus watch history
// for the demo viewer, enough to exercise the channel profile and history
// endpoints against a real database.
func seedTestData(ctx context.Context, pool *pgxpool.Pool) error {
	videos := []struct {
		id       uuid.UUID
		title    string
		duration float64
		views    int64
	}{
		{uuid.MustParse("00000000-0000-0000-0000-000000000301"), "Getting started", 312.5, 1200},
		{uuid.MustParse("00000000-0000-0000-0000-000000000302"), "Deep dive", 1840.0, 450},
		{uuid.MustParse("00000000-0000-0000-0000-000000000303"), "Q&A session", 2710.0, 87},
	}

	for i, v := range videos {
		_, err := pool.Exec(ctx, `
			INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration, views, is_published)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title,
			    duration = EXCLUDED.duration,
			    views = EXCLUDED.views
		`, v.id, creatorID, v.title, "seed video",
			fmt.Sprintf("https://placehold.co/video-%d.mp4", i+1),
			fmt.Sprintf("https://placehold.co/640x360/png?text=video-%d", i+1),
			v.duration, v.views)
		if err != nil {
			return err
		}
	}

	// the demo viewer has watched the first two, most recent first
	for i, v := range videos[:2] {
		watchedAt := time.Now().Add(-time.Duration(i+1) * time.Hour)
		_, err := pool.Exec(ctx, `
			INSERT INTO watch_history (user_id, video_id, watched_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, video_id) DO UPDATE
			SET watched_at = EXCLUDED.watched_at
		`, demoID, v.id, watchedAt)
		if err != nil {
			return err
		}
	}

	return nil
}
