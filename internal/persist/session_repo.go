package persist

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// SessionRecord is one stay on a level, from load until the next level
// change or shutdown.
type SessionRecord struct {
	Level         string
	Digest        string
	Started       time.Time
	Finished      time.Time
	FirstTick     uint64
	Ticks         uint64
	FramesSkipped uint64
	FramesStale   uint64
	Events        map[string]uint64
}

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// WriteSessions writes a batch of records and their event counts in a single
// transaction.
func (r *SessionRepo) WriteSessions(ctx context.Context, recs []SessionRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sessions begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		var id int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO level_sessions (level, digest, started_at, finished_at, first_tick, ticks, frames_skipped, frames_stale)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			rec.Level, rec.Digest, rec.Started, rec.Finished,
			int64(rec.FirstTick), int64(rec.Ticks), int64(rec.FramesSkipped), int64(rec.FramesStale),
		).Scan(&id); err != nil {
			return fmt.Errorf("sessions insert: %w", err)
		}
		kinds := make([]string, 0, len(rec.Events))
		for k := range rec.Events {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			if _, err := tx.Exec(ctx,
				`INSERT INTO level_session_events (session_id, kind, count) VALUES ($1, $2, $3)`,
				id, k, int64(rec.Events[k]),
			); err != nil {
				return fmt.Errorf("session events insert: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// LevelStats sums the recorded sessions of one level.
type LevelStats struct {
	Sessions int64
	Ticks    int64
	Skipped  int64
}

func (r *SessionRepo) LevelStats(ctx context.Context, level string) (LevelStats, error) {
	var s LevelStats
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(ticks), 0), COALESCE(SUM(frames_skipped), 0)
		 FROM level_sessions WHERE level = $1`,
		level,
	).Scan(&s.Sessions, &s.Ticks, &s.Skipped)
	if err != nil {
		return LevelStats{}, fmt.Errorf("level stats: %w", err)
	}
	return s, nil
}
