package index

import (
	"context"
	"fmt"
	"time"
)

// RecordTemporalActivity inserts one temporal_activity row: dailyID
// referenced noteID on activityDate with the given context snippet. Called
// by SyncTemporalActivityForDaily, which finishIngest runs for each daily
// note during reindex.
func (s *Store) RecordTemporalActivity(ctx context.Context, noteID, dailyID int64, activityDate time.Time, snippet string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO temporal_activity (note_id, daily_id, activity_date, context)
		VALUES (?, ?, ?, ?)`,
		noteID, dailyID, activityDate.Unix(), snippet)
	if err != nil {
		return fmt.Errorf("%w: record temporal activity: %v", errIndex, err)
	}
	return nil
}

// SyncTemporalActivityForDaily replaces all temporal_activity rows sourced
// from dailyID with fresh rows derived from its current resolved outlinks,
// keeping temporal_activity consistent with the links table the way
// replaceLinks keeps links consistent with a note's body.
func (s *Store) SyncTemporalActivityForDaily(ctx context.Context, dailyID int64, activityDate time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM temporal_activity WHERE daily_id = ?`, dailyID); err != nil {
		return fmt.Errorf("%w: clear temporal activity for daily %d: %v", errIndex, dailyID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id, context FROM links
		WHERE source_id = ? AND resolved = 1 AND target_id IS NOT NULL`, dailyID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var targetID int64
		var snippet string
		if err := rows.Scan(&targetID, &snippet); err != nil {
			return err
		}
		if err := s.RecordTemporalActivity(ctx, targetID, dailyID, activityDate, snippet); err != nil {
			return err
		}
	}
	return rows.Err()
}
