package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecomputeDerivedSignals rebuilds activity_summary and note_cooccurrence
// from the raw tables, per spec.md §4.4.3. Run once per reindex, after
// ingestion, in its own pass (spec.md §9: "derived-signal recomputation
// runs in its own transaction after ingestion").
func (s *Store) RecomputeDerivedSignals(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin derived-signal recompute: %v", errIndex, err)
	}
	defer tx.Rollback()

	if err := recomputeActivitySummary(ctx, tx); err != nil {
		return err
	}
	if err := recomputeCooccurrence(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// stalenessHalfLifeDays controls the exponential decay used for
// staleness_score; a note not seen in this many days has decayed halfway
// toward the maximum staleness of 1.0.
const stalenessHalfLifeDays = 30.0

func recomputeActivitySummary(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_summary`); err != nil {
		return fmt.Errorf("%w: clear activity_summary: %v", errIndex, err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, modified_ts FROM notes`)
	if err != nil {
		return err
	}
	type noteRow struct {
		id  int64
		mod int64
	}
	var notes []noteRow
	for rows.Next() {
		var n noteRow
		if err := rows.Scan(&n.id, &n.mod); err != nil {
			rows.Close()
			return err
		}
		notes = append(notes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	now := time.Now()
	cutoff30 := now.AddDate(0, 0, -30).Unix()
	cutoff90 := now.AddDate(0, 0, -90).Unix()

	for _, n := range notes {
		var lastSeen int64
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(activity_date), 0) FROM temporal_activity WHERE note_id = ?`, n.id)
		if err := row.Scan(&lastSeen); err != nil {
			return err
		}
		if lastSeen == 0 || n.mod > lastSeen {
			lastSeen = n.mod
		}

		var count30, count90 int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM temporal_activity WHERE note_id = ? AND activity_date >= ?`, n.id, cutoff30).Scan(&count30); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM temporal_activity WHERE note_id = ? AND activity_date >= ?`, n.id, cutoff90).Scan(&count90); err != nil {
			return err
		}

		daysSince := now.Sub(time.Unix(lastSeen, 0)).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}
		staleness := 1 - decay(daysSince, stalenessHalfLifeDays)
		if staleness < 0 {
			staleness = 0
		}
		if staleness > 1 {
			staleness = 1
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activity_summary (note_id, last_seen, access_count_30d, access_count_90d, staleness_score)
			VALUES (?, ?, ?, ?, ?)`,
			n.id, lastSeen, count30, count90, staleness); err != nil {
			return fmt.Errorf("%w: insert activity_summary for note %d: %v", errIndex, n.id, err)
		}
	}
	return nil
}

// decay returns a value in [0,1] representing how "fresh" a note is after
// daysSince days, with an exponential half-life of halfLifeDays. staleness
// is then 1 - decay, so staleness is 0 right after activity and approaches
// 1 as daysSince grows.
func decay(daysSince, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 0
	}
	// 0.5^(daysSince/halfLife)
	x := daysSince / halfLifeDays
	result := 1.0
	// Avoid math.Pow to keep this file dependency-free; a handful of
	// halvings is enough precision for a [0,1] decay score.
	half := 0.5
	frac := x
	for frac > 1 {
		result *= half
		frac--
	}
	result *= 1 - frac*(1-half)
	return result
}

func recomputeCooccurrence(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_cooccurrence`); err != nil {
		return fmt.Errorf("%w: clear note_cooccurrence: %v", errIndex, err)
	}

	dailyRows, err := tx.QueryContext(ctx, `SELECT id, modified_ts FROM notes WHERE note_kind = ?`, string(KindDaily))
	if err != nil {
		return err
	}
	type daily struct {
		id  int64
		mod int64
	}
	var dailies []daily
	for dailyRows.Next() {
		var d daily
		if err := dailyRows.Scan(&d.id, &d.mod); err != nil {
			dailyRows.Close()
			return err
		}
		dailies = append(dailies, d)
	}
	dailyRows.Close()
	if err := dailyRows.Err(); err != nil {
		return err
	}

	counts := make(map[[2]int64]int)
	mostRecent := make(map[[2]int64]int64)

	for _, d := range dailies {
		targets, err := distinctResolvedTargets(ctx, tx, d.id)
		if err != nil {
			return err
		}
		for i := 0; i < len(targets); i++ {
			for j := i + 1; j < len(targets); j++ {
				a, b := targets[i], targets[j]
				if a > b {
					a, b = b, a
				}
				key := [2]int64{a, b}
				counts[key]++
				if d.mod > mostRecent[key] {
					mostRecent[key] = d.mod
				}
			}
		}
	}

	for key, count := range counts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_cooccurrence (note_a_id, note_b_id, shared_daily_count, most_recent_cooccurrence)
			VALUES (?, ?, ?, ?)`,
			key[0], key[1], count, mostRecent[key]); err != nil {
			return fmt.Errorf("%w: insert note_cooccurrence: %v", errIndex, err)
		}
	}
	return nil
}

// distinctResolvedTargets returns the distinct resolved target note ids of a
// daily note's outgoing links. Unresolved links never contribute to
// cooccurrence (spec.md §9 open question ii).
func distinctResolvedTargets(ctx context.Context, tx *sql.Tx, dailyID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT target_id FROM links
		WHERE source_id = ? AND resolved = 1 AND target_id IS NOT NULL`, dailyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
