package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// NoteSummary is the stable JSON shape query results carry (spec.md §6:
// "Lists of notes carry { path, type, title, frontmatter, modified, score? }").
type NoteSummary struct {
	Path        string                 `json:"path"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Frontmatter map[string]interface{} `json:"frontmatter"`
	Modified    time.Time              `json:"modified"`
	Score       float64                `json:"score,omitempty"`
}

func (s *Store) scanNoteSummary(row interface {
	Scan(dest ...interface{}) error
}) (NoteSummary, int64, error) {
	var id int64
	var path, kind, customType, title, fmJSON string
	var modifiedTS int64
	if err := row.Scan(&id, &path, &kind, &customType, &title, &fmJSON, &modifiedTS); err != nil {
		return NoteSummary{}, 0, err
	}
	var fm map[string]interface{}
	_ = json.Unmarshal([]byte(fmJSON), &fm)
	typeTag := kind
	if kind == string(KindCustom) && customType != "" {
		typeTag = customType
	}
	return NoteSummary{
		Path:        path,
		Type:        typeTag,
		Title:       title,
		Frontmatter: fm,
		Modified:    time.Unix(modifiedTS, 0),
	}, id, nil
}

const noteSelectCols = `id, path, note_kind, custom_type, title, frontmatter_json, modified_ts`

// ListOptions filters the List query.
type ListOptions struct {
	Kind           NoteKind
	ModifiedSince  *time.Time
	Limit          int
}

// List returns notes matching the given filters, newest-modified first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]NoteSummary, error) {
	query := `SELECT ` + noteSelectCols + ` FROM notes WHERE 1=1`
	var args []interface{}
	if opts.Kind != "" {
		query += ` AND note_kind = ?`
		args = append(args, string(opts.Kind))
	}
	if opts.ModifiedSince != nil {
		query += ` AND modified_ts >= ?`
		args = append(args, opts.ModifiedSince.Unix())
	}
	query += ` ORDER BY modified_ts DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NoteSummary
	for rows.Next() {
		ns, _, err := s.scanNoteSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (s *Store) noteIDForPath(ctx context.Context, path string) (int64, bool, error) {
	return s.queryOne(ctx, `SELECT id FROM notes WHERE path = ?`, normalizeTargetPath(path))
}

// Backlinks returns notes that link to path.
func (s *Store) Backlinks(ctx context.Context, path string) ([]NoteSummary, error) {
	id, ok, err := s.noteIDForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixCols("n", noteSelectCols)+`
		FROM notes n JOIN links l ON l.source_id = n.id
		WHERE l.target_id = ?
		GROUP BY n.id
		ORDER BY n.modified_ts DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(s, rows)
}

// Outlinks returns the resolved targets path links to.
func (s *Store) Outlinks(ctx context.Context, path string) ([]NoteSummary, error) {
	id, ok, err := s.noteIDForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixCols("n", noteSelectCols)+`
		FROM notes n JOIN links l ON l.target_id = n.id
		WHERE l.source_id = ?
		GROUP BY n.id
		ORDER BY n.modified_ts DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(s, rows)
}

// Links returns every outgoing link row recorded for path, resolved or not —
// the raw material internal/validation's link-integrity check walks, as
// opposed to Outlinks, which only ever returns resolved targets.
func (s *Store) Links(ctx context.Context, path string) ([]Link, error) {
	id, ok, err := s.noteIDForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_path, target_id, link_kind, alias, anchor, context, resolved
		FROM links WHERE source_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var targetID sql.NullInt64
		var kind string
		var resolved int
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetPath, &targetID, &kind, &l.Alias, &l.Anchor, &l.Context, &resolved); err != nil {
			return nil, err
		}
		if targetID.Valid {
			v := targetID.Int64
			l.TargetID = &v
		}
		l.Kind = LinkKind(kind)
		l.Resolved = resolved != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func collectSummaries(s *Store, rows *sql.Rows) ([]NoteSummary, error) {
	var out []NoteSummary
	for rows.Next() {
		ns, _, err := s.scanNoteSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Orphans returns notes with no incoming links and no temporal activity.
func (s *Store) Orphans(ctx context.Context) ([]NoteSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteSelectCols+` FROM notes
		WHERE id NOT IN (SELECT target_id FROM links WHERE target_id IS NOT NULL)
		  AND id NOT IN (SELECT note_id FROM temporal_activity)
		ORDER BY modified_ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(s, rows)
}

// StaleOptions filters the Stale query.
type StaleOptions struct {
	Threshold float64
	Kind      NoteKind
	Limit     int
}

// Stale returns notes whose staleness_score is at or above Threshold.
func (s *Store) Stale(ctx context.Context, opts StaleOptions) ([]NoteSummary, error) {
	query := `
		SELECT ` + prefixCols("n", noteSelectCols) + `
		FROM notes n JOIN activity_summary a ON a.note_id = n.id
		WHERE a.staleness_score >= ?`
	args := []interface{}{opts.Threshold}
	if opts.Kind != "" {
		query += ` AND n.note_kind = ?`
		args = append(args, string(opts.Kind))
	}
	query += ` ORDER BY a.staleness_score DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(s, rows)
}

// SearchMode selects one of spec.md §4.4.4's four search modes.
type SearchMode string

const (
	SearchDirect        SearchMode = "direct"
	SearchNeighbourhood SearchMode = "neighbourhood"
	SearchTemporal      SearchMode = "temporal"
	SearchFull          SearchMode = "full"
)

// SearchOptions configures Search.
type SearchOptions struct {
	Mode        SearchMode
	Query       string
	Regex       bool
	Hops        int // neighbourhood mode, default 1
	Window      time.Duration // temporal mode, default 30 days
	Boost       bool
	WeightMatch float64
	WeightTemporal float64
	WeightNeighbourhood float64
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Hops <= 0 {
		o.Hops = 1
	}
	if o.Window <= 0 {
		o.Window = 30 * 24 * time.Hour
	}
	if o.WeightMatch == 0 && o.WeightTemporal == 0 && o.WeightNeighbourhood == 0 {
		o.WeightMatch, o.WeightTemporal, o.WeightNeighbourhood = 0.6, 0.25, 0.15
	}
	return o
}

// Search implements spec.md §4.4.4's four modes.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]NoteSummary, error) {
	opts = opts.withDefaults()

	direct, directIDs, err := s.searchDirect(ctx, opts)
	if err != nil {
		return nil, err
	}
	switch opts.Mode {
	case "", SearchDirect:
		return direct, nil
	case SearchNeighbourhood:
		return s.expandNeighbourhood(ctx, direct, directIDs, opts.Hops)
	case SearchTemporal:
		return s.expandTemporal(ctx, direct, directIDs, opts.Window)
	case SearchFull:
		return s.searchFull(ctx, direct, directIDs, opts)
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", errIndex, opts.Mode)
	}
}

// searchDirectCols mirrors noteSelectCols with an extra body column, used
// only here since NoteSummary itself carries no body field (spec.md §6's
// result shape has no body key).
const searchDirectCols = `id, path, note_kind, custom_type, title, frontmatter_json, body, modified_ts`

func (s *Store) searchDirect(ctx context.Context, opts SearchOptions) ([]NoteSummary, map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+searchDirectCols+` FROM notes`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []NoteSummary
	ids := make(map[int64]bool)

	var matcher func(title, body string) bool
	if opts.Regex {
		re, err := regexp.Compile(opts.Query)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid search regex: %v", errIndex, err)
		}
		matcher = func(title, body string) bool { return re.MatchString(title) || re.MatchString(body) }
	} else {
		needle := strings.ToLower(opts.Query)
		matcher = func(title, body string) bool {
			return strings.Contains(strings.ToLower(title), needle) || strings.Contains(strings.ToLower(body), needle)
		}
	}

	for rows.Next() {
		var id int64
		var path, kind, customType, title, fmJSON, body string
		var modifiedTS int64
		if err := rows.Scan(&id, &path, &kind, &customType, &title, &fmJSON, &body, &modifiedTS); err != nil {
			return nil, nil, err
		}
		if !matcher(title, body) {
			continue
		}
		var fm map[string]interface{}
		_ = json.Unmarshal([]byte(fmJSON), &fm)
		typeTag := kind
		if kind == string(KindCustom) && customType != "" {
			typeTag = customType
		}
		ns := NoteSummary{
			Path:        path,
			Type:        typeTag,
			Title:       title,
			Frontmatter: fm,
			Modified:    time.Unix(modifiedTS, 0),
			Score:       1.0,
		}
		out = append(out, ns)
		ids[id] = true
	}
	return out, ids, rows.Err()
}

func (s *Store) expandNeighbourhood(ctx context.Context, direct []NoteSummary, seed map[int64]bool, hops int) ([]NoteSummary, error) {
	visited := make(map[int64]bool, len(seed))
	for id := range seed {
		visited[id] = true
	}
	frontier := make([]int64, 0, len(seed))
	for id := range seed {
		frontier = append(frontier, id)
	}

	for h := 0; h < hops && len(frontier) > 0; h++ {
		var next []int64
		for _, id := range frontier {
			neighbors, err := s.neighborIDs(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		frontier = next
	}

	return s.summariesForIDs(ctx, visited)
}

func (s *Store) neighborIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id FROM links WHERE source_id = ? AND target_id IS NOT NULL
		UNION
		SELECT source_id FROM links WHERE target_id = ?`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) summariesForIDs(ctx context.Context, ids map[int64]bool) ([]NoteSummary, error) {
	var out []NoteSummary
	for id := range ids {
		row := s.db.QueryRowContext(ctx, `SELECT `+noteSelectCols+` FROM notes WHERE id = ?`, id)
		ns, _, err := s.scanNoteSummary(row)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

func (s *Store) expandTemporal(ctx context.Context, direct []NoteSummary, seed map[int64]bool, window time.Duration) ([]NoteSummary, error) {
	cutoff := time.Now().Add(-window).Unix()
	result := make(map[int64]bool, len(seed))
	for id := range seed {
		result[id] = true
	}
	for id := range seed {
		rows, err := s.db.QueryContext(ctx, `
			SELECT daily_id FROM temporal_activity WHERE note_id = ? AND activity_date >= ?`, id, cutoff)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var dailyID int64
			if err := rows.Scan(&dailyID); err != nil {
				rows.Close()
				return nil, err
			}
			result[dailyID] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return s.summariesForIDs(ctx, result)
}

func (s *Store) searchFull(ctx context.Context, direct []NoteSummary, directIDs map[int64]bool, opts SearchOptions) ([]NoteSummary, error) {
	neighbourhood, err := s.expandNeighbourhood(ctx, direct, directIDs, opts.Hops)
	if err != nil {
		return nil, err
	}
	temporal, err := s.expandTemporal(ctx, direct, directIDs, opts.Window)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, ns := range direct {
		scores[ns.Path] += opts.WeightMatch
	}
	for _, ns := range neighbourhood {
		scores[ns.Path] += opts.WeightNeighbourhood
	}
	for _, ns := range temporal {
		scores[ns.Path] += opts.WeightTemporal
	}

	byPath := make(map[string]NoteSummary)
	for _, list := range [][]NoteSummary{direct, neighbourhood, temporal} {
		for _, ns := range list {
			byPath[ns.Path] = ns
		}
	}

	if opts.Boost {
		for path, ns := range byPath {
			summary, err := s.activityBoost(ctx, ns.Path)
			if err == nil {
				scores[path] *= 1 + summary
			}
		}
	}

	var out []NoteSummary
	for path, ns := range byPath {
		ns.Score = scores[path]
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Store) activityBoost(ctx context.Context, path string) (float64, error) {
	id, ok, err := s.noteIDForPath(ctx, path)
	if err != nil || !ok {
		return 0, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT staleness_score FROM activity_summary WHERE note_id = ?`, id)
	var staleness float64
	if err := row.Scan(&staleness); err != nil {
		return 0, err
	}
	return 1 - staleness, nil
}

// ProgressReport is the result of Progress.
type ProgressReport struct {
	ProjectID         string         `json:"project_id"`
	CountsByStatus    map[string]int `json:"counts_by_status"`
	CompletionVelocity4w float64     `json:"completion_velocity_4w"`
}

// Progress computes per-status task counts and a 4-week completion velocity
// for a project.
func (s *Store) Progress(ctx context.Context, projectID string) (ProgressReport, error) {
	report := ProgressReport{ProjectID: projectID, CountsByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT frontmatter_json FROM notes WHERE note_kind = ? AND frontmatter_json LIKE ?`,
		string(KindTask), fmt.Sprintf(`%%"project":"%s"%%`, projectID))
	if err != nil {
		return report, err
	}
	defer rows.Close()

	cutoff := time.Now().AddDate(0, 0, -28)
	var completedRecently int
	for rows.Next() {
		var fmJSON string
		if err := rows.Scan(&fmJSON); err != nil {
			return report, err
		}
		var fm map[string]interface{}
		_ = json.Unmarshal([]byte(fmJSON), &fm)
		status, _ := fm["status"].(string)
		if status == "" {
			status = "unknown"
		}
		report.CountsByStatus[status]++
		if status == "done" {
			if ts, ok := fm["completed_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339, ts); err == nil && t.After(cutoff) {
					completedRecently++
				}
			}
		}
	}
	report.CompletionVelocity4w = float64(completedRecently) / 4.0
	return report, rows.Err()
}

// MonthlyReport aggregates activity for Report.
type MonthlyReport struct {
	Period            string         `json:"period"`
	TasksCreated      int            `json:"tasks_created"`
	TasksCompleted    int            `json:"tasks_completed"`
	DailyCoverageDays int            `json:"daily_coverage_days"`
	ActivityHeatmap   map[string]int `json:"activity_heatmap"`
}

// Report aggregates task creations/completions, daily-note coverage, and an
// activity heatmap over [from, to).
func (s *Store) Report(ctx context.Context, period string, from, to time.Time) (MonthlyReport, error) {
	report := MonthlyReport{Period: period, ActivityHeatmap: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT note_kind, frontmatter_json, created_ts FROM notes
		WHERE created_ts >= ? AND created_ts < ?`, from.Unix(), to.Unix())
	if err != nil {
		return report, err
	}
	for rows.Next() {
		var kind, fmJSON string
		var createdTS int64
		if err := rows.Scan(&kind, &fmJSON, &createdTS); err != nil {
			rows.Close()
			return report, err
		}
		if kind == string(KindTask) {
			report.TasksCreated++
			var fm map[string]interface{}
			_ = json.Unmarshal([]byte(fmJSON), &fm)
			if status, _ := fm["status"].(string); status == "done" {
				report.TasksCompleted++
			}
		}
		if kind == string(KindDaily) {
			report.DailyCoverageDays++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	activityRows, err := s.db.QueryContext(ctx, `
		SELECT activity_date FROM temporal_activity WHERE activity_date >= ? AND activity_date < ?`, from.Unix(), to.Unix())
	if err != nil {
		return report, err
	}
	defer activityRows.Close()
	for activityRows.Next() {
		var ts int64
		if err := activityRows.Scan(&ts); err != nil {
			return report, err
		}
		day := time.Unix(ts, 0).Format("2006-01-02")
		report.ActivityHeatmap[day]++
	}
	return report, activityRows.Err()
}
