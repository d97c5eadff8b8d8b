package journal

import (
	"fmt"
	"time"
)

// AbbreviationStats aggregates expansions of one abbreviation.
type AbbreviationStats struct {
	Abbreviation string `json:"abbreviation"`
	Count        int    `json:"count"`
	Failures     int    `json:"failures"`
	LastUsed     int64  `json:"last_used_ns"`
}

// Summary aggregates the journal since a point in time.
type Summary struct {
	Since         time.Time           `json:"since"`
	Expansions    int                 `json:"expansions"`
	Failures      int                 `json:"failures"`
	Abbreviations []AbbreviationStats `json:"abbreviations"`
	Restarts      map[string]int      `json:"restarts"`
}

// Summary aggregates records newer than since. A zero since covers the
// whole journal.
func (j *Journal) Summary(since time.Time) (*Summary, error) {
	var sinceNs int64
	if !since.IsZero() {
		sinceNs = since.UnixNano()
	}
	s := &Summary{Since: since, Restarts: make(map[string]int)}

	if err := j.summarizeExpansions(s, sinceNs); err != nil {
		return nil, err
	}
	if err := j.summarizeRestarts(s, sinceNs); err != nil {
		return nil, err
	}
	return s, nil
}

func (j *Journal) summarizeExpansions(s *Summary, sinceNs int64) error {
	rows, err := j.db.Query(`
		SELECT abbreviation,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'ok' THEN 0 ELSE 1 END),
		       MAX(timestamp_ns)
		FROM expansions
		WHERE timestamp_ns >= ?
		GROUP BY abbreviation
		ORDER BY COUNT(*) DESC, abbreviation ASC`, sinceNs)
	if err != nil {
		return fmt.Errorf("query expansions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AbbreviationStats
		if err := rows.Scan(&a.Abbreviation, &a.Count, &a.Failures, &a.LastUsed); err != nil {
			return fmt.Errorf("scan expansion: %w", err)
		}
		s.Expansions += a.Count
		s.Failures += a.Failures
		s.Abbreviations = append(s.Abbreviations, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate expansions: %w", err)
	}
	return nil
}

func (j *Journal) summarizeRestarts(s *Summary, sinceNs int64) error {
	rows, err := j.db.Query(`
		SELECT reason, COUNT(*) FROM hook_restarts
		WHERE timestamp_ns >= ?
		GROUP BY reason`, sinceNs)
	if err != nil {
		return fmt.Errorf("query restarts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return fmt.Errorf("scan restart: %w", err)
		}
		s.Restarts[reason] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate restarts: %w", err)
	}
	return nil
}
