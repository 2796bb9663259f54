package tracking

import (
	"database/sql"
	"fmt"
	"log/slog"

	"riqaudio.click/internal/engine"
)

// SoundUsage aggregates the events recorded for one source file
type SoundUsage struct {
	Source     string `json:"source"`
	FileType   string `json:"file_type,omitempty"`
	LoadCount  int    `json:"load_count"`
	PlayCount  int    `json:"play_count"`
	LastPlayed int64  `json:"last_played"` // Unix timestamp, 0 if never played
}

// LoadFailure groups failed loads by source and error text
type LoadFailure struct {
	Source   string `json:"source"`
	Error    string `json:"error"`
	Count    int    `json:"count"`
	LastSeen int64  `json:"last_seen"`
}

// UsageSummary provides overall usage statistics
type UsageSummary struct {
	TotalEvents   int            `json:"total_events"`
	UniqueSources int            `json:"unique_sources"`
	Sessions      int            `json:"sessions"`
	KindCounts    map[string]int `json:"kind_counts"`
}

// FormatDistribution represents how often each container type was loaded
type FormatDistribution struct {
	FileType   string  `json:"file_type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

func withWhere(query, whereClause string) string {
	if whereClause == "" {
		return query
	}
	return query + " AND " + whereClause
}

func withLimit(query string, limit int) string {
	if limit > 0 {
		return query + fmt.Sprintf(" LIMIT %d", limit)
	}
	return query
}

// GetSoundUsage returns per-source load and play counts, most played first
func GetSoundUsage(db *sql.DB, filter QueryFilter) ([]SoundUsage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	// The kind filter would defeat the per-kind counts below
	filter.Kind = ""
	whereClause, args := filter.BuildWhereClause()

	query := withWhere(`
		SELECT
			source,
			MAX(file_type) AS file_type,
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END) AS load_count,
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END) AS play_count,
			COALESCE(MAX(CASE WHEN kind = ? THEN timestamp END), 0) AS last_played
		FROM engine_events
		WHERE source != ''`, whereClause)
	query += `
		GROUP BY source
		HAVING load_count > 0 OR play_count > 0
		ORDER BY play_count DESC, load_count DESC, source`
	query = withLimit(query, filter.Limit)

	queryArgs := append([]interface{}{
		string(engine.EventSoundLoaded),
		string(engine.EventSoundPlayed),
		string(engine.EventSoundPlayed),
	}, args...)

	rows, err := db.Query(query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sound usage: %w", err)
	}
	defer rows.Close()

	var results []SoundUsage
	for rows.Next() {
		var usage SoundUsage
		if err := rows.Scan(&usage.Source, &usage.FileType, &usage.LoadCount, &usage.PlayCount, &usage.LastPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan sound usage row: %w", err)
		}
		results = append(results, usage)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sound usage rows: %w", err)
	}

	slog.Debug("sound usage queried", "sources", len(results))
	return results, nil
}

// GetLoadFailures returns failed loads grouped by source and error
func GetLoadFailures(db *sql.DB, filter QueryFilter) ([]LoadFailure, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	filter.Kind = string(engine.EventLoadFailed)
	whereClause, args := filter.BuildWhereClause()

	query := withWhere(`
		SELECT
			source,
			COALESCE(error, '') AS error,
			COUNT(*) AS failures,
			MAX(timestamp) AS last_seen
		FROM engine_events
		WHERE 1 = 1`, whereClause)
	query += `
		GROUP BY source, error
		ORDER BY failures DESC, last_seen DESC`
	query = withLimit(query, filter.Limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query load failures: %w", err)
	}
	defer rows.Close()

	var results []LoadFailure
	for rows.Next() {
		var failure LoadFailure
		if err := rows.Scan(&failure.Source, &failure.Error, &failure.Count, &failure.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan load failure row: %w", err)
		}
		results = append(results, failure)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating load failure rows: %w", err)
	}

	return results, nil
}

// GetUsageSummary returns overall usage statistics
func GetUsageSummary(db *sql.DB, filter QueryFilter) (*UsageSummary, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	whereClause, args := filter.BuildWhereClause()

	summaryQuery := withWhere(`
		SELECT
			COUNT(*) AS total_events,
			COUNT(DISTINCT NULLIF(source, '')) AS unique_sources,
			COUNT(DISTINCT session_id) AS sessions
		FROM engine_events
		WHERE 1 = 1`, whereClause)

	var summary UsageSummary
	err := db.QueryRow(summaryQuery, args...).Scan(&summary.TotalEvents, &summary.UniqueSources, &summary.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage summary: %w", err)
	}

	kindQuery := withWhere(`
		SELECT kind, COUNT(*)
		FROM engine_events
		WHERE 1 = 1`, whereClause)
	kindQuery += `
		GROUP BY kind
		ORDER BY kind`

	rows, err := db.Query(kindQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kind distribution: %w", err)
	}
	defer rows.Close()

	summary.KindCounts = make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind distribution: %w", err)
		}
		summary.KindCounts[kind] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kind distribution rows: %w", err)
	}

	return &summary, nil
}

// GetFormatDistribution returns how successful loads split across containers
func GetFormatDistribution(db *sql.DB, filter QueryFilter) ([]FormatDistribution, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	filter.Kind = string(engine.EventSoundLoaded)
	whereClause, args := filter.BuildWhereClause()

	query := withWhere(`
		SELECT file_type, COUNT(*) AS loads
		FROM engine_events
		WHERE file_type != ''`, whereClause)
	query += `
		GROUP BY file_type
		ORDER BY loads DESC, file_type`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query format distribution: %w", err)
	}
	defer rows.Close()

	var results []FormatDistribution
	total := 0
	for rows.Next() {
		var dist FormatDistribution
		if err := rows.Scan(&dist.FileType, &dist.Count); err != nil {
			return nil, fmt.Errorf("failed to scan format distribution: %w", err)
		}
		total += dist.Count
		results = append(results, dist)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating format distribution rows: %w", err)
	}

	for i := range results {
		results[i].Percentage = float64(results[i].Count) * 100 / float64(total)
	}
	return results, nil
}
