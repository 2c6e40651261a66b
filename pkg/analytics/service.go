package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

// Service reports on recorded searches of one organization
type Service struct {
	db DB
	d  sqlstore.Dialect
}

// NewService creates a new analytics service
func NewService(db DB, d sqlstore.Dialect) *Service {
	return &Service{db: db, d: d}
}

// Overview contains high-level search KPIs for a period
type Overview struct {
	TotalSearches  int64            `json:"totalSearches"`
	UniqueQueries  int64            `json:"uniqueQueries"`
	ZeroResultRate float64          `json:"zeroResultRate"`
	AvgDurationMs  float64          `json:"avgDurationMs"`
	ByEntityType   map[string]int64 `json:"byEntityType"`
}

// QueryStat aggregates the searches for one query text
type QueryStat struct {
	Query      string  `json:"query"`
	Count      int64   `json:"count"`
	AvgResults float64 `json:"avgResults"`
}

// Report is the analytics payload served to API consumers
type Report struct {
	Since             time.Time   `json:"since"`
	Overview          *Overview   `json:"overview"`
	TopQueries        []QueryStat `json:"topQueries"`
	ZeroResultQueries []QueryStat `json:"zeroResultQueries"`
}

// GetReport builds the full report for searches since the given time
func (s *Service) GetReport(ctx context.Context, organizationID string, since time.Time, limit int) (*Report, error) {
	overview, err := s.GetOverview(ctx, organizationID, since)
	if err != nil {
		return nil, err
	}
	top, err := s.TopQueries(ctx, organizationID, since, limit)
	if err != nil {
		return nil, err
	}
	zero, err := s.ZeroResultQueries(ctx, organizationID, since, limit)
	if err != nil {
		return nil, err
	}
	return &Report{Since: since.UTC(), Overview: overview, TopQueries: top, ZeroResultQueries: zero}, nil
}

// GetOverview retrieves high-level KPIs
func (s *Service) GetOverview(ctx context.Context, organizationID string, since time.Time) (*Overview, error) {
	overview := &Overview{ByEntityType: map[string]int64{}}

	query := fmt.Sprintf(`
		SELECT
			entity_type,
			COUNT(*),
			SUM(CASE WHEN result_count = 0 THEN 1 ELSE 0 END),
			SUM(duration_ms)
		FROM search_events
		WHERE organization_id = %s AND created_at >= %s
		GROUP BY entity_type`, s.d.Placeholder(1), s.d.Placeholder(2))

	rows, err := s.db.QueryContext(ctx, query, organizationID, s.d.TimeArg(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query search overview: %w", err)
	}
	defer rows.Close()

	var zero, duration int64
	for rows.Next() {
		var (
			entity                  string
			count, zeros, durations int64
		)
		if err := rows.Scan(&entity, &count, &zeros, &durations); err != nil {
			return nil, fmt.Errorf("failed to scan search overview: %w", err)
		}
		overview.ByEntityType[entity] = count
		overview.TotalSearches += count
		zero += zeros
		duration += durations
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query search overview: %w", err)
	}

	if overview.TotalSearches > 0 {
		overview.ZeroResultRate = float64(zero) / float64(overview.TotalSearches)
		overview.AvgDurationMs = float64(duration) / float64(overview.TotalSearches)
	}

	unique := fmt.Sprintf(`
		SELECT COUNT(DISTINCT query)
		FROM search_events
		WHERE organization_id = %s AND created_at >= %s AND query IS NOT NULL`, s.d.Placeholder(1), s.d.Placeholder(2))
	uniqueRows, err := s.db.QueryContext(ctx, unique, organizationID, s.d.TimeArg(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count unique queries: %w", err)
	}
	defer uniqueRows.Close()
	if uniqueRows.Next() {
		if err := uniqueRows.Scan(&overview.UniqueQueries); err != nil {
			return nil, fmt.Errorf("failed to count unique queries: %w", err)
		}
	}
	return overview, uniqueRows.Err()
}

// TopQueries returns the most frequent query texts
func (s *Service) TopQueries(ctx context.Context, organizationID string, since time.Time, limit int) ([]QueryStat, error) {
	return s.queryStats(ctx, organizationID, since, limit, false)
}

// ZeroResultQueries returns the most frequent query texts that found nothing
func (s *Service) ZeroResultQueries(ctx context.Context, organizationID string, since time.Time, limit int) ([]QueryStat, error) {
	return s.queryStats(ctx, organizationID, since, limit, true)
}

func (s *Service) queryStats(ctx context.Context, organizationID string, since time.Time, limit int, zeroOnly bool) ([]QueryStat, error) {
	if limit <= 0 {
		limit = 10
	}
	filter := ""
	if zeroOnly {
		filter = " AND result_count = 0"
	}
	query := fmt.Sprintf(`
		SELECT query, COUNT(*) AS searches, AVG(result_count)
		FROM search_events
		WHERE organization_id = %s AND created_at >= %s AND query IS NOT NULL%s
		GROUP BY query
		ORDER BY searches DESC, query ASC
		LIMIT %s`, s.d.Placeholder(1), s.d.Placeholder(2), filter, s.d.Placeholder(3))

	rows, err := s.db.QueryContext(ctx, query, organizationID, s.d.TimeArg(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search terms: %w", err)
	}
	defer rows.Close()

	stats := []QueryStat{}
	for rows.Next() {
		var stat QueryStat
		if err := rows.Scan(&stat.Query, &stat.Count, &stat.AvgResults); err != nil {
			return nil, fmt.Errorf("failed to scan search terms: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}
