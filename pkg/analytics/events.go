package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/folio/pkg/search"
	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

// maxQueryLength bounds the stored search text
const maxQueryLength = 512

// DB is the subset of *sql.DB used by the tracker and the service
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SearchEventsTable returns the search_events DDL for the dialect
func SearchEventsTable(d sqlstore.Dialect) string {
	ts := "TIMESTAMPTZ"
	if d == sqlstore.SQLite {
		ts = "TIMESTAMP"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS search_events (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	query TEXT,
	result_count INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at %s NOT NULL
)`, ts)
}

// SearchTracker records completed searches in search_events. It implements
// search.EventSink.
type SearchTracker struct {
	db  DB
	d   sqlstore.Dialect
	now func() time.Time
}

var _ search.EventSink = (*SearchTracker)(nil)

// NewSearchTracker creates a new search tracker
func NewSearchTracker(db DB, d sqlstore.Dialect) *SearchTracker {
	return &SearchTracker{db: db, d: d, now: time.Now}
}

// RecordSearch records a search event
func (t *SearchTracker) RecordSearch(ctx context.Context, event search.SearchEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO search_events (
			id, organization_id, entity_type, query, result_count, duration_ms, created_at
		) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		t.d.Placeholder(1), t.d.Placeholder(2), t.d.Placeholder(3), t.d.Placeholder(4),
		t.d.Placeholder(5), t.d.Placeholder(6), t.d.Placeholder(7))

	_, err := t.db.ExecContext(ctx, query,
		uuid.NewString(), event.OrganizationID, string(event.EntityType),
		nullString(normalizeQuery(event.Query)), event.ResultCount,
		event.Duration.Milliseconds(), t.d.TimeArg(t.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record search event: %w", err)
	}
	return nil
}

// normalizeQuery folds case and whitespace so equal searches aggregate
func normalizeQuery(q string) string {
	q = strings.Join(strings.Fields(strings.ToLower(q)), " ")
	if len(q) > maxQueryLength {
		q = strings.ToValidUTF8(q[:maxQueryLength], "")
	}
	return q
}

// Helper function to convert empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
