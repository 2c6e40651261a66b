package analytics

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/search"
	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(SearchEventsTable(sqlstore.SQLite))
	require.NoError(t, err)
	return db
}

func TestSearchTracker_RecordSearch(t *testing.T) {
	db := openDB(t)
	tracker := NewSearchTracker(db, sqlstore.SQLite)
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	tracker.now = func() time.Time { return at }

	err := tracker.RecordSearch(context.Background(), search.SearchEvent{
		OrganizationID: "org-1",
		EntityType:     search.EntityPosts,
		Query:          "  Computer   SCIENCE ",
		ResultCount:    12,
		Duration:       42 * time.Millisecond,
	})
	require.NoError(t, err)

	var (
		org, entity string
		query       sql.NullString
		count       int
		durationMs  int64
		createdAt   time.Time
	)
	require.NoError(t, db.QueryRow(`SELECT organization_id, entity_type, query, result_count, duration_ms, created_at FROM search_events`).
		Scan(&org, &entity, &query, &count, &durationMs, &createdAt))
	assert.Equal(t, "org-1", org)
	assert.Equal(t, "posts", entity)
	assert.Equal(t, "computer science", query.String)
	assert.Equal(t, 12, count)
	assert.Equal(t, int64(42), durationMs)
	assert.True(t, at.Equal(createdAt))
}

func TestSearchTracker_EmptyQueryStoredAsNull(t *testing.T) {
	db := openDB(t)
	tracker := NewSearchTracker(db, sqlstore.SQLite)

	require.NoError(t, tracker.RecordSearch(context.Background(), search.SearchEvent{OrganizationID: "org-1", EntityType: search.EntityAll}))

	var query sql.NullString
	require.NoError(t, db.QueryRow(`SELECT query FROM search_events`).Scan(&query))
	assert.False(t, query.Valid)
}

func TestSearchTracker_PostgresStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO search_events .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)`).
		WithArgs(sqlmock.AnyArg(), "org-1", "media", "logo", 3, int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO search_events`).WillReturnError(errors.New("relation does not exist"))

	tracker := NewSearchTracker(db, sqlstore.Postgres)
	event := search.SearchEvent{OrganizationID: "org-1", EntityType: search.EntityMedia, Query: "logo", ResultCount: 3, Duration: 5 * time.Millisecond}
	require.NoError(t, tracker.RecordSearch(context.Background(), event))

	err = tracker.RecordSearch(context.Background(), event)
	assert.ErrorContains(t, err, "failed to record search event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "a b", normalizeQuery("  A \t B\n"))
	assert.Equal(t, "", normalizeQuery("   "))
	assert.Len(t, normalizeQuery(strings.Repeat("x", 600)), maxQueryLength)
}
