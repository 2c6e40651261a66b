package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/search"
)

const ddl = `
CREATE TABLE posts (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL,
	content TEXT,
	excerpt TEXT,
	status TEXT NOT NULL,
	post_type TEXT NOT NULL,
	author_id TEXT,
	published_at {{ts}},
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);
CREATE TABLE media (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	original_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size BIGINT NOT NULL,
	alt_text TEXT,
	caption TEXT,
	url TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);
CREATE TABLE organization_members (
	organization_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (organization_id, user_id)
);
CREATE TABLE taxonomies (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	description TEXT,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL
);
CREATE TABLE terms (
	id TEXT PRIMARY KEY,
	taxonomy_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL
);
CREATE TABLE post_terms (
	post_id TEXT NOT NULL,
	term_id TEXT NOT NULL,
	PRIMARY KEY (post_id, term_id)
);
CREATE TABLE custom_fields (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	slug TEXT NOT NULL,
	field_type TEXT NOT NULL
);
CREATE TABLE post_field_values (
	post_id TEXT NOT NULL,
	field_id TEXT NOT NULL,
	value TEXT,
	PRIMARY KEY (post_id, field_id)
);
CREATE TABLE post_relationships (
	source_post_id TEXT NOT NULL,
	target_post_id TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);
`

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func schemaDDL(d Dialect) string {
	if d == SQLite {
		return strings.ReplaceAll(ddl, "{{ts}}", "TIMESTAMP")
	}
	return strings.ReplaceAll(ddl, "{{ts}}", "TIMESTAMPTZ")
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(schemaDDL(SQLite))
	require.NoError(t, err)
	return db
}

// fixture inserts rows with dialect-correct placeholders and timestamps
type fixture struct {
	t  *testing.T
	db *sql.DB
	d  Dialect
}

func (f *fixture) exec(query string, args ...interface{}) {
	f.t.Helper()
	n := 0
	var sb strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(f.d.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			args[i] = f.d.TimeArg(v)
		case *time.Time:
			if v == nil {
				args[i] = nil
			} else {
				args[i] = f.d.TimeArg(*v)
			}
		}
	}
	_, err := f.db.Exec(sb.String(), args...)
	require.NoError(f.t, err)
}

type post struct {
	id, org, title, slug, status string
	content, excerpt, author     interface{}
	published                    *time.Time
	created                      time.Time
}

func (f *fixture) post(p post) {
	f.t.Helper()
	if p.slug == "" {
		p.slug = p.id
	}
	if p.status == "" {
		p.status = "published"
	}
	f.exec(`INSERT INTO posts (id, organization_id, title, slug, content, excerpt, status, post_type, author_id, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'article', ?, ?, ?, ?)`,
		p.id, p.org, p.title, p.slug, p.content, p.excerpt, p.status, p.author, p.published, p.created, p.created)
}

func (f *fixture) media(id, org, filename, mime string, size int, alt interface{}, created time.Time) {
	f.t.Helper()
	f.exec(`INSERT INTO media (id, organization_id, filename, original_name, mime_type, size, alt_text, caption, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		id, org, filename, filename, mime, size, alt, "https://cdn.example.com/"+filename, created, created)
}

func (f *fixture) user(id, name, email string, created time.Time, memberships map[string]string) {
	f.t.Helper()
	f.exec(`INSERT INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`, id, name, email, created, created)
	for org, role := range memberships {
		f.exec(`INSERT INTO organization_members (organization_id, user_id, role) VALUES (?, ?, ?)`, org, id, role)
	}
}

func (f *fixture) taxonomy(id, org, name, slug string, created time.Time, terms ...string) {
	f.t.Helper()
	f.exec(`INSERT INTO taxonomies (id, organization_id, name, slug, description, created_at, updated_at) VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		id, org, name, slug, created, created)
	for _, term := range terms {
		f.exec(`INSERT INTO terms (id, taxonomy_id, name, slug) VALUES (?, ?, ?, ?)`, id+"-"+term, id, strings.ToUpper(term[:1])+term[1:], term)
	}
}

func (f *fixture) attach(postID, termID string) {
	f.t.Helper()
	f.exec(`INSERT INTO post_terms (post_id, term_id) VALUES (?, ?)`, postID, termID)
}

func (f *fixture) field(id, org, slug string, ft search.FieldType) {
	f.t.Helper()
	f.exec(`INSERT INTO custom_fields (id, organization_id, slug, field_type) VALUES (?, ?, ?, ?)`, id, org, slug, string(ft))
}

func (f *fixture) value(postID, fieldID string, value interface{}) {
	f.t.Helper()
	f.exec(`INSERT INTO post_field_values (post_id, field_id, value) VALUES (?, ?, ?)`, postID, fieldID, value)
}

func (f *fixture) relate(source, target, relationship string, order int) {
	f.t.Helper()
	f.exec(`INSERT INTO post_relationships (source_post_id, target_post_id, relationship_type, sort_order) VALUES (?, ?, ?, ?)`,
		source, target, relationship, order)
}

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func newEngine(db *sql.DB, d Dialect, opts ...search.Option) *search.Engine {
	opts = append([]search.Option{search.WithSchemaLoader(NewSchemaLoader(db, d))}, opts...)
	return search.NewEngine(NewExecutors(db, d), opts...)
}

func caller(org string) search.Caller {
	return search.Caller{OrganizationID: org, Scopes: search.NewScopeSet(search.ScopeWildcard)}
}

func ids(t *testing.T, r *search.Result) []string {
	t.Helper()
	out := make([]string, len(r.Results))
	for i, rec := range r.Results {
		id, ok := rec["id"].(string)
		require.True(t, ok, "result %d has no id", i)
		out[i] = id
	}
	return out
}

// traverse follows cursors until the last page and returns every id in order
func traverse(t *testing.T, engine *search.Engine, c search.Caller, req search.RawRequest, between func(page int)) []string {
	t.Helper()
	var all []string
	for page := 0; page < 100; page++ {
		res, err := engine.Search(context.Background(), c, req)
		require.NoError(t, err)
		all = append(all, ids(t, res)...)
		if res.Cursor == nil {
			return all
		}
		require.NotEmpty(t, res.Results, "a cursor must follow a non-empty page")
		req.After = *res.Cursor
		if between != nil {
			between(page)
		}
	}
	t.Fatal("pagination did not terminate")
	return nil
}

func filter(property, op string, value string) search.RawFilter {
	f := search.RawFilter{Property: property, Operator: op}
	if value != "" {
		f.Value = []byte(value)
	}
	return f
}
