package sqlstore

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/search"
)

// seedPrograms loads five programs: three bachelor/master under 5000 and two
// that miss one of the criteria, plus a foreign organization's post
func seedPrograms(f *fixture) {
	f.taxonomy("tax-level", "org-1", "Degree level", "program-degree-level", t0, "bachelor", "master", "phd")
	f.taxonomy("tax-other", "org-2", "Degree level", "program-degree-level", t0, "bachelor")
	f.field("cf-fee", "org-1", "tuition_fee", search.FieldNumber)
	f.field("cf-fee-2", "org-2", "tuition_fee", search.FieldNumber)

	programs := []struct {
		id    string
		level string
		fee   string
	}{
		{"p1", "bachelor", "3000"},
		{"p2", "master", "4500"},
		{"p3", "phd", "2000"},
		{"p4", "bachelor", "9000"},
		{"p5", "master", "4999.5"},
	}
	for i, p := range programs {
		f.post(post{id: p.id, org: "org-1", title: "Program " + p.id, created: t0.Add(time.Duration(i+1) * time.Hour)})
		f.attach(p.id, "tax-level-"+p.level)
		f.value(p.id, "cf-fee", p.fee)
	}

	f.post(post{id: "x1", org: "org-2", title: "Foreign", created: t0.Add(10 * time.Hour)})
	f.attach("x1", "tax-other-bachelor")
	f.value("x1", "cf-fee-2", "100")
}

func TestExecutor_ProgramScenario(t *testing.T) {
	db := openSQLite(t)
	seedPrograms(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	req := search.RawRequest{
		EntityType: "posts",
		FilterGroups: []search.RawFilterGroup{{
			Operator: "AND",
			Filters: []search.RawFilter{
				filter("taxonomies.program-degree-level", "in", `["bachelor","master"]`),
				filter("customFields.tuition_fee", "lt", `5000`),
			},
		}},
		Limit: 2,
	}

	page1, err := engine.Search(context.Background(), caller("org-1"), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p2"}, ids(t, page1))
	require.NotNil(t, page1.Cursor)

	req.After = *page1.Cursor
	page2, err := engine.Search(context.Background(), caller("org-1"), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(t, page2))
	assert.Nil(t, page2.Cursor)
}

func TestExecutor_OrganizationIsolation(t *testing.T) {
	db := openSQLite(t)
	seedPrograms(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	res, err := engine.Search(context.Background(), caller("org-2"), search.RawRequest{EntityType: "posts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, ids(t, res))

	res, err = engine.Search(context.Background(), caller("org-3"), search.RawRequest{EntityType: "posts"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Nil(t, res.Cursor)
}

// seedCatalog loads posts exercising every address space
func seedCatalog(f *fixture) {
	f.post(post{id: "a", org: "org-1", title: "Intro to Go", content: "Learn GO fast", author: "u1", published: at(24 * time.Hour), created: t0.Add(time.Hour)})
	f.post(post{id: "b", org: "org-1", title: "Rust 50% off", status: "draft", created: t0.Add(2 * time.Hour)})
	f.post(post{id: "c", org: "org-1", title: "go_routines deep dive", slug: "go-routines", content: "Concurrency", author: "u2", published: at(72 * time.Hour), created: t0.Add(3 * time.Hour)})
	f.post(post{id: "d", org: "org-1", title: "Databases", slug: "databases", status: "archived", author: "u1", published: at(120 * time.Hour), created: t0.Add(4 * time.Hour)})

	f.field("cf-fee", "org-1", "tuition_fee", search.FieldNumber)
	f.field("cf-featured", "org-1", "featured", search.FieldBoolean)
	f.field("cf-deadline", "org-1", "deadline", search.FieldDate)
	f.field("cf-languages", "org-1", "languages", search.FieldMultiSelect)
	f.field("cf-campus", "org-1", "campus", search.FieldText)
	f.field("cf-meta", "org-1", "metadata", search.FieldJSON)

	f.value("a", "cf-fee", "1000")
	f.value("a", "cf-featured", "true")
	f.value("a", "cf-deadline", "2024-06-01")
	f.value("a", "cf-languages", `["en","de"]`)
	f.value("a", "cf-campus", "North")
	f.value("b", "cf-fee", "5000")
	f.value("b", "cf-featured", "false")
	f.value("b", "cf-languages", `["fr"]`)
	f.value("c", "cf-fee", "2500")
	f.value("c", "cf-deadline", "2024-09-15T10:00:00Z")
	f.value("c", "cf-campus", "south")
	f.value("a", "cf-meta", `[1, "x"]`)
	f.value("c", "cf-meta", `"x"`)

	f.taxonomy("tax-cat", "org-1", "Category", "category", t0, "news", "tutorial")
	f.attach("a", "tax-cat-tutorial")
	f.attach("b", "tax-cat-news")
	f.attach("c", "tax-cat-news")
	f.attach("c", "tax-cat-tutorial")

	f.relate("a", "c", "university", 2)
	f.relate("a", "d", "university", 1)
	f.relate("b", "c", "university", 0)
}

type operatorCase struct {
	name    string
	filters []search.RawFilter
	op      string
	search  string
	want    []string
}

// operatorCases run against seedCatalog, sorted by id
var operatorCases = []operatorCase{
	{name: "eq", filters: []search.RawFilter{filter("status", "eq", `"published"`)}, want: []string{"a", "c"}},
	{name: "ne", filters: []search.RawFilter{filter("status", "ne", `"published"`)}, want: []string{"b", "d"}},
	{name: "ne matches null", filters: []search.RawFilter{filter("authorId", "ne", `"u1"`)}, want: []string{"b", "c"}},
	{name: "is_null", filters: []search.RawFilter{filter("authorId", "is_null", "")}, want: []string{"b"}},
	{name: "is_not_null", filters: []search.RawFilter{filter("authorId", "is_not_null", "")}, want: []string{"a", "c", "d"}},
	{name: "contains is case-insensitive", filters: []search.RawFilter{filter("title", "contains", `"GO"`)}, want: []string{"a", "c"}},
	{name: "contains escapes wildcards", filters: []search.RawFilter{filter("title", "contains", `"50%"`)}, want: []string{"b"}},
	{name: "not_contains", filters: []search.RawFilter{filter("title", "not_contains", `"go"`)}, want: []string{"b", "d"}},
	{name: "starts_with", filters: []search.RawFilter{filter("title", "starts_with", `"intro"`)}, want: []string{"a"}},
	{name: "ends_with", filters: []search.RawFilter{filter("title", "ends_with", `"DIVE"`)}, want: []string{"c"}},
	{name: "in", filters: []search.RawFilter{filter("status", "in", `["draft","archived"]`)}, want: []string{"b", "d"}},
	{name: "not_in", filters: []search.RawFilter{filter("status", "not_in", `["draft"]`)}, want: []string{"a", "c", "d"}},
	{name: "gt timestamp", filters: []search.RawFilter{filter("createdAt", "gt", `"2024-01-01T02:00:00Z"`)}, want: []string{"c", "d"}},
	{name: "date_gte skips null", filters: []search.RawFilter{filter("publishedAt", "date_gte", `"2024-01-03"`)}, want: []string{"c", "d"}},
	{name: "between inclusive", filters: []search.RawFilter{filter("publishedAt", "between", `["2024-01-02T00:00:00Z","2024-01-04T00:00:00Z"]`)}, want: []string{"a", "c"}},
	{name: "date_between", filters: []search.RawFilter{filter("publishedAt", "date_between", `["2024-01-02","2024-01-04"]`)}, want: []string{"a", "c"}},
	{name: "custom number lt", filters: []search.RawFilter{filter("customFields.tuition_fee", "lt", `3000`)}, want: []string{"a", "c"}},
	{name: "custom number between", filters: []search.RawFilter{filter("customFields.tuition_fee", "between", `[1000, 2500]`)}, want: []string{"a", "c"}},
	{name: "custom numeric string", filters: []search.RawFilter{filter("customFields.tuition_fee", "gte", `"5000"`)}, want: []string{"b"}},
	{name: "custom ne includes missing", filters: []search.RawFilter{filter("customFields.tuition_fee", "ne", `1000`)}, want: []string{"b", "c", "d"}},
	{name: "custom boolean", filters: []search.RawFilter{filter("customFields.featured", "eq", `true`)}, want: []string{"a"}},
	{name: "custom boolean false", filters: []search.RawFilter{filter("customFields.featured", "eq", `false`)}, want: []string{"b"}},
	{name: "custom date", filters: []search.RawFilter{filter("customFields.deadline", "date_gt", `"2024-07-01"`)}, want: []string{"c"}},
	{name: "multiselect contains", filters: []search.RawFilter{filter("customFields.languages", "contains", `"fr"`)}, want: []string{"b"}},
	{name: "multiselect not_contains", filters: []search.RawFilter{filter("customFields.languages", "not_contains", `"fr"`)}, want: []string{"a", "c", "d"}},
	{name: "multiselect eq as set", filters: []search.RawFilter{filter("customFields.languages", "eq", `["de","en","de"]`)}, want: []string{"a"}},
	{name: "multiselect eq single option", filters: []search.RawFilter{filter("customFields.languages", "eq", `"fr"`)}, want: []string{"b"}},
	{name: "multiselect eq subset", filters: []search.RawFilter{filter("customFields.languages", "eq", `"en"`)}, want: []string{}},
	{name: "multiselect ne", filters: []search.RawFilter{filter("customFields.languages", "ne", `["fr"]`)}, want: []string{"a", "c", "d"}},
	{name: "json eq array", filters: []search.RawFilter{filter("customFields.metadata", "eq", `[1,"x"]`)}, want: []string{"a"}},
	{name: "json eq scalar", filters: []search.RawFilter{filter("customFields.metadata", "eq", `"x"`)}, want: []string{"c"}},
	{name: "json ne", filters: []search.RawFilter{filter("customFields.metadata", "ne", `"x"`)}, want: []string{"a", "b", "d"}},
	{name: "custom text contains", filters: []search.RawFilter{filter("customFields.campus", "contains", `"OUTH"`)}, want: []string{"c"}},
	{name: "custom is_null", filters: []search.RawFilter{filter("customFields.campus", "is_null", "")}, want: []string{"b", "d"}},
	{name: "taxonomy eq", filters: []search.RawFilter{filter("taxonomies.category", "eq", `"news"`)}, want: []string{"b", "c"}},
	{name: "taxonomy in", filters: []search.RawFilter{filter("taxonomies.category", "in", `["tutorial"]`)}, want: []string{"a", "c"}},
	{name: "taxonomy not_in", filters: []search.RawFilter{filter("taxonomies.category", "not_in", `["news"]`)}, want: []string{"a", "d"}},
	{name: "taxonomy is_null", filters: []search.RawFilter{filter("taxonomies.category", "is_null", "")}, want: []string{"d"}},
	{name: "term attached", filters: []search.RawFilter{filter("taxonomies.category.news", "eq", `true`)}, want: []string{"b", "c"}},
	{name: "term not attached", filters: []search.RawFilter{filter("taxonomies.category.news", "eq", `false`)}, want: []string{"a", "d"}},
	{name: "relationship", filters: []search.RawFilter{filter("relationships.university.slug", "eq", `"databases"`)}, want: []string{"a"}},
	{name: "relationship without match", filters: []search.RawFilter{filter("relationships.university.slug", "eq", `"x"`)}, want: []string{}},
	{name: "relationship ne", filters: []search.RawFilter{filter("relationships.university.slug", "ne", `"databases"`)}, want: []string{"b", "c", "d"}},
	{name: "unknown relationship type", filters: []search.RawFilter{filter("relationships.campus.slug", "is_not_null", "")}, want: []string{}},
	{name: "or group", op: "or", filters: []search.RawFilter{filter("status", "eq", `"draft"`), filter("title", "starts_with", `"data"`)}, want: []string{"b", "d"}},
	{name: "free text", search: "concurrency", want: []string{"c"}},
	{name: "free text and filter", search: "go", filters: []search.RawFilter{filter("status", "eq", `"published"`)}, want: []string{"a", "c"}},
}

func checkOperators(t *testing.T, engine *search.Engine) {
	t.Helper()
	for _, tt := range operatorCases {
		t.Run(tt.name, func(t *testing.T) {
			req := search.RawRequest{
				EntityType: "posts",
				Sorts:      []search.RawSort{{Property: "id", Direction: "asc"}},
				Search:     tt.search,
				Limit:      100,
			}
			if len(tt.filters) > 0 {
				req.FilterGroups = []search.RawFilterGroup{{Operator: tt.op, Filters: tt.filters}}
			}
			res, err := engine.Search(context.Background(), caller("org-1"), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, res))
			assert.Nil(t, res.Cursor)
		})
	}
}

func TestExecutor_Operators(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	checkOperators(t, newEngine(db, SQLite))
}

func TestExecutor_BetweenMatchesRange(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	run := func(filters ...search.RawFilter) []string {
		res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
			EntityType:   "posts",
			FilterGroups: []search.RawFilterGroup{{Filters: filters}},
			Sorts:        []search.RawSort{{Property: "id", Direction: "asc"}},
			Limit:        100,
		})
		require.NoError(t, err)
		return ids(t, res)
	}

	tests := []struct {
		property, low, high string
	}{
		{"customFields.tuition_fee", `1000`, `2500`},
		{"customFields.tuition_fee", `3000`, `1000`},
		{"customFields.tuition_fee", `2500`, `2500`},
		{"publishedAt", `"2024-01-02T00:00:00Z"`, `"2024-01-04T00:00:00Z"`},
		{"publishedAt", `"2024-01-04T00:00:00Z"`, `"2024-01-02T00:00:00Z"`},
	}
	for _, tt := range tests {
		t.Run(tt.property+" "+tt.low+".."+tt.high, func(t *testing.T) {
			between := run(filter(tt.property, "between", "["+tt.low+","+tt.high+"]"))
			ranged := run(filter(tt.property, "gte", tt.low), filter(tt.property, "lte", tt.high))
			assert.Equal(t, ranged, between)
		})
	}
}

func TestExecutor_NullnessPartitions(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	for _, property := range []string{"publishedAt", "customFields.deadline", "taxonomies.category", "relationships.university.id"} {
		t.Run(property, func(t *testing.T) {
			run := func(op string) []string {
				res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
					EntityType:   "posts",
					FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter(property, op, "")}}},
					Limit:        100,
				})
				require.NoError(t, err)
				return ids(t, res)
			}
			null, notNull := run("is_null"), run("is_not_null")
			all := append(append([]string{}, null...), notNull...)
			sort.Strings(all)
			assert.Equal(t, []string{"a", "b", "c", "d"}, all)
		})
	}
}

func TestExecutor_GroupsCombineWithAnd(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
		EntityType: "posts",
		FilterGroups: []search.RawFilterGroup{
			{Operator: "OR", Filters: []search.RawFilter{filter("status", "eq", `"published"`), filter("status", "eq", `"draft"`)}},
			{Filters: []search.RawFilter{filter("customFields.tuition_fee", "lt", `2000`)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(t, res))
}

func TestExecutor_Projection(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
		EntityType:   "posts",
		FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter("id", "eq", `"a"`)}}},
		Properties:   []string{"title", "customFields", "taxonomies.category", "relationships.university"},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	rec := res.Results[0]

	assert.Equal(t, "a", rec["id"])
	assert.Equal(t, "Intro to Go", rec["title"])
	assert.NotContains(t, rec, "status")

	fields, ok := rec["customFields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1000.0, fields["tuition_fee"])
	assert.Equal(t, true, fields["featured"])
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), fields["deadline"])
	assert.Equal(t, []interface{}{"en", "de"}, fields["languages"])
	assert.Equal(t, "North", fields["campus"])

	terms, ok := rec["taxonomies"].(map[string][]Term)
	require.True(t, ok)
	assert.Equal(t, []Term{{ID: "tax-cat-tutorial", Name: "Tutorial", Slug: "tutorial"}}, terms["category"])

	links, ok := rec["relationships"].(map[string][]map[string]interface{})
	require.True(t, ok)
	require.Len(t, links["university"], 2)
	assert.Equal(t, "d", links["university"][0]["id"], "ordered by sort_order")
	assert.Equal(t, "databases", links["university"][0]["slug"])
	assert.Equal(t, "Databases", links["university"][0]["title"])
	assert.Equal(t, "c", links["university"][1]["id"])
}

func TestExecutor_DefaultProjection(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})
	engine := newEngine(db, SQLite)

	res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
		EntityType:   "posts",
		FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter("id", "eq", `"d"`)}}},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	rec := res.Results[0]

	for _, key := range []string{"id", "title", "slug", "content", "excerpt", "status", "postType", "authorId", "publishedAt", "createdAt", "updatedAt"} {
		assert.Contains(t, rec, key)
	}
	assert.Nil(t, rec["content"])
	assert.Equal(t, map[string]interface{}{}, rec["customFields"])
	assert.Equal(t, map[string][]Term{}, rec["taxonomies"])
	assert.Equal(t, map[string][]map[string]interface{}{}, rec["relationships"])
}

func TestExecutor_PaginationTraversal(t *testing.T) {
	db := openSQLite(t)
	f := &fixture{t: t, db: db, d: SQLite}

	type row struct {
		id   string
		size int
	}
	var rows []row
	for i := 1; i <= 13; i++ {
		id := "m-" + strconv.Itoa(100+i)
		size := (i % 4) * 100
		rows = append(rows, row{id, size})
		f.media(id, "org-1", id+".png", "image/png", size, nil, t0.Add(time.Duration(i%3)*time.Minute))
	}

	tests := []struct {
		name string
		sort search.RawSort
		less func(a, b row) bool
	}{
		{"size asc", search.RawSort{Property: "size", Direction: "asc"}, func(a, b row) bool {
			if a.size != b.size {
				return a.size < b.size
			}
			return a.id < b.id
		}},
		{"size desc", search.RawSort{Property: "size", Direction: "desc"}, func(a, b row) bool {
			if a.size != b.size {
				return a.size > b.size
			}
			return a.id > b.id
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := append([]row(nil), rows...)
			sort.Slice(expected, func(i, j int) bool { return tt.less(expected[i], expected[j]) })
			want := make([]string, len(expected))
			for i, r := range expected {
				want[i] = r.id
			}

			engine := newEngine(db, SQLite)
			req := search.RawRequest{
				EntityType:   "media",
				FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter("mimeType", "eq", `"image/png"`)}}},
				Sorts:        []search.RawSort{tt.sort},
				Limit:        4,
			}
			inserted := 0
			got := traverse(t, engine, caller("org-1"), req, func(page int) {
				// rows outside the filter must not disturb the traversal
				inserted++
				f.media("v-"+strconv.Itoa(inserted)+tt.name, "org-1", "clip.mp4", "video/mp4", 150, nil, t0)
			})
			assert.Equal(t, want, got)
		})
	}
}

func TestExecutor_NullableSortTraversal(t *testing.T) {
	db := openSQLite(t)
	f := &fixture{t: t, db: db, d: SQLite}
	published := []*time.Time{at(time.Hour), nil, at(3 * time.Hour), nil, at(time.Hour), at(2 * time.Hour), nil}
	for i, p := range published {
		f.post(post{id: "p" + strconv.Itoa(i), org: "org-1", title: "Post", published: p, created: t0})
	}
	engine := newEngine(db, SQLite)

	desc := traverse(t, engine, caller("org-1"), search.RawRequest{
		EntityType: "posts",
		Sorts:      []search.RawSort{{Property: "publishedAt", Direction: "desc"}},
		Limit:      2,
	}, nil)
	assert.Equal(t, []string{"p2", "p5", "p4", "p0", "p6", "p3", "p1"}, desc, "nulls last descending")

	asc := traverse(t, engine, caller("org-1"), search.RawRequest{
		EntityType: "posts",
		Sorts:      []search.RawSort{{Property: "publishedAt", Direction: "asc"}},
		Limit:      3,
	}, nil)
	assert.Equal(t, []string{"p1", "p3", "p6", "p0", "p4", "p5", "p2"}, asc, "nulls first ascending")
}

func TestExecutor_Users(t *testing.T) {
	db := openSQLite(t)
	f := &fixture{t: t, db: db, d: SQLite}
	f.user("u1", "Alice", "alice@example.com", t0.Add(time.Hour), map[string]string{"org-1": "owner"})
	f.user("u2", "Bob", "bob@example.com", t0.Add(2*time.Hour), map[string]string{"org-1": "editor", "org-2": "admin"})
	f.user("u3", "Carol", "carol@example.com", t0.Add(3*time.Hour), map[string]string{"org-2": "editor"})
	engine := newEngine(db, SQLite)

	res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{EntityType: "users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, ids(t, res))

	res, err = engine.Search(context.Background(), caller("org-2"), search.RawRequest{
		EntityType:   "users",
		FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter("role", "eq", `"admin"`)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids(t, res))
	assert.Equal(t, "admin", res.Results[0]["role"])

	res, err = engine.Search(context.Background(), caller("org-1"), search.RawRequest{EntityType: "users", Search: "ALICE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids(t, res))
}

func TestExecutor_AllEntityTypes(t *testing.T) {
	db := openSQLite(t)
	f := &fixture{t: t, db: db, d: SQLite}
	f.post(post{id: "post-1", org: "org-1", title: "First", created: t0.Add(1 * time.Minute)})
	f.post(post{id: "post-2", org: "org-1", title: "Second", created: t0.Add(4 * time.Minute)})
	f.media("media-1", "org-1", "a.png", "image/png", 10, nil, t0.Add(2*time.Minute))
	f.media("media-2", "org-1", "b.png", "image/png", 10, nil, t0.Add(5*time.Minute))
	f.taxonomy("tax-1", "org-1", "Tags", "tags", t0.Add(3*time.Minute))
	f.user("u1", "Alice", "alice@example.com", t0.Add(6*time.Minute), map[string]string{"org-1": "owner"})
	engine := newEngine(db, SQLite)

	req := search.RawRequest{
		EntityType: "all",
		Sorts:      []search.RawSort{{Property: "createdAt", Direction: "asc"}},
		Limit:      4,
	}
	page1, err := engine.Search(context.Background(), caller("org-1"), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-1", "media-1", "tax-1", "post-2"}, ids(t, page1))
	assert.Equal(t, "taxonomies", page1.Results[2]["entityType"])
	require.NotNil(t, page1.Cursor)

	req.After = *page1.Cursor
	page2, err := engine.Search(context.Background(), caller("org-1"), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"media-2", "u1"}, ids(t, page2))
	assert.Equal(t, "users", page2.Results[1]["entityType"])
	assert.Nil(t, page2.Cursor)

	// relationships only exist on posts, so the other types are excluded with a note
	res, err := engine.Search(context.Background(), caller("org-1"), search.RawRequest{
		EntityType:   "all",
		FilterGroups: []search.RawFilterGroup{{Filters: []search.RawFilter{filter("relationships.university.slug", "is_null", "")}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2", "post-1"}, ids(t, res))
	require.NotNil(t, res.Meta)
	assert.Len(t, res.Meta.Excluded, 3)
}

func TestSchemaLoader(t *testing.T) {
	db := openSQLite(t)
	seedCatalog(&fixture{t: t, db: db, d: SQLite})

	schema, err := NewSchemaLoader(db, SQLite).LoadSchema(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, search.FieldNumber, schema.Fields["tuition_fee"])
	assert.Equal(t, search.FieldMultiSelect, schema.Fields["languages"])
	assert.True(t, schema.HasTaxonomy("category"))

	empty, err := NewSchemaLoader(db, SQLite).LoadSchema(context.Background(), "org-9")
	require.NoError(t, err)
	assert.Empty(t, empty.Fields)
}
