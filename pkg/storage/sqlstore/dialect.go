package sqlstore

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect renders the SQL fragments that differ between the supported stores
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// sqliteTimeLayout is fixed width so stored timestamps order lexically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ParseDialect maps a configured driver name onto a dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, fmt.Errorf("unsupported storage driver %q", driver)
}

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// DriverName is the database/sql driver registered for the dialect
func (d Dialect) DriverName() string { return d.String() }

// Placeholder returns the numbered bind parameter for the n-th argument,
// 1-based. Numbered parameters let fragments be assembled in any order.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return fmt.Sprintf("?%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

// TimeArg converts a timestamp into the bind value compared against
// timestamp columns
func (d Dialect) TimeArg(t time.Time) interface{} {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// NumberParam types a numeric bind parameter as a float on PostgreSQL, so a
// fractional operand compares against integer columns.
func (d Dialect) NumberParam(param string) string {
	if d == Postgres {
		return "CAST(" + param + " AS DOUBLE PRECISION)"
	}
	return param
}

// Ordered wraps a text expression so comparisons and ORDER BY use byte order
func (d Dialect) Ordered(expr string) string {
	if d == Postgres {
		return expr + ` COLLATE "C"`
	}
	return expr
}

// Number casts a serialized custom field value to a number
func (d Dialect) Number(expr string) string {
	if d == SQLite {
		return "CAST(" + expr + " AS REAL)"
	}
	return "CAST(" + expr + " AS DOUBLE PRECISION)"
}

// Timestamp converts a serialized custom field value, or a bind parameter,
// into a comparable instant
func (d Dialect) Timestamp(expr string) string {
	if d == SQLite {
		return "julianday(" + expr + ")"
	}
	return "CAST(" + expr + " AS TIMESTAMPTZ)"
}

// JSONArrayContains tests membership of a bind parameter in a JSON array
func (d Dialect) JSONArrayContains(expr, param string) string {
	if d == SQLite {
		return "EXISTS (SELECT 1 FROM json_each(" + expr + ") je WHERE je.value = " + param + ")"
	}
	return "EXISTS (SELECT 1 FROM jsonb_array_elements_text(CAST(" + expr + " AS JSONB)) je WHERE je = " + param + ")"
}

// JSONArraySetEquals tests that a JSON array holds exactly the distinct
// options bound by params
func (d Dialect) JSONArraySetEquals(expr string, params []string) string {
	if len(params) == 0 {
		if d == SQLite {
			return "json_array_length(" + expr + ") = 0"
		}
		return "jsonb_array_length(CAST(" + expr + " AS JSONB)) = 0"
	}
	elements := "json_each(" + expr + ") je WHERE je.value"
	if d == Postgres {
		elements = "jsonb_array_elements_text(CAST(" + expr + " AS JSONB)) je WHERE je"
	}
	parts := []string{"NOT EXISTS (SELECT 1 FROM " + elements + " NOT IN (" + strings.Join(params, ", ") + "))"}
	for _, p := range params {
		parts = append(parts, d.JSONArrayContains(expr, p))
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// JSONEquals compares a serialized JSON value with a bound JSON text
func (d Dialect) JSONEquals(expr, param string) string {
	if d == SQLite {
		return "json(" + expr + ") = json(" + param + ")"
	}
	return "CAST(" + expr + " AS JSONB) = CAST(" + param + " AS JSONB)"
}

// Like renders a case-insensitive pattern match. The pattern argument must
// already be lowercased and escaped with EscapeLike.
func (d Dialect) Like(expr, param string) string {
	return "LOWER(" + expr + ") LIKE " + param + ` ESCAPE '\'`
}

// EscapeLike escapes LIKE wildcards in a literal
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// parseTime reads a timestamp column or serialized value scanned as text
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
