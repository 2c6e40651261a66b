package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/folio/pkg/search"
)

var tracer = otel.Tracer("github.com/platinummonkey/folio/pkg/storage/sqlstore")

// Querier is the read side of *sql.DB
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Executor runs search queries for one entity type against a SQL database
type Executor struct {
	db      Querier
	dialect Dialect
	table   *table
}

// NewExecutor creates the executor for an entity type
func NewExecutor(db Querier, dialect Dialect, entity search.EntityType) (*Executor, error) {
	t, ok := tables[entity]
	if !ok {
		return nil, fmt.Errorf("no table for entity type %q", entity)
	}
	return &Executor{db: db, dialect: dialect, table: t}, nil
}

// NewExecutors creates one executor per concrete entity type
func NewExecutors(db Querier, dialect Dialect) []search.Executor {
	out := make([]search.Executor, 0, len(search.ConcreteEntityTypes))
	for _, et := range search.ConcreteEntityTypes {
		ex, err := NewExecutor(db, dialect, et)
		if err != nil {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// EntityType implements search.Executor
func (e *Executor) EntityType() search.EntityType { return e.table.entity }

// Execute implements search.Executor
func (e *Executor) Execute(ctx context.Context, q *search.Query) (*search.Page, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.Execute", trace.WithAttributes(
		attribute.String("db.system", e.dialect.String()),
		attribute.String("search.entity_type", string(e.table.entity)),
		attribute.Int("search.limit", q.Limit),
	))
	defer span.End()

	page, err := e.execute(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.records", len(page.Records)), attribute.Bool("search.has_more", page.HasMore))
	return page, nil
}

func (e *Executor) execute(ctx context.Context, q *search.Query) (*search.Page, error) {
	if q.Sort == nil || len(q.Sort.Keys) == 0 {
		return nil, errors.New("query has no sort plan")
	}
	query, args, sel, err := buildQuery(e.dialect, e.table, q)
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", e.table.entity, err)
	}

	records, err := e.scan(ctx, query, args, sel, q)
	if err != nil {
		return nil, err
	}

	page := &search.Page{Records: records}
	if len(records) > q.Limit {
		page.Records = records[:q.Limit]
		page.HasMore = true
	}

	if e.table.entity == search.EntityPosts && q.Projection != nil && len(page.Records) > 0 {
		p := &projector{db: e.db, d: e.dialect}
		if err := p.load(ctx, q.OrganizationID, q.Projection, page.Records); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (e *Executor) scan(ctx context.Context, query string, args []interface{}, sel *selection, q *search.Query) ([]search.Record, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", e.table.entity, err)
	}
	defer rows.Close()

	projected := projectedColumns(q)
	records := make([]search.Record, 0, q.Limit+1)
	for rows.Next() {
		raw := make([]interface{}, len(sel.columns))
		ptrs := make([]interface{}, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", e.table.entity, err)
		}

		values := make([]search.Value, len(raw))
		for i, col := range sel.columns {
			v, err := decodeColumn(col, raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", e.table.entity, col.Name, err)
			}
			values[i] = v
		}

		rec := search.Record{
			ID:         values[sel.index[search.IDProperty]].Str(),
			SortValues: values[:len(q.Sort.Keys)],
			Fields:     make(map[string]interface{}, len(projected)),
		}
		for _, col := range projected {
			rec.Fields[col.Name] = values[sel.index[col.Name]].Interface()
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", e.table.entity, err)
	}
	return records, nil
}

// decodeColumn converts a scanned driver value into a search value of the
// column type
func decodeColumn(col search.Column, raw interface{}) (search.Value, error) {
	if raw == nil {
		return search.Null(), nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch col.Type {
	case search.TypeNumber:
		switch v := raw.(type) {
		case int64:
			return search.Number(float64(v)), nil
		case float64:
			return search.Number(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return search.Value{}, err
			}
			return search.Number(f), nil
		}
	case search.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return search.Bool(v), nil
		case int64:
			return search.Bool(v != 0), nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return search.Value{}, err
			}
			return search.Bool(b), nil
		}
	case search.TypeTime:
		switch v := raw.(type) {
		case time.Time:
			return search.Time(v), nil
		case string:
			t, err := parseTime(v)
			if err != nil {
				return search.Value{}, err
			}
			return search.Time(t), nil
		}
	default:
		switch v := raw.(type) {
		case string:
			return search.String(v), nil
		case int64:
			return search.String(strconv.FormatInt(v, 10)), nil
		}
	}
	return search.Value{}, fmt.Errorf("unexpected %T for %s column", raw, col.Type)
}
