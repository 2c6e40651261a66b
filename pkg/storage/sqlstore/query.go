package sqlstore

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/folio/pkg/search"
)

// selection is the ordered list of columns read for each row
type selection struct {
	columns []search.Column
	index   map[string]int
}

func (s *selection) add(col search.Column) {
	if _, ok := s.index[col.Name]; ok {
		return
	}
	s.index[col.Name] = len(s.columns)
	s.columns = append(s.columns, col)
}

// buildQuery renders the page query: organization predicate, compiled
// filter, free-text search, keyset resume point, sort and limit+1
func buildQuery(d Dialect, t *table, q *search.Query) (string, []interface{}, *selection, error) {
	sel := &selection{index: map[string]int{}}
	for _, k := range q.Sort.Keys {
		sel.add(k.Column)
	}
	for _, col := range projectedColumns(q) {
		sel.add(col)
	}

	exprs := make([]string, len(sel.columns))
	for i, col := range sel.columns {
		expr, err := t.column(col.Name)
		if err != nil {
			return "", nil, nil, err
		}
		exprs[i] = expr
	}

	r := &renderer{builder: newBuilder(d), table: t}
	where := []string{t.orgColumn + " = " + r.arg(q.OrganizationID)}

	if q.Filter != nil {
		cond, err := r.predicate(q.Filter)
		if err != nil {
			return "", nil, nil, err
		}
		where = append(where, cond)
	}
	if text := strings.TrimSpace(q.Search); text != "" {
		where = append(where, r.textSearch(text))
	}
	if q.After != nil {
		cond, err := r.keyset(q.Sort.Keys, q.After.Values)
		if err != nil {
			return "", nil, nil, err
		}
		where = append(where, cond)
	}

	order, err := orderBy(d, t, q.Sort.Keys)
	if err != nil {
		return "", nil, nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(exprs, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(t.from)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)
	sb.WriteString(" LIMIT ")
	sb.WriteString(r.arg(q.Limit + 1))
	return sb.String(), r.args, sel, nil
}

// projectedColumns returns the standard columns to load, the full catalog
// when no projection was resolved
func projectedColumns(q *search.Query) []search.Column {
	if q.Projection != nil {
		return q.Projection.Columns
	}
	catalog, ok := search.CatalogFor(q.EntityType)
	if !ok {
		return nil
	}
	return catalog.Columns
}

func orderBy(d Dialect, t *table, keys []search.SortKey) (string, error) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		expr, err := t.column(k.Column.Name)
		if err != nil {
			return "", err
		}
		if k.Column.Type == search.TypeString {
			expr = d.Ordered(expr)
		}
		part := expr + " ASC"
		if k.Direction == search.Desc {
			part = expr + " DESC"
		}
		if k.Column.Nullable {
			if k.Direction == search.Desc {
				part += " NULLS LAST"
			} else {
				part += " NULLS FIRST"
			}
		}
		parts[i] = part
	}
	return strings.Join(parts, ", "), nil
}

// keyset renders the predicate selecting rows strictly after the cursor
// position: for some key i, all earlier keys are equal and key i comes after.
// NULLs order first ascending and last descending.
func (r *renderer) keyset(keys []search.SortKey, values []search.Value) (string, error) {
	if len(keys) != len(values) {
		return "", fmt.Errorf("cursor has %d values for %d sort keys", len(values), len(keys))
	}
	exprs := make([]string, len(keys))
	for i, k := range keys {
		expr, err := r.table.column(k.Column.Name)
		if err != nil {
			return "", err
		}
		if k.Column.Type == search.TypeString {
			expr = r.d.Ordered(expr)
		}
		exprs[i] = expr
	}

	var disjuncts []string
	for i, k := range keys {
		// nothing follows NULL in a descending key
		if k.Direction == search.Desc && values[i].IsNull() {
			continue
		}
		terms := make([]string, 0, i+1)
		for j := 0; j < i; j++ {
			terms = append(terms, r.equal(exprs[j], values[j]))
		}
		terms = append(terms, r.after(exprs[i], k, values[i]))
		disjuncts = append(disjuncts, "("+strings.Join(terms, " AND ")+")")
	}
	if len(disjuncts) == 0 {
		return "1=0", nil
	}
	return "(" + strings.Join(disjuncts, " OR ") + ")", nil
}

func (r *renderer) equal(expr string, v search.Value) string {
	if v.IsNull() {
		return expr + " IS NULL"
	}
	return expr + " = " + r.value(v, false)
}

// after returns the condition for a key strictly past a non-null v
// descending, or any v ascending
func (r *renderer) after(expr string, k search.SortKey, v search.Value) string {
	if k.Direction == search.Desc {
		cond := expr + " < " + r.value(v, false)
		if k.Column.Nullable {
			cond = "(" + cond + " OR " + expr + " IS NULL)"
		}
		return cond
	}
	if v.IsNull() {
		return expr + " IS NOT NULL"
	}
	return expr + " > " + r.value(v, false)
}
