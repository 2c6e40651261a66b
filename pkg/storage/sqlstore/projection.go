package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/folio/pkg/search"
)

const (
	customFieldsKey  = "customFields"
	taxonomiesKey    = "taxonomies"
	relationshipsKey = "relationships"
)

// Term is an attached taxonomy term in a result payload
type Term struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// projector loads the virtual properties of a page of posts, one query per
// address space keyed by the page's ids
type projector struct {
	db Querier
	d  Dialect
}

func (p *projector) load(ctx context.Context, orgID string, proj *search.Projection, records []search.Record) error {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	var (
		fields map[string]map[string]interface{}
		terms  map[string]map[string][]Term
		links  map[string]map[string][]map[string]interface{}
	)
	g, gctx := errgroup.WithContext(ctx)
	if proj.WantsCustomFields() {
		g.Go(func() (err error) {
			fields, err = p.customFields(gctx, orgID, ids, proj)
			return err
		})
	}
	if proj.WantsTaxonomies() {
		g.Go(func() (err error) {
			terms, err = p.taxonomies(gctx, orgID, ids, proj)
			return err
		})
	}
	if proj.WantsRelationships() {
		g.Go(func() (err error) {
			links, err = p.relationships(gctx, orgID, ids, proj)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, rec := range records {
		if proj.WantsCustomFields() {
			values := fields[rec.ID]
			if values == nil {
				values = map[string]interface{}{}
			}
			for _, slug := range proj.CustomFields {
				if _, ok := values[slug]; !ok {
					values[slug] = nil
				}
			}
			rec.Fields[customFieldsKey] = values
		}
		if proj.WantsTaxonomies() {
			attached := terms[rec.ID]
			if attached == nil {
				attached = map[string][]Term{}
			}
			for _, slug := range proj.Taxonomies {
				if _, ok := attached[slug]; !ok {
					attached[slug] = []Term{}
				}
			}
			rec.Fields[taxonomiesKey] = attached
		}
		if proj.WantsRelationships() {
			linked := links[rec.ID]
			if linked == nil {
				linked = map[string][]map[string]interface{}{}
			}
			for _, rel := range proj.Relationships {
				if _, ok := linked[rel.Relationship]; !ok {
					linked[rel.Relationship] = []map[string]interface{}{}
				}
			}
			rec.Fields[relationshipsKey] = linked
		}
	}
	return nil
}

func (p *projector) in(b *builder, values []string) string {
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.arg(v)
	}
	return "(" + strings.Join(params, ", ") + ")"
}

func (p *projector) customFields(ctx context.Context, orgID string, ids []string, proj *search.Projection) (map[string]map[string]interface{}, error) {
	b := newBuilder(p.d)
	query := "SELECT fv.post_id, cf.slug, cf.field_type, fv.value FROM post_field_values fv" +
		" JOIN custom_fields cf ON cf.id = fv.field_id" +
		" WHERE cf.organization_id = " + b.arg(orgID) + " AND fv.post_id IN " + p.in(b, ids)
	if !proj.AllCustomFields {
		query += " AND cf.slug IN " + p.in(b, proj.CustomFields)
	}
	query += " ORDER BY fv.post_id, cf.slug"

	rows, err := p.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("load custom fields: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]interface{})
	for rows.Next() {
		var (
			postID, slug, fieldType string
			value                   sql.NullString
		)
		if err := rows.Scan(&postID, &slug, &fieldType, &value); err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		if out[postID] == nil {
			out[postID] = make(map[string]interface{})
		}
		if !value.Valid {
			out[postID][slug] = nil
			continue
		}
		out[postID][slug] = decodeFieldValue(search.FieldType(fieldType), value.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom fields: %w", err)
	}
	return out, nil
}

// decodeFieldValue deserializes a stored custom field value per its declared
// type. Values that do not parse are returned as stored.
func decodeFieldValue(ft search.FieldType, raw string) interface{} {
	switch ft {
	case search.FieldNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
	case search.FieldBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return b
		}
	case search.FieldDate, search.FieldDateTime:
		if t, err := parseTime(raw); err == nil {
			return t
		}
	case search.FieldMultiSelect, search.FieldJSON, search.FieldRelation:
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}

func (p *projector) taxonomies(ctx context.Context, orgID string, ids []string, proj *search.Projection) (map[string]map[string][]Term, error) {
	b := newBuilder(p.d)
	query := "SELECT pt.post_id, tx.slug, tm.id, tm.name, tm.slug FROM post_terms pt" +
		" JOIN terms tm ON tm.id = pt.term_id JOIN taxonomies tx ON tx.id = tm.taxonomy_id" +
		" WHERE tx.organization_id = " + b.arg(orgID) + " AND pt.post_id IN " + p.in(b, ids)
	if !proj.AllTaxonomies {
		query += " AND tx.slug IN " + p.in(b, proj.Taxonomies)
	}
	query += " ORDER BY pt.post_id, tx.slug, " + p.d.Ordered("tm.slug")

	rows, err := p.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy terms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string][]Term)
	for rows.Next() {
		var postID, taxonomy string
		var term Term
		if err := rows.Scan(&postID, &taxonomy, &term.ID, &term.Name, &term.Slug); err != nil {
			return nil, fmt.Errorf("scan taxonomy term: %w", err)
		}
		if out[postID] == nil {
			out[postID] = make(map[string][]Term)
		}
		out[postID][taxonomy] = append(out[postID][taxonomy], term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxonomy terms: %w", err)
	}
	return out, nil
}

// relationshipFields returns the target columns to read for a relationship type
func relationshipFields(proj *search.Projection, relationship string) ([]search.Column, bool) {
	for _, rel := range proj.Relationships {
		if rel.Relationship == relationship {
			return rel.Fields, true
		}
	}
	if !proj.AllRelationships {
		return nil, false
	}
	return defaultRelationshipColumns(), true
}

func defaultRelationshipColumns() []search.Column {
	catalog, _ := search.CatalogFor(search.EntityPosts)
	cols := make([]search.Column, 0, len(search.DefaultRelationshipFields))
	for _, name := range search.DefaultRelationshipFields {
		if col, ok := catalog.Column(name); ok {
			cols = append(cols, col)
		}
	}
	return cols
}

func (p *projector) relationships(ctx context.Context, orgID string, ids []string, proj *search.Projection) (map[string]map[string][]map[string]interface{}, error) {
	// read the union of requested target columns, then keep per type only
	// the ones asked for
	sel := &selection{index: map[string]int{}}
	for _, col := range defaultRelationshipColumns() {
		sel.add(col)
	}
	for _, rel := range proj.Relationships {
		for _, col := range rel.Fields {
			sel.add(col)
		}
	}
	exprs := make([]string, len(sel.columns))
	for i, col := range sel.columns {
		expr, ok := relatedColumns[col.Name]
		if !ok {
			return nil, fmt.Errorf("related posts have no column for property %q", col.Name)
		}
		exprs[i] = expr
	}

	b := newBuilder(p.d)
	query := "SELECT pr.source_post_id, pr.relationship_type, " + strings.Join(exprs, ", ") +
		" FROM post_relationships pr JOIN posts rp ON rp.id = pr.target_post_id" +
		" WHERE rp.organization_id = " + b.arg(orgID) + " AND pr.source_post_id IN " + p.in(b, ids)
	if !proj.AllRelationships {
		types := make([]string, len(proj.Relationships))
		for i, rel := range proj.Relationships {
			types[i] = rel.Relationship
		}
		query += " AND pr.relationship_type IN " + p.in(b, types)
	}
	query += " ORDER BY pr.source_post_id, pr.relationship_type, pr.sort_order, " + p.d.Ordered("rp.id")

	rows, err := p.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string][]map[string]interface{})
	for rows.Next() {
		var sourceID, relationship string
		raw := make([]interface{}, len(sel.columns))
		dest := []interface{}{&sourceID, &relationship}
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}

		wanted, ok := relationshipFields(proj, relationship)
		if !ok {
			continue
		}
		target := make(map[string]interface{}, len(wanted))
		for _, col := range wanted {
			v, err := decodeColumn(col, raw[sel.index[col.Name]])
			if err != nil {
				return nil, fmt.Errorf("decode related %s: %w", col.Name, err)
			}
			target[col.Name] = v.Interface()
		}
		if out[sourceID] == nil {
			out[sourceID] = make(map[string][]map[string]interface{})
		}
		out[sourceID][relationship] = append(out[sourceID][relationship], target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return out, nil
}
