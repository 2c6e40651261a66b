package sqlstore

import (
	"context"
	"fmt"

	"github.com/platinummonkey/folio/pkg/search"
)

// SchemaLoader reads an organization's custom field declarations and
// taxonomy slugs
type SchemaLoader struct {
	db      Querier
	dialect Dialect
}

// NewSchemaLoader creates a SQL-backed schema loader
func NewSchemaLoader(db Querier, dialect Dialect) *SchemaLoader {
	return &SchemaLoader{db: db, dialect: dialect}
}

// LoadSchema implements search.SchemaLoader
func (l *SchemaLoader) LoadSchema(ctx context.Context, organizationID string) (*search.Schema, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.LoadSchema")
	defer span.End()

	schema := &search.Schema{
		Fields:     make(map[string]search.FieldType),
		Taxonomies: make(map[string]bool),
	}
	param := l.dialect.Placeholder(1)

	rows, err := l.db.QueryContext(ctx, "SELECT slug, field_type FROM custom_fields WHERE organization_id = "+param, organizationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query custom fields: %w", err)
	}
	for rows.Next() {
		var slug, fieldType string
		if err := rows.Scan(&slug, &fieldType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		schema.Fields[slug] = search.FieldType(fieldType)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate custom fields: %w", err)
	}

	rows, err = l.db.QueryContext(ctx, "SELECT slug FROM taxonomies WHERE organization_id = "+param, organizationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query taxonomies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan taxonomy: %w", err)
		}
		schema.Taxonomies[slug] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate taxonomies: %w", err)
	}
	return schema, nil
}
