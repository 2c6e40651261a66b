package sqlstore

import (
	"fmt"

	"github.com/platinummonkey/folio/pkg/search"
)

// table maps an entity type onto its backing relation. Property names are
// translated through columns only; caller input never reaches the SQL text.
type table struct {
	entity    search.EntityType
	from      string
	alias     string
	orgColumn string
	columns   map[string]string
	// searchColumns are matched by the free-text search
	searchColumns []string
}

func (t *table) column(name string) (string, error) {
	expr, ok := t.columns[name]
	if !ok {
		return "", fmt.Errorf("%s has no column for property %q", t.entity, name)
	}
	return expr, nil
}

var tables = map[search.EntityType]*table{
	search.EntityPosts: {
		entity:    search.EntityPosts,
		from:      "posts p",
		alias:     "p",
		orgColumn: "p.organization_id",
		columns: map[string]string{
			"id":          "p.id",
			"title":       "p.title",
			"slug":        "p.slug",
			"content":     "p.content",
			"excerpt":     "p.excerpt",
			"status":      "p.status",
			"postType":    "p.post_type",
			"authorId":    "p.author_id",
			"publishedAt": "p.published_at",
			"createdAt":   "p.created_at",
			"updatedAt":   "p.updated_at",
		},
		searchColumns: []string{"p.title", "p.content", "p.excerpt"},
	},
	search.EntityMedia: {
		entity:    search.EntityMedia,
		from:      "media m",
		alias:     "m",
		orgColumn: "m.organization_id",
		columns: map[string]string{
			"id":           "m.id",
			"filename":     "m.filename",
			"originalName": "m.original_name",
			"mimeType":     "m.mime_type",
			"size":         "m.size",
			"altText":      "m.alt_text",
			"caption":      "m.caption",
			"url":          "m.url",
			"createdAt":    "m.created_at",
			"updatedAt":    "m.updated_at",
		},
		searchColumns: []string{"m.filename", "m.original_name", "m.alt_text", "m.caption"},
	},
	// users are global; membership and role are per organization
	search.EntityUsers: {
		entity:    search.EntityUsers,
		from:      "users u JOIN organization_members om ON om.user_id = u.id",
		alias:     "u",
		orgColumn: "om.organization_id",
		columns: map[string]string{
			"id":        "u.id",
			"name":      "u.name",
			"email":     "u.email",
			"role":      "om.role",
			"createdAt": "u.created_at",
			"updatedAt": "u.updated_at",
		},
		searchColumns: []string{"u.name", "u.email"},
	},
	search.EntityTaxonomies: {
		entity:    search.EntityTaxonomies,
		from:      "taxonomies t",
		alias:     "t",
		orgColumn: "t.organization_id",
		columns: map[string]string{
			"id":          "t.id",
			"name":        "t.name",
			"slug":        "t.slug",
			"description": "t.description",
			"createdAt":   "t.created_at",
			"updatedAt":   "t.updated_at",
		},
		searchColumns: []string{"t.name", "t.slug", "t.description"},
	},
}

// relatedColumns maps posts properties onto the alias used for relationship targets
var relatedColumns = map[string]string{
	"id":          "rp.id",
	"title":       "rp.title",
	"slug":        "rp.slug",
	"content":     "rp.content",
	"excerpt":     "rp.excerpt",
	"status":      "rp.status",
	"postType":    "rp.post_type",
	"authorId":    "rp.author_id",
	"publishedAt": "rp.published_at",
	"createdAt":   "rp.created_at",
	"updatedAt":   "rp.updated_at",
}
