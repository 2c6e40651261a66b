package search

// ValueType is the comparison type of a resolved property
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeBoolean
	TypeTime
	// TypeStructured covers JSON-serialized values: multiselect, json, relation
	TypeStructured
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeTime:
		return "timestamp"
	case TypeStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Column describes a standard property of an entity type
type Column struct {
	Name     string
	Type     ValueType
	Nullable bool
	Sortable bool
}

// IDProperty is the implicit tiebreaker present on every entity type
const IDProperty = "id"

// Catalog is the closed set of standard properties of one entity type
type Catalog struct {
	Entity      EntityType
	Columns     []Column
	DefaultSort []SortSpec
	byName      map[string]Column
}

func newCatalog(entity EntityType, defaultSort []SortSpec, cols ...Column) *Catalog {
	c := &Catalog{Entity: entity, Columns: cols, DefaultSort: defaultSort, byName: make(map[string]Column, len(cols))}
	for _, col := range cols {
		c.byName[col.Name] = col
	}
	return c
}

// Column looks up a standard property by name
func (c *Catalog) Column(name string) (Column, bool) {
	col, ok := c.byName[name]
	return col, ok
}

var (
	colID        = Column{Name: IDProperty, Type: TypeString, Sortable: true}
	colCreatedAt = Column{Name: "createdAt", Type: TypeTime, Sortable: true}
	colUpdatedAt = Column{Name: "updatedAt", Type: TypeTime, Sortable: true}

	newestFirst = []SortSpec{{Property: "createdAt", Direction: Desc}}
)

var catalogs = map[EntityType]*Catalog{
	EntityPosts: newCatalog(EntityPosts, newestFirst,
		colID,
		Column{Name: "title", Type: TypeString, Sortable: true},
		Column{Name: "slug", Type: TypeString, Sortable: true},
		Column{Name: "content", Type: TypeString, Nullable: true},
		Column{Name: "excerpt", Type: TypeString, Nullable: true},
		Column{Name: "status", Type: TypeString, Sortable: true},
		Column{Name: "postType", Type: TypeString, Sortable: true},
		Column{Name: "authorId", Type: TypeString, Nullable: true},
		Column{Name: "publishedAt", Type: TypeTime, Nullable: true, Sortable: true},
		colCreatedAt,
		colUpdatedAt,
	),
	EntityMedia: newCatalog(EntityMedia, newestFirst,
		colID,
		Column{Name: "filename", Type: TypeString, Sortable: true},
		Column{Name: "originalName", Type: TypeString, Sortable: true},
		Column{Name: "mimeType", Type: TypeString, Sortable: true},
		Column{Name: "size", Type: TypeNumber, Sortable: true},
		Column{Name: "altText", Type: TypeString, Nullable: true},
		Column{Name: "caption", Type: TypeString, Nullable: true},
		Column{Name: "url", Type: TypeString},
		colCreatedAt,
		colUpdatedAt,
	),
	EntityUsers: newCatalog(EntityUsers, newestFirst,
		colID,
		Column{Name: "name", Type: TypeString, Sortable: true},
		Column{Name: "email", Type: TypeString, Sortable: true},
		Column{Name: "role", Type: TypeString, Sortable: true},
		colCreatedAt,
		colUpdatedAt,
	),
	EntityTaxonomies: newCatalog(EntityTaxonomies, []SortSpec{{Property: "name", Direction: Asc}},
		colID,
		Column{Name: "name", Type: TypeString, Sortable: true},
		Column{Name: "slug", Type: TypeString, Sortable: true},
		Column{Name: "description", Type: TypeString, Nullable: true},
		colCreatedAt,
		colUpdatedAt,
	),
	// properties shared by every entity type, used for fan-out sorting
	EntityAll: newCatalog(EntityAll, newestFirst, colID, colCreatedAt, colUpdatedAt),
}

// CatalogFor returns the standard property catalog of an entity type
func CatalogFor(entity EntityType) (*Catalog, bool) {
	c, ok := catalogs[entity]
	return c, ok
}

// FieldType is the declared type of a custom field
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldRichText    FieldType = "richtext"
	FieldURL         FieldType = "url"
	FieldEmail       FieldType = "email"
	FieldSelect      FieldType = "select"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldMultiSelect FieldType = "multiselect"
	FieldJSON        FieldType = "json"
	FieldRelation    FieldType = "relation"
)

// ValueType maps a declared field type onto its comparison type
func (f FieldType) ValueType() ValueType {
	switch f {
	case FieldNumber:
		return TypeNumber
	case FieldBoolean:
		return TypeBoolean
	case FieldDate, FieldDateTime:
		return TypeTime
	case FieldMultiSelect, FieldJSON, FieldRelation:
		return TypeStructured
	default:
		return TypeString
	}
}

// Schema is an immutable snapshot of one organization's custom field
// declarations and taxonomy slugs. Shared snapshots must not be mutated.
type Schema struct {
	Fields     map[string]FieldType `json:"fields"`
	Taxonomies map[string]bool      `json:"taxonomies"`
}

// FieldType returns the declared type of a custom field slug
func (s *Schema) FieldType(slug string) (FieldType, bool) {
	if s == nil {
		return "", false
	}
	ft, ok := s.Fields[slug]
	return ft, ok
}

// HasTaxonomy reports whether the taxonomy slug exists
func (s *Schema) HasTaxonomy(slug string) bool {
	return s != nil && s.Taxonomies[slug]
}
