package search

import (
	"strconv"
	"strings"
)

const (
	customFieldsRoot    = "customFields"
	taxonomiesRoot      = "taxonomies"
	relationshipsRoot   = "relationships"
	customFieldsPrefix  = customFieldsRoot + "."
	taxonomiesPrefix    = taxonomiesRoot + "."
	relationshipsPrefix = relationshipsRoot + "."
)

// AddressSpace identifies which backing source a property path addresses
type AddressSpace int

const (
	SpaceStandard AddressSpace = iota
	SpaceCustomField
	SpaceRelationship
	SpaceTaxonomy
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceStandard:
		return "standard"
	case SpaceCustomField:
		return "customField"
	case SpaceRelationship:
		return "relationship"
	case SpaceTaxonomy:
		return "taxonomy"
	default:
		return "unknown"
	}
}

// Property is a resolved property path. The set of implementations is closed.
type Property interface {
	Path() string
	Space() AddressSpace
	ValueType() ValueType
	isProperty()
}

// StandardProperty addresses a column of the entity itself
type StandardProperty struct {
	path   string
	Column Column
}

func (p StandardProperty) Path() string         { return p.path }
func (p StandardProperty) Space() AddressSpace  { return SpaceStandard }
func (p StandardProperty) ValueType() ValueType { return p.Column.Type }
func (StandardProperty) isProperty()            {}

// CustomFieldProperty addresses a tenant-defined field value of a post
type CustomFieldProperty struct {
	path      string
	Slug      string
	FieldType FieldType
}

func (p CustomFieldProperty) Path() string         { return p.path }
func (p CustomFieldProperty) Space() AddressSpace  { return SpaceCustomField }
func (p CustomFieldProperty) ValueType() ValueType { return p.FieldType.ValueType() }
func (CustomFieldProperty) isProperty()            {}

// RelationshipProperty addresses a standard column of posts linked through
// a named relationship
type RelationshipProperty struct {
	path         string
	Relationship string
	Target       Column
}

func (p RelationshipProperty) Path() string         { return p.path }
func (p RelationshipProperty) Space() AddressSpace  { return SpaceRelationship }
func (p RelationshipProperty) ValueType() ValueType { return p.Target.Type }
func (RelationshipProperty) isProperty()            {}

// TaxonomyProperty addresses the terms attached for one taxonomy. With a
// term slug it is a boolean attachment flag; without one it is the set of
// attached term slugs.
type TaxonomyProperty struct {
	path     string
	Taxonomy string
	Term     string
}

func (p TaxonomyProperty) Path() string        { return p.path }
func (p TaxonomyProperty) Space() AddressSpace { return SpaceTaxonomy }
func (p TaxonomyProperty) ValueType() ValueType {
	if p.Term != "" {
		return TypeBoolean
	}
	return TypeString
}
func (TaxonomyProperty) isProperty() {}

// HasTerm reports whether the path names a specific term
func (p TaxonomyProperty) HasTerm() bool { return p.Term != "" }

// Resolver maps property paths of one entity type onto resolved properties.
// Results are memoized; a Resolver is meant to live for one request.
type Resolver struct {
	entity  EntityType
	catalog *Catalog
	schema  *Schema
	memo    map[string]resolution
}

type resolution struct {
	prop Property
	err  error
}

// NewResolver creates a resolver for the entity type. schema may be nil when
// no custom field or taxonomy path is referenced.
func NewResolver(entity EntityType, schema *Schema) *Resolver {
	catalog, _ := CatalogFor(entity)
	return &Resolver{entity: entity, catalog: catalog, schema: schema, memo: make(map[string]resolution)}
}

// Resolve maps a dotted property path onto exactly one address space
func (r *Resolver) Resolve(path string) (Property, error) {
	if res, ok := r.memo[path]; ok {
		return res.prop, res.err
	}
	prop, err := r.resolve(path)
	r.memo[path] = resolution{prop: prop, err: err}
	return prop, err
}

func (r *Resolver) resolve(path string) (Property, error) {
	if r.catalog == nil {
		return nil, invalidProperty(path, "unknown entity type %q", r.entity)
	}
	if path == "" {
		return nil, invalidProperty(path, "property is required")
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, invalidProperty(path, "malformed path")
		}
	}

	switch segments[0] {
	case customFieldsRoot:
		return r.resolveCustomField(path, segments)
	case relationshipsRoot:
		return r.resolveRelationship(path, segments)
	case taxonomiesRoot:
		return r.resolveTaxonomy(path, segments)
	}

	if len(segments) != 1 {
		return nil, invalidProperty(path, "unknown address space %q", segments[0])
	}
	col, ok := r.catalog.Column(path)
	if !ok {
		return nil, invalidProperty(path, "not a property of %s", r.entity)
	}
	return StandardProperty{path: path, Column: col}, nil
}

func (r *Resolver) resolveCustomField(path string, segments []string) (Property, error) {
	if r.entity != EntityPosts {
		return nil, invalidProperty(path, "custom fields are not supported on %s", r.entity)
	}
	if len(segments) != 2 {
		return nil, invalidProperty(path, "expected customFields.<slug>")
	}
	ft, ok := r.schema.FieldType(segments[1])
	if !ok {
		return nil, invalidProperty(path, "unknown custom field %q", segments[1])
	}
	return CustomFieldProperty{path: path, Slug: segments[1], FieldType: ft}, nil
}

func (r *Resolver) resolveRelationship(path string, segments []string) (Property, error) {
	if r.entity != EntityPosts {
		return nil, invalidProperty(path, "relationships are not supported on %s", r.entity)
	}
	if len(segments) != 3 {
		return nil, invalidProperty(path, "expected relationships.<type>.<field>")
	}
	target, ok := catalogs[EntityPosts].Column(segments[2])
	if !ok {
		return nil, invalidProperty(path, "%q is not a property of related posts", segments[2])
	}
	return RelationshipProperty{path: path, Relationship: segments[1], Target: target}, nil
}

func (r *Resolver) resolveTaxonomy(path string, segments []string) (Property, error) {
	if r.entity != EntityPosts {
		return nil, invalidProperty(path, "taxonomies are not supported on %s", r.entity)
	}
	if len(segments) != 2 && len(segments) != 3 {
		return nil, invalidProperty(path, "expected taxonomies.<taxonomy> or taxonomies.<taxonomy>.<term>")
	}
	if !r.schema.HasTaxonomy(segments[1]) {
		return nil, invalidProperty(path, "unknown taxonomy %q", segments[1])
	}
	prop := TaxonomyProperty{path: path, Taxonomy: segments[1]}
	if len(segments) == 3 {
		prop.Term = segments[2]
	}
	return prop, nil
}

// ResolveSort resolves a sort property. Only sortable standard properties qualify.
func (r *Resolver) ResolveSort(path string) (Column, error) {
	prop, err := r.Resolve(path)
	if err != nil {
		return Column{}, err
	}
	std, ok := prop.(StandardProperty)
	if !ok {
		return Column{}, invalidProperty(path, "only standard properties can be sorted")
	}
	if !std.Column.Sortable {
		return Column{}, invalidProperty(path, "property is not sortable")
	}
	return std.Column, nil
}

// Projection is the resolved set of properties to load for each result
type Projection struct {
	Columns          []Column
	CustomFields     []string
	AllCustomFields  bool
	Taxonomies       []string
	AllTaxonomies    bool
	Relationships    []RelationshipProjection
	AllRelationships bool
}

// RelationshipProjection selects target sub-fields for one relationship type
type RelationshipProjection struct {
	Relationship string
	Fields       []Column
}

// DefaultRelationshipFields are loaded when a relationship is projected without sub-fields
var DefaultRelationshipFields = []string{IDProperty, "title", "slug"}

// WantsCustomFields reports whether any custom field must be loaded
func (p *Projection) WantsCustomFields() bool { return p.AllCustomFields || len(p.CustomFields) > 0 }

// WantsTaxonomies reports whether any taxonomy terms must be loaded
func (p *Projection) WantsTaxonomies() bool { return p.AllTaxonomies || len(p.Taxonomies) > 0 }

// WantsRelationships reports whether any relationship targets must be loaded
func (p *Projection) WantsRelationships() bool {
	return p.AllRelationships || len(p.Relationships) > 0
}

// ResolveProjection resolves the requested properties. An empty list yields
// the default full projection of the entity type. The id is always included.
func (r *Resolver) ResolveProjection(paths []string, fieldPrefix string) (*Projection, []Detail) {
	proj := &Projection{}
	if r.catalog == nil {
		return proj, []Detail{toDetail(fieldPrefix, invalidProperty("", "unknown entity type %q", r.entity))}
	}
	if len(paths) == 0 {
		proj.Columns = append(proj.Columns, r.catalog.Columns...)
		if r.entity == EntityPosts {
			proj.AllCustomFields = true
			proj.AllTaxonomies = true
			proj.AllRelationships = true
		}
		return proj, nil
	}

	var details []Detail
	seen := map[string]bool{IDProperty: true}
	relIndex := map[string]int{}
	proj.Columns = append(proj.Columns, colID)

	for i, path := range paths {
		field := fieldPrefix + "[" + strconv.Itoa(i) + "]"
		if seen[path] {
			continue
		}
		seen[path] = true

		switch {
		case path == customFieldsRoot || path == taxonomiesRoot || path == relationshipsRoot:
			if r.entity != EntityPosts {
				details = append(details, toDetail(field, invalidProperty(path, "not supported on %s", r.entity)))
				continue
			}
			switch path {
			case customFieldsRoot:
				proj.AllCustomFields = true
			case taxonomiesRoot:
				proj.AllTaxonomies = true
			default:
				proj.AllRelationships = true
			}
		case strings.HasPrefix(path, relationshipsPrefix):
			rel, sub, err := r.resolveRelationshipProjection(path)
			if err != nil {
				details = append(details, toDetail(field, err))
				continue
			}
			idx, ok := relIndex[rel]
			if !ok {
				idx = len(proj.Relationships)
				relIndex[rel] = idx
				proj.Relationships = append(proj.Relationships, RelationshipProjection{Relationship: rel})
			}
			proj.Relationships[idx].Fields = appendColumns(proj.Relationships[idx].Fields, sub...)
		default:
			prop, err := r.Resolve(path)
			if err != nil {
				details = append(details, toDetail(field, err))
				continue
			}
			switch p := prop.(type) {
			case StandardProperty:
				proj.Columns = appendColumns(proj.Columns, p.Column)
			case CustomFieldProperty:
				proj.CustomFields = append(proj.CustomFields, p.Slug)
			case TaxonomyProperty:
				if p.HasTerm() {
					details = append(details, toDetail(field, invalidProperty(path, "project the taxonomy, not a single term")))
					continue
				}
				proj.Taxonomies = append(proj.Taxonomies, p.Taxonomy)
			}
		}
	}
	return proj, details
}

func (r *Resolver) resolveRelationshipProjection(path string) (string, []Column, error) {
	if r.entity != EntityPosts {
		return "", nil, invalidProperty(path, "relationships are not supported on %s", r.entity)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return "", nil, invalidProperty(path, "malformed path")
		}
	}
	posts := catalogs[EntityPosts]
	switch len(segments) {
	case 2:
		cols := make([]Column, 0, len(DefaultRelationshipFields))
		for _, name := range DefaultRelationshipFields {
			col, _ := posts.Column(name)
			cols = append(cols, col)
		}
		return segments[1], cols, nil
	case 3:
		col, ok := posts.Column(segments[2])
		if !ok {
			return "", nil, invalidProperty(path, "%q is not a property of related posts", segments[2])
		}
		id, _ := posts.Column(IDProperty)
		return segments[1], []Column{id, col}, nil
	default:
		return "", nil, invalidProperty(path, "expected relationships.<type> or relationships.<type>.<field>")
	}
}

func appendColumns(dst []Column, cols ...Column) []Column {
	for _, c := range cols {
		dup := false
		for _, existing := range dst {
			if existing.Name == c.Name {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, c)
		}
	}
	return dst
}
