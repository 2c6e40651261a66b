package search

import (
	"fmt"
	"sort"
	"strings"
)

// ScopeWildcard grants every scope
const ScopeWildcard = "*"

// SearchScope returns the scope required to search an entity type
func SearchScope(entity EntityType) string {
	return string(entity) + ":search"
}

// ScopeSet is the set of scopes granted to a caller
type ScopeSet map[string]struct{}

// NewScopeSet builds a set from scope strings
func NewScopeSet(scopes ...string) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, scope := range scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			s[scope] = struct{}{}
		}
	}
	return s
}

// Has reports whether the scope, or the wildcard, is granted
func (s ScopeSet) Has(scope string) bool {
	if _, ok := s[ScopeWildcard]; ok {
		return true
	}
	_, ok := s[scope]
	return ok
}

// Caller identifies who is searching and within which organization
type Caller struct {
	OrganizationID string
	Scopes         ScopeSet
}

// PropertyPolicy maps an entity type to property path prefixes and the scope
// each prefix requires. A prefix matches the path itself and every path
// below it, so "customFields" guards every custom field.
type PropertyPolicy map[EntityType]map[string]string

// required returns the scopes a path needs, most specific first
func (p PropertyPolicy) required(entity EntityType, path string) []string {
	rules := p[entity]
	if len(rules) == 0 {
		return nil
	}
	var prefixes []string
	for prefix := range rules {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	out := make([]string, len(prefixes))
	for i, prefix := range prefixes {
		out[i] = rules[prefix]
	}
	return out
}

// Guard authorizes entity types and properties against a caller's scopes
type Guard struct {
	policy PropertyPolicy
}

// NewGuard creates a guard. A nil policy places no property restrictions.
func NewGuard(policy PropertyPolicy) *Guard {
	return &Guard{policy: policy}
}

// AuthorizeEntities returns the entity types the caller may search for the
// request. For "all" the unauthorized types are dropped; Forbidden is
// returned only when nothing remains.
func (g *Guard) AuthorizeEntities(caller Caller, entity EntityType) ([]EntityType, error) {
	if entity != EntityAll {
		if !caller.Scopes.Has(SearchScope(entity)) {
			return nil, forbidden(fmt.Sprintf("scope %q is required to search %s", SearchScope(entity), entity), Detail{
				Field: "entityType", Code: CodeForbidden, Message: fmt.Sprintf("missing scope %q", SearchScope(entity)),
			})
		}
		return []EntityType{entity}, nil
	}

	var allowed []EntityType
	for _, et := range ConcreteEntityTypes {
		if caller.Scopes.Has(SearchScope(et)) {
			allowed = append(allowed, et)
		}
	}
	if len(allowed) == 0 {
		return nil, forbidden("no entity type may be searched with the granted scopes", Detail{
			Field: "entityType", Code: CodeForbidden, Message: "no search scope granted",
		})
	}
	return allowed, nil
}

// AuthorizeProperties checks every referenced path of the request against
// the property policy for each entity type searched
func (g *Guard) AuthorizeProperties(caller Caller, entities []EntityType, req *Request) error {
	if len(g.policy) == 0 {
		return nil
	}
	var details []Detail
	check := func(field, path string) {
		for _, et := range entities {
			for _, scope := range g.policy.required(et, path) {
				if !caller.Scopes.Has(scope) {
					details = append(details, Detail{
						Field:   field,
						Code:    CodeForbidden,
						Message: fmt.Sprintf("property %q requires scope %q", path, scope),
					})
					return
				}
			}
		}
	}
	for gi, group := range req.Groups {
		for fi, f := range group.Filters {
			field := f.Field
			if field == "" {
				field = fmt.Sprintf("filterGroups[%d].filters[%d]", gi, fi)
			}
			check(field+".property", f.Property)
		}
	}
	for si, s := range req.Sorts {
		check(fmt.Sprintf("sorts[%d].property", si), s.Property)
	}
	for pi, p := range req.Properties {
		check(fmt.Sprintf("properties[%d]", pi), p)
	}
	if len(details) > 0 {
		return forbidden("the granted scopes do not cover every requested property", details...)
	}
	return nil
}

func forbidden(message string, details ...Detail) *Error {
	return newError(CodeForbidden, message, details...)
}

// RestrictDefault removes sections of a default projection the caller may
// not read. Explicitly requested properties are never trimmed; they are
// rejected by AuthorizeProperties instead.
func (g *Guard) RestrictDefault(caller Caller, entity EntityType, proj *Projection) {
	if len(g.policy) == 0 || proj == nil {
		return
	}
	denied := func(path string) bool {
		for _, scope := range g.policy.required(entity, path) {
			if !caller.Scopes.Has(scope) {
				return true
			}
		}
		return false
	}
	cols := proj.Columns[:0:0]
	for _, c := range proj.Columns {
		if c.Name == IDProperty || !denied(c.Name) {
			cols = append(cols, c)
		}
	}
	proj.Columns = cols
	// a rule anywhere below a root withholds the whole section
	deniedBelow := func(root string) bool {
		for prefix, scope := range g.policy[entity] {
			if (prefix == root || strings.HasPrefix(prefix, root+".")) && !caller.Scopes.Has(scope) {
				return true
			}
		}
		return false
	}
	if proj.AllCustomFields && deniedBelow(customFieldsRoot) {
		proj.AllCustomFields = false
	}
	if proj.AllTaxonomies && deniedBelow(taxonomiesRoot) {
		proj.AllTaxonomies = false
	}
	if proj.AllRelationships && deniedBelow(relationshipsRoot) {
		proj.AllRelationships = false
	}
}
