package search

import (
	"encoding/json"
	"strings"
)

// EntityType names a searchable collection
type EntityType string

const (
	EntityPosts      EntityType = "posts"
	EntityMedia      EntityType = "media"
	EntityUsers      EntityType = "users"
	EntityTaxonomies EntityType = "taxonomies"
	// EntityAll fans out to every entity type the caller may search
	EntityAll EntityType = "all"
)

// ConcreteEntityTypes lists the entity types backed by an executor, in fan-out order
var ConcreteEntityTypes = []EntityType{EntityPosts, EntityMedia, EntityUsers, EntityTaxonomies}

// ParseEntityType validates an entity type name
func ParseEntityType(s string) (EntityType, bool) {
	switch et := EntityType(s); et {
	case EntityPosts, EntityMedia, EntityUsers, EntityTaxonomies, EntityAll:
		return et, true
	}
	return "", false
}

// GroupOperator combines the filters inside one group
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// SortDirection orders a sort key
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Operator is a filter comparison
type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpBetween     Operator = "between"
	OpIsNull      Operator = "is_null"
	OpIsNotNull   Operator = "is_not_null"
	OpDateEq      Operator = "date_eq"
	OpDateGt      Operator = "date_gt"
	OpDateGte     Operator = "date_gte"
	OpDateLt      Operator = "date_lt"
	OpDateLte     Operator = "date_lte"
	OpDateBetween Operator = "date_between"
)

// OperatorFamily groups operators by applicability and value shape
type OperatorFamily int

const (
	FamilyUnknown OperatorFamily = iota
	FamilyEquality
	FamilyOrdering
	FamilySet
	FamilyString
	FamilyRange
	FamilyNull
	FamilyDate
)

// Family returns the operator family, FamilyUnknown for unsupported operators
func (o Operator) Family() OperatorFamily {
	switch o {
	case OpEq, OpNe:
		return FamilyEquality
	case OpGt, OpGte, OpLt, OpLte:
		return FamilyOrdering
	case OpIn, OpNotIn:
		return FamilySet
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		return FamilyString
	case OpBetween:
		return FamilyRange
	case OpIsNull, OpIsNotNull:
		return FamilyNull
	case OpDateEq, OpDateGt, OpDateGte, OpDateLt, OpDateLte, OpDateBetween:
		return FamilyDate
	}
	return FamilyUnknown
}

// Negated reports whether the operator is the complement of a positive operator
func (o Operator) Negated() bool {
	return o == OpNe || o == OpNotIn || o == OpNotContains
}

// Positive returns the positive form of a negated operator
func (o Operator) Positive() Operator {
	switch o {
	case OpNe:
		return OpEq
	case OpNotIn:
		return OpIn
	case OpNotContains:
		return OpContains
	}
	return o
}

// Comparator maps date variants onto their plain comparison
func (o Operator) Comparator() Operator {
	switch o {
	case OpDateEq:
		return OpEq
	case OpDateGt:
		return OpGt
	case OpDateGte:
		return OpGte
	case OpDateLt:
		return OpLt
	case OpDateLte:
		return OpLte
	case OpDateBetween:
		return OpBetween
	}
	return o
}

// RawRequest is the wire shape of a search request
type RawRequest struct {
	EntityType   string           `json:"entityType"`
	FilterGroups []RawFilterGroup `json:"filterGroups,omitempty"`
	Sorts        []RawSort        `json:"sorts,omitempty"`
	Properties   []string         `json:"properties,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	After        string           `json:"after,omitempty"`
	Search       string           `json:"search,omitempty"`
}

// RawFilterGroup is the wire shape of a filter group
type RawFilterGroup struct {
	Filters  []RawFilter `json:"filters"`
	Operator string      `json:"operator,omitempty"`
}

// RawFilter is the wire shape of a single filter condition
type RawFilter struct {
	Property string          `json:"property"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// RawSort is the wire shape of one sort entry
type RawSort struct {
	Property  string `json:"property"`
	Direction string `json:"direction,omitempty"`
}

// FilterCondition is a validated filter whose property is not yet resolved
type FilterCondition struct {
	Property string
	Operator Operator
	Value    Value
	// Field locates the condition in the request for error details
	Field string
}

// FilterGroup is a validated group of conditions
type FilterGroup struct {
	Operator GroupOperator
	Filters  []FilterCondition
}

// SortSpec is a validated sort request
type SortSpec struct {
	Property  string
	Direction SortDirection
	Field     string
}

// Request is a search request after shape validation
type Request struct {
	EntityType EntityType
	Groups     []FilterGroup
	Sorts      []SortSpec
	Properties []string
	Limit      int
	After      string
	Search     string
}

// paths returns every property path referenced by filters, sorts and the projection
func (r *Request) paths() []string {
	out := make([]string, 0, len(r.Properties)+len(r.Sorts))
	for _, g := range r.Groups {
		for _, f := range g.Filters {
			out = append(out, f.Property)
		}
	}
	for _, s := range r.Sorts {
		out = append(out, s.Property)
	}
	return append(out, r.Properties...)
}

// needsSchema reports whether resolving the request requires the tenant schema
func (r *Request) needsSchema() bool {
	for _, p := range r.paths() {
		if strings.HasPrefix(p, customFieldsPrefix) || strings.HasPrefix(p, taxonomiesPrefix) {
			return true
		}
	}
	return false
}

// Result is the uniform search response envelope payload
type Result struct {
	Results []map[string]interface{} `json:"results"`
	Cursor  *string                  `json:"cursor"`
	Meta    *ResultMeta              `json:"meta,omitempty"`
}

// ResultMeta carries per-entity-type notes for fan-out searches
type ResultMeta struct {
	Excluded []Exclusion `json:"excluded,omitempty"`
}

// Exclusion records why an entity type was left out of an "all" search
type Exclusion struct {
	EntityType EntityType `json:"entityType"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	Details    []Detail   `json:"details,omitempty"`
}
