package search

import (
	"context"
	"time"
)

// Query is one compiled, authorized search against a single entity type
type Query struct {
	OrganizationID string
	EntityType     EntityType
	// Filter is nil when the request has no filter groups
	Filter Predicate
	Search string
	Sort   *SortPlan
	// After resumes strictly after this position; nil starts at the beginning
	After      *Cursor
	Limit      int
	Projection *Projection
}

// Record is one result row. SortValues align with the query's sort plan.
type Record struct {
	ID         string
	SortValues []Value
	Fields     map[string]interface{}
}

// Page is at most Limit records in sort order
type Page struct {
	Records []Record
	HasMore bool
}

// Executor runs queries for one entity type against a record store.
// Implementations must apply the organization predicate unconditionally.
type Executor interface {
	EntityType() EntityType
	Execute(ctx context.Context, q *Query) (*Page, error)
}

// SchemaLoader returns the custom field and taxonomy snapshot of an organization
type SchemaLoader interface {
	LoadSchema(ctx context.Context, organizationID string) (*Schema, error)
}

// SearchEvent describes a completed search for analytics
type SearchEvent struct {
	OrganizationID string
	EntityType     EntityType
	Query          string
	ResultCount    int
	Duration       time.Duration
}

// EventSink receives search events. Delivery is best effort.
type EventSink interface {
	RecordSearch(ctx context.Context, event SearchEvent) error
}
