package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/folio/pkg/async"
	"github.com/platinummonkey/folio/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/folio/pkg/search")

const (
	defaultEventTimeout = 5 * time.Second
	entityTypeField     = "entityType"
)

// Engine is the search orchestrator. It is safe for concurrent use; all
// per-request state lives on the stack of Search.
type Engine struct {
	executors    map[EntityType]Executor
	schemas      SchemaLoader
	guard        *Guard
	cursors      *CursorCodec
	limits       Limits
	events       EventSink
	eventTimeout time.Duration
	logger       *observability.Logger
	metrics      *observability.SearchMetrics
}

// Option configures an Engine
type Option func(*Engine)

// WithSchemaLoader sets the tenant schema source used for custom field and taxonomy paths
func WithSchemaLoader(l SchemaLoader) Option {
	return func(e *Engine) { e.schemas = l }
}

// WithLimits sets the structural and page size limits
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// WithCursorSecret signs cursors with an HMAC key
func WithCursorSecret(secret string) Option {
	return func(e *Engine) { e.cursors = NewCursorCodec(secret) }
}

// WithPropertyPolicy restricts properties to additional scopes
func WithPropertyPolicy(p PropertyPolicy) Option {
	return func(e *Engine) { e.guard = NewGuard(p) }
}

// WithEventSink notifies a sink after every successful search
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.events = s }
}

// WithEventTimeout bounds how long an event delivery may take
func WithEventTimeout(d time.Duration) Option {
	return func(e *Engine) { e.eventTimeout = d }
}

// WithLogger sets the engine logger
func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records search metrics
func WithMetrics(m *observability.SearchMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over one executor per entity type
func NewEngine(executors []Executor, opts ...Option) *Engine {
	e := &Engine{
		executors:    make(map[EntityType]Executor, len(executors)),
		guard:        NewGuard(nil),
		cursors:      NewCursorCodec(""),
		limits:       DefaultLimits(),
		eventTimeout: defaultEventTimeout,
	}
	for _, ex := range executors {
		e.executors[ex.EntityType()] = ex
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// plan is the compiled form of a request for one entity type
type plan struct {
	entity EntityType
	query  *Query
}

// Search validates, authorizes, compiles and executes a request
func (e *Engine) Search(ctx context.Context, caller Caller, raw RawRequest) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.entity_type", raw.EntityType),
		attribute.Int("search.limit", raw.Limit),
	))
	defer span.End()

	result, err := e.search(ctx, caller, raw)
	status := "ok"
	if err != nil {
		status = "error"
		if se, ok := AsError(err); ok {
			status = se.Code
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else {
		span.SetAttributes(attribute.Int("search.results", len(result.Results)))
		span.SetStatus(codes.Ok, "")
	}
	if e.metrics != nil {
		e.metrics.ObserveSearch(raw.EntityType, status, time.Since(start), resultCount(result))
	}
	if err == nil {
		e.dispatchEvent(ctx, SearchEvent{
			OrganizationID: caller.OrganizationID,
			EntityType:     EntityType(raw.EntityType),
			Query:          strings.TrimSpace(raw.Search),
			ResultCount:    len(result.Results),
			Duration:       time.Since(start),
		})
	}
	return result, err
}

func (e *Engine) search(ctx context.Context, caller Caller, raw RawRequest) (*Result, error) {
	req, err := ParseRequest(raw, e.limits)
	if err != nil {
		return nil, err
	}
	if caller.OrganizationID == "" {
		return nil, forbidden("an organization is required to search")
	}

	entities, err := e.guard.AuthorizeEntities(caller, req.EntityType)
	if err != nil {
		return nil, err
	}
	entities, err = e.available(req.EntityType, entities)
	if err != nil {
		return nil, err
	}
	if err := e.guard.AuthorizeProperties(caller, entities, req); err != nil {
		return nil, err
	}

	sortPlan, details := BuildSortPlan(NewResolver(req.EntityType, nil), req.Sorts)
	if len(details) > 0 {
		return nil, aggregate("invalid sort", details)
	}

	var after *Cursor
	if req.After != "" {
		if after, err = e.cursors.Decode(req.After, sortPlan); err != nil {
			return nil, err
		}
	}

	schema, err := e.loadSchema(ctx, caller.OrganizationID, req, entities)
	if err != nil {
		return nil, err
	}

	plans, excluded, err := e.compile(caller, req, entities, schema, sortPlan, after)
	if err != nil {
		return nil, err
	}

	pages, err := e.execute(ctx, plans)
	if err != nil {
		return nil, err
	}

	records, hasMore := merge(sortPlan, pages, req.Limit)
	result := &Result{Results: make([]map[string]interface{}, 0, len(records))}
	for _, rec := range records {
		if req.EntityType == EntityAll {
			rec.record.Fields[entityTypeField] = string(rec.entity)
		}
		result.Results = append(result.Results, rec.record.Fields)
	}
	if hasMore && len(records) > 0 {
		token, err := e.cursors.Encode(sortPlan, records[len(records)-1].record.SortValues)
		if err != nil {
			return nil, e.storageFailure(ctx, caller, req.EntityType, err)
		}
		result.Cursor = &token
	}
	if len(excluded) > 0 {
		result.Meta = &ResultMeta{Excluded: excluded}
	}
	return result, nil
}

// available narrows the authorized entity types to those with an executor
func (e *Engine) available(requested EntityType, entities []EntityType) ([]EntityType, error) {
	out := make([]EntityType, 0, len(entities))
	for _, et := range entities {
		if _, ok := e.executors[et]; ok {
			out = append(out, et)
		}
	}
	if len(out) == 0 {
		return nil, newError(CodeValidation, fmt.Sprintf("searching %s is not available", requested), Detail{
			Field: "entityType", Code: CodeValidation, Message: "no executor is configured",
		})
	}
	return out, nil
}

func (e *Engine) loadSchema(ctx context.Context, orgID string, req *Request, entities []EntityType) (*Schema, error) {
	if e.schemas == nil || !req.needsSchema() {
		return nil, nil
	}
	wantsPosts := false
	for _, et := range entities {
		if et == EntityPosts {
			wantsPosts = true
		}
	}
	if !wantsPosts {
		return nil, nil
	}
	schema, err := e.schemas.LoadSchema(ctx, orgID)
	if err != nil {
		e.log(ctx).WithError(err).WithField("organization_id", orgID).Error("failed to load tenant schema")
		return nil, storageError(fmt.Errorf("load schema: %w", err))
	}
	return schema, nil
}

// compile resolves filters and projection for every entity type. A single
// entity type fails the request; in a fan-out the failing types are excluded
// and reported unless none remain.
func (e *Engine) compile(caller Caller, req *Request, entities []EntityType, schema *Schema, sortPlan *SortPlan, after *Cursor) ([]plan, []Exclusion, error) {
	var (
		plans    []plan
		excluded []Exclusion
		failures []Detail
	)
	for _, et := range entities {
		resolver := NewResolver(et, schema)
		filter, details := CompileFilters(resolver, req.Groups)
		proj, projDetails := resolver.ResolveProjection(req.Properties, "properties")
		details = append(details, projDetails...)

		if len(details) > 0 {
			failure := aggregate(fmt.Sprintf("request cannot be applied to %s", et), details)
			if req.EntityType != EntityAll {
				failure.Message = "invalid search request"
				return nil, nil, failure
			}
			excluded = append(excluded, Exclusion{EntityType: et, Code: failure.Code, Message: failure.Message, Details: details})
			if e.metrics != nil {
				e.metrics.IncExcluded(string(et))
			}
			for _, d := range details {
				d.Message = fmt.Sprintf("%s: %s", et, d.Message)
				failures = append(failures, d)
			}
			continue
		}

		if len(req.Properties) == 0 {
			e.guard.RestrictDefault(caller, et, proj)
		}
		plans = append(plans, plan{entity: et, query: &Query{
			OrganizationID: caller.OrganizationID,
			EntityType:     et,
			Filter:         filter,
			Search:         req.Search,
			Sort:           sortPlan,
			After:          after,
			Limit:          req.Limit,
			Projection:     proj,
		}})
	}
	if len(plans) == 0 {
		return nil, nil, aggregate("no entity type supports the request", failures)
	}
	return plans, excluded, nil
}

type entityPage struct {
	entity EntityType
	page   *Page
}

// execute runs every plan concurrently and waits for all of them. The first
// failure cancels the others.
func (e *Engine) execute(ctx context.Context, plans []plan) ([]entityPage, error) {
	pages := make([]entityPage, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plans {
		i, p := i, p
		g.Go(func() error {
			ex := e.executors[p.entity]
			sctx, span := tracer.Start(gctx, "search.execute", trace.WithAttributes(
				attribute.String("search.entity_type", string(p.entity)),
			))
			defer span.End()

			page, err := ex.Execute(sctx, p.query)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "execute failed")
				return fmt.Errorf("%s: %w", p.entity, err)
			}
			span.SetAttributes(attribute.Int("search.records", len(page.Records)))
			pages[i] = entityPage{entity: p.entity, page: page}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var se *Error
		if errors.As(err, &se) && se.Code != CodeStorage {
			return nil, se
		}
		return nil, e.storageFailure(ctx, Caller{OrganizationID: plans[0].query.OrganizationID}, plans[0].entity, err)
	}
	return pages, nil
}

type mergedRecord struct {
	entity EntityType
	record Record
}

// merge orders the pages by the sort plan and cuts them to limit
func merge(sortPlan *SortPlan, pages []entityPage, limit int) ([]mergedRecord, bool) {
	var out []mergedRecord
	hasMore := false
	for _, p := range pages {
		if p.page == nil {
			continue
		}
		hasMore = hasMore || p.page.HasMore
		for _, rec := range p.page.Records {
			if rec.Fields == nil {
				rec.Fields = map[string]interface{}{}
			}
			out = append(out, mergedRecord{entity: p.entity, record: rec})
		}
	}
	if len(pages) > 1 {
		sort.SliceStable(out, func(i, j int) bool {
			return sortPlan.Less(out[i].record.SortValues, out[j].record.SortValues)
		})
	}
	if len(out) > limit {
		out = out[:limit]
		hasMore = true
	}
	return out, hasMore
}

func (e *Engine) storageFailure(ctx context.Context, caller Caller, entity EntityType, err error) error {
	e.log(ctx).WithError(err).WithFields(map[string]interface{}{
		"organization_id": caller.OrganizationID,
		"entity_type":     string(entity),
	}).Error("search failed")
	return storageError(err)
}

func (e *Engine) dispatchEvent(ctx context.Context, event SearchEvent) {
	if e.events == nil {
		return
	}
	sink := e.events
	async.SafeGo(context.WithoutCancel(ctx), e.eventTimeout, "search analytics", func(ctx context.Context) error {
		return sink.RecordSearch(ctx, event)
	})
}

func (e *Engine) log(ctx context.Context) *observability.Logger {
	if e.logger != nil {
		return e.logger
	}
	return observability.FromContext(ctx)
}

func resultCount(r *Result) int {
	if r == nil {
		return 0
	}
	return len(r.Results)
}
