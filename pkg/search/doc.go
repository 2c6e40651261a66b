// Package search provides structured, multi-tenant search over CMS content:
// posts, media, users and taxonomies.
//
// # Overview
//
// A request names an entity type (or "all"), filter groups, sorts, a
// projection, a page size and an optional cursor. The Engine validates the
// request shape, authorizes it against the caller's scopes, resolves every
// property path, compiles filters into a store-neutral predicate tree and
// hands one Query per entity type to an Executor. The store returns a page
// of records and the engine encodes the next cursor.
//
// # Property Paths
//
// Standard columns use their camelCase name. Per-organization data lives in
// three address spaces:
//
//	customFields.<slug>
//	taxonomies.<slug>
//	taxonomies.<slug>.<term>
//	relationships.<type>.<field>
//
// # Filters
//
// Filters in a group combine with the group operator (AND or OR); groups
// always combine with AND. Negated operators match rows that have no value.
//
// # Usage Example
//
//	engine := search.NewEngine(sqlstore.NewExecutors(db, sqlstore.Postgres),
//		search.WithSchemaLoader(schemas),
//		search.WithCursorSecret(secret),
//	)
//
//	result, err := engine.Search(ctx, caller, search.RawRequest{
//		EntityType: "posts",
//		FilterGroups: []search.RawFilterGroup{{
//			Filters: []search.RawFilter{{Property: "status", Operator: "eq", Value: json.RawMessage(`"published"`)}},
//		}},
//		Limit: 20,
//	})
//
// Every failure is a *Error with a stable code; storage failures are logged
// and surfaced only as STORAGE_ERROR.
//
// # Related Packages
//
//   - pkg/storage/sqlstore: Executors and schema loader for PostgreSQL and SQLite
//   - pkg/search/schemacache: Cached schema loading
//   - pkg/api: HTTP surface
package search
