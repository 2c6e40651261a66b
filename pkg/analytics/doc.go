// Package analytics records completed searches and reports on them.
//
// SearchTracker is the engine's event sink. The engine dispatches one event
// per successful search off the request path, and tracker failures are
// logged by the engine rather than returned to the caller:
//
//	tracker := analytics.NewSearchTracker(db, sqlstore.Postgres)
//	engine := search.NewEngine(executors, search.WithEventSink(tracker))
//
// Service aggregates the recorded events of one organization: totals, zero
// result rate, average latency, top queries and zero result queries.
//
//	report, err := analytics.NewService(db, sqlstore.Postgres).GetReport(ctx, orgID, since, 10)
//
// Query texts are lower-cased and whitespace-collapsed before storage so
// equivalent searches aggregate together.
package analytics
