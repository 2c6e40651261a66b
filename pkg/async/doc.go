// Package async runs fire-and-forget background work.
//
// SafeGo detaches a task from the request goroutine with a timeout, panic
// recovery and error logging through the context logger:
//
//	async.SafeGo(context.WithoutCancel(ctx), 5*time.Second, "schema cache fill", func(ctx context.Context) error {
//		return cache.store(ctx, orgID, schema)
//	})
//
// The search engine uses it to hand search events to the analytics sink and
// the schema cache uses it to write loaded schemas back to Redis.
package async
