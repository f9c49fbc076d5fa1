// Package async runs background work without letting a panic take the
// process down.
//
// Every runs a periodic task until its context ends:
//
//	async.Every(ctx, logger, 15*time.Second, "db stats", func(ctx context.Context) {
//		metrics.UpdateDBStats(db.Stats())
//	})
//
// Run calls a function in place and turns a panic into an error. Panics are
// logged through observability.LogPanic with a stack trace.
package async
