// Package job runs background tasks on River, backed by the service's
// PostgreSQL pool.
//
// Tasks are plain structs discovered by method set. A task with
// Name() and Handle(ctx, P) is enqueued with a JSON payload of type P; a
// task with Name(), Schedule() and Handle(ctx) runs on a five-field cron
// expression:
//
//	m, err := job.NewManager(pool,
//		job.WithTask[dispatch.Request](dispatch.NewSendTask(pipeline)),
//		job.WithScheduledTask(dispatch.NewSweepTask(pipeline)),
//		job.WithLogger(log),
//	)
//
//	err = m.Enqueue(ctx, "dispatch_send", payload, job.UniqueKey(sendID))
//
// Every task shares one River job kind; the registered name selects the
// handler at execution time.
package job
