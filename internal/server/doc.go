// Package server runs the HTTP server with signal-driven graceful shutdown.
//
// Startup hooks run before the listener accepts requests; a failing hook
// aborts the start. On SIGINT or SIGTERM the server stops accepting
// requests, drains in-flight ones, then runs shutdown hooks in
// registration order, all bounded by the shutdown timeout.
//
//	err := server.Run(ctx, handler,
//	    server.WithAddress(":8080"),
//	    server.WithLogger(log),
//	    server.WithStartupHook(jobs.Start),
//	    server.WithShutdownHook(jobs.Stop),
//	)
package server
