// Package shutdown coordinates process termination and reload signals.
//
//   - SIGINT and SIGTERM end Wait and run the registered hooks
//   - SIGHUP is delivered on the channel returned by Reloads
//   - hooks run in reverse registration order under one timeout
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Shutdown(ctx) })
//	err := h.Wait(ctx)
package shutdown
