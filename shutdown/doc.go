// Package shutdown closes a matchkit process in phases.
//
// Components register a close function with a phase. Lower phases run
// first, and every handler of one phase runs concurrently:
//
//	coord := shutdown.New(10*time.Second, logger)
//	coord.Register("tracer", shutdown.PhaseTelemetry, provider.Shutdown)
//	coord.RegisterCloser("store", shutdown.PhaseStorage, svc)
//
//	ctx, stop := coord.NotifyContext(context.Background())
//	defer stop()
//	...
//	err := coord.Shutdown(context.Background())
//
// Shutdown runs once. Later calls return the first result.
package shutdown
