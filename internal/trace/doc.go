// Package trace records the progress of a lowering run as spans and points.
//
// Tracing is off by default; the nop tracer costs one interface call. The CLI
// enables it with
//
//	dexlower lower --trace=- --trace-level=detail model.toml
//
// # Levels and scopes
//
// Every event carries a Scope. The tracer level decides which scopes pass:
//
//   - LevelPhase: driver and phase boundaries (create, implement, ...)
//   - LevelDetail: adds one span per source type per phase
//   - LevelDebug: adds member level points (synthesized methods, factories)
//
// LevelError keeps nothing in the stream; pair it with the ring mode to dump
// the last events after a crash.
//
// # Sinks
//
// StreamTracer writes text, ndjson or chrome trace json as events arrive;
// RingTracer keeps the last N events; MultiTracer fans out to both.
//
// # Context
//
//	ctx = trace.WithTracer(ctx, tr)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "implement", 0)
//	defer sp.End("")
package trace
