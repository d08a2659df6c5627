// Package issue is the non-fatal diagnostic channel for application-logic
// errors detected by the runtime.
//
// Sending an action to a child whose state is gone, popping a stack element
// that does not exist, or letting an effect fail without a handler are bugs
// in the application, not in the runtime. They never crash the process. The
// runtime describes the problem as an Issue and hands it to a Reporter:
//
//   - LogReporter (production): logs a warning through log/slog and the
//     offending operation becomes a no-op.
//   - Collector: records issues so callers can inspect them.
//   - ForTest: fails the running test through testing.TB.
package issue
