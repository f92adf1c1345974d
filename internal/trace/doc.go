// Package trace records what the lowering driver does.
//
// Spans mark pass and routine boundaries and nest through the context they
// are started from; points mark single events such as a self-check mismatch.
// Output is human-readable text or newline-delimited JSON.
//
//	lowir check --trace=- --trace-level=detail types.toml
//
// A Ring keeps the most recent events in memory so a failed run can dump
// what led up to the failure even when nothing was streamed.
//
// Levels: off < error < phase < detail < debug. The level decides which
// scopes are emitted (see Level.ShouldEmit).
package trace
