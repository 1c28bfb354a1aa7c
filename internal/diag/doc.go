// Package diag defines the diagnostic model shared by all lowering phases.
//
// # Purpose
//
//   - Provide deterministic data structures for findings produced while
//     lowering source types into target classes.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error (severity.go).
//   - Code: compact numeric identifier with a stable "LOW1001" form (codes.go).
//   - Message: short human oriented text.
//   - Subject: the source type and optional member the finding is about.
//   - Notes: optional secondary subjects with extra context.
//
// # Emitting diagnostics
//
// Phases report through a diag.Reporter. ReportError / ReportWarning return a
// ReportBuilder that collects notes before Emit. BagReporter aggregates into a
// Bag, which supports sorting and deduplication. DedupReporter drops repeats of
// the same code, subject and message.
//
// Package diag performs no IO. Rendering for the terminal lives in cmd/dexlower.
package diag
