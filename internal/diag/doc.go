// Package diag defines the diagnostic model shared by every producer and
// consumer in the Crest tooling bridge.
//
// # Purpose
//
//   - Provide deterministic, serialisable data structures that capture findings
//     harvested from the crestc compiler, the clangd analyzer and the built-in
//     heuristic lint pass.
//   - Offer a light-weight container (Bag) that enforces the max-problems cap
//     and supports the merge/dedup/sort steps the publisher relies on.
//
// # Scope
//
// Package diag does not perform any formatting, IO, or protocol integration.
// Rendering lives in internal/diagfmt; LSP publishing lives in internal/lsp.
//
// # Data model
//
// Diagnostic is the central record. Positions are 0-based internally; the
// producers that parse compiler output convert from the 1-based textual form
// at the parsing boundary. Origin tags which producer emitted the record and
// participates in the dedup identity on purpose: the same finding reported by
// two different sources stays visible twice, which is what lets a user tell
// crestc and clangd apart in the editor.
//
// Keep the data model deterministic: diagnostics are compared and deduplicated
// by value, so any new field must be comparable and side-effect free.
package diag
