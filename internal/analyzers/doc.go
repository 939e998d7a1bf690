// Package analyzers adapts external static-analysis tools and a language
// model into review.FileAnalyzer and review.DiffAnalyzer implementations.
//
// Each tool runner filters the changed files by extension, invokes the tool
// through an injectable [Exec] under a per-invocation timeout, and maps the
// tool's JSON output onto review.Finding using a fixed vocabulary table.
// RunFiles reports a missing binary, timeout, fatal exit status or
// unparseable output as an error, which the reviewer records as a failed
// analyzer. AnalyzeFiles logs the same error and yields an empty result.
//
// [LLM] sends the redacted, truncated diff to a providers.Reviewer and parses
// the model's JSON answer. It is skipped when no credential is configured.
package analyzers
