// Package output renders review reports for terminals, files and CI.
//
// Supported formats:
//   - text: severity-colored table (default)
//   - json: the full report including the derived summary
//   - markdown: the document posted to PRs and job summaries
//   - pretty: the markdown document rendered for the terminal
//   - sarif: SARIF v2.1.0 for code-scanning upload
//
// Use [GetWriter] to obtain a [Writer] for a format, or [WriteReport] to pick
// the destination as well. [WriteJobSummary] appends the markdown rendering
// to a GitHub Actions step summary file.
package output
