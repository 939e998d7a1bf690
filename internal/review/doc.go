// Package review holds the normalized finding model and the Reviewer that
// turns diff text into a Report.
//
// A Finding carries a closed Category, an ordered Severity (low < medium <
// high), an optional Location and the name of the analyzer that produced it.
// A Report's summary is never stored: Summary and MarshalJSON derive it from
// the findings on every call.
//
// Reviewer parses the diff, resolves changed files against the repository
// root, and runs every registered analyzer, concurrently by default. Results
// are merged in registration order, file analyzers first, without
// deduplication. A malformed diff is the only error Review returns.
package review
