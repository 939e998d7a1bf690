// Package diff parses unified diff text into per-file change records.
//
// [Parse] accepts the output of `git diff`, `git format-patch`, GitHub's
// `application/vnd.github.v3.diff` media type, and plain `diff -u` output.
// Each [ChangedFile] carries its added and removed lines (with target-side and
// source-side numbering respectively) and the verbatim hunk headers. Context
// lines are consumed but not retained.
//
// The only fatal condition is text that contains no recognizable file section
// at all, reported as a [*MalformedDiffError]. Truncated hunks, stray hunk
// headers, and binary-file markers degrade to partial or empty records.
//
// [TruncateForPrompt] bounds diff text for natural-language analyzers by
// keeping its head and tail.
package diff
