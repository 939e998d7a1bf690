// Package gitctx collects diff text for review: from a file or stdin, or by
// shelling out to git for staged, unstaged and revision-range diffs.
//
// Every git call runs with `git -C <dir>` under the caller's context.
// Diff sections whose paths match exclude globs are dropped before the text
// reaches the parser.
package gitctx
