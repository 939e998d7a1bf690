// Package cache stores natural-language analyzer responses on disk so that a
// re-run over the same (already redacted) diff does not call the provider
// again.
//
// Entries are keyed by a SHA-256 hash of provider, model and the full prompt
// text, and hold the raw model response together with its creation time.
// Expired entries are treated as misses and removed on read. A nil or
// disabled *Cache is valid and never hits.
//
// The default directory is $XDG_CACHE_HOME/aicr (or the OS equivalent).
package cache
