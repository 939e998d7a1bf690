// Package redact removes secrets from diff text before it is sent to a
// language-model provider or written to the response cache.
//
// Detection uses named regex heuristics for common secret shapes: API keys,
// JWTs, private key blocks, AWS credentials, bearer tokens and
// provider-specific tokens. Files whose paths match configured glob patterns
// are dropped from the diff body entirely.
package redact
