// Package providers implements the Reviewer interface for each supported LLM
// provider: OpenAI and Anthropic over their HTTP APIs, and Gemini through the
// google.golang.org/genai SDK.
//
// Providers never read the environment themselves. Credentials, model and
// endpoint arrive through [Settings], so callers decide where secrets come
// from and tests can point a provider at an httptest server.
//
// Rate-limit and 5xx responses are retried with exponential back-off up to
// Settings.MaxRetries times (zero disables retries). Authentication failures
// are never retried and can be detected with [IsAuthError].
package providers
