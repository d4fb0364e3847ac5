// Package completion issues single request/response exchanges to language
// model services.
//
// # Backends
//
// OpenAIBackend (Responses API), OpenRouterBackend (chat completions),
// GeminiBackend (genai SDK) and OllamaBackend (local /api/chat) each
// implement Backend. Client picks one by the resolved alias's backend family.
//
// # Cache annotation
//
// When CacheOptions.Retention is positive, the client derives a CacheKey
// from the stage, prompt version and user content and passes it to the
// backend as an advisory hint. Nothing is cached locally.
//
// # Retry Behaviour
//
// HTTP 408/429/5xx, per-attempt timeouts and empty responses are retried
// with exponential backoff (base 1s, doubling, capped at 10s, 3 attempts by
// default), honoring Retry-After. Other 4xx responses, refusals and caller
// cancellation fail immediately. Every failure is a *CompletionError.
package completion
