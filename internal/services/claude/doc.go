// Package claude wraps the Anthropic Messages API. The client is stateless
// and safe for concurrent use; rate limits and timeouts are retried with
// exponential backoff and surface as a distinct error category so callers can
// degrade to deterministic-only behavior.
package claude
