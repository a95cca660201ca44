// Package llm is a thin client for generative text services. It phrases
// messages only; callers never let it decide content or control flow.
// OpenAI and Anthropic are supported, behind rate limiting, a response cache
// and retries.
package llm
