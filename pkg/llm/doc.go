// Package llm provides the generation gateway: a single entry point for all
// model calls made by the agent roles.
//
// The gateway walks an ordered provider chain (openai, googleai, ollama via
// langchaingo). Rate-limit errors are retried in place with linear backoff;
// any other failure falls through to the next provider. Every call is capped
// by a hard timeout and recorded in the append-only agent log, including
// failed attempts.
//
// GenerateStructured layers JSON handling on top: responses are stripped of
// markdown fences and surrounding prose, and a response that still does not
// parse is sent back to the model with the parse error as feedback, up to a
// bounded number of repair attempts.
package llm
