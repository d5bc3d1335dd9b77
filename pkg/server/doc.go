// Package server exposes the HTTP surface of the orchestration service:
// goal submission and inspection under /api/goals, a per-goal server-sent
// event stream, the capability listing, and the /healthz and /metrics
// operational endpoints. Submission is asynchronous; a 202 acknowledges the
// goal and progress is observed through the store or the event stream.
package server
