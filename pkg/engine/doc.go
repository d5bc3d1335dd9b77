// Package engine implements the goal orchestration core: the goal, plan,
// and step lifecycle state machine, the DAG readiness computation, and the
// retry-and-replan control loop.
//
// # Workflow
//
// A goal moves through a fixed lifecycle:
//
//	received -> planning -> executing -> completed | failed
//
// While executing, the engine repeatedly computes the ready set (pending
// steps whose dependencies are all completed or skipped), dispatches every
// ready step, evaluates each result, and applies the retry policy. A step
// that exhausts its retry ceiling triggers replanning: the current plan is
// deactivated and a new, strictly higher plan version takes over. Prior
// versions are retained unchanged for audit.
//
// # Core Domain Types
//
//   - Goal: a user-submitted objective and its lifecycle status
//   - Plan: a versioned, immutable-once-superseded DAG of steps
//   - Step: one DAG node; the unit of execution, evaluation, and retry
//   - Evaluation: a verdict on one step attempt
//   - AgentLog: the append-only audit record of every generation call
//   - StreamEvent: an ephemeral progress notification for live listeners
//
// # Ports
//
// The engine depends only on interfaces: the four agent roles (Planner,
// Executor, Evaluator, Replanner), the persistence Store, the
// EventPublisher, and optional MemoryManager and PolicyGate ports.
// Everything is explicitly constructed and injected; there is no ambient
// global state.
//
// # Error Classification
//
// Errors are classified for retry logic:
//
//   - Transient: temporary failures that may succeed on retry
//   - Throttled: rate limiting that requires backoff
//   - Conflict: state conflicts requiring retry
//   - Permanent: non-recoverable errors
//
// Use the helper functions to classify and inspect errors:
//
//	if engine.IsRetryable(err) {
//	    // Retry the operation
//	}
//
// # Termination
//
// Two ceilings guarantee every goal run terminates: the per-step retry
// ceiling (default 3) and the plan-iteration ceiling (default 5). When the
// adaptive replanner is unavailable, a simple-retry fallback applies the
// retry ceiling alone.
package engine
