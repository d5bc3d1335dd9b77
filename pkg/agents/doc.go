// Package agents provides the model-backed implementations of the four
// engine roles: planner, executor, evaluator, and replanner. Each agent
// talks to the generation gateway, degrades to a deterministic behavior
// when no model is reachable, and never lets a model response violate the
// engine's plan invariants.
package agents
