// Package policy gates plan admission with Open Policy Agent rules. Built-in
// policies bound plan size, restrict capabilities to a configured allowlist,
// and cap per-step retry ceilings; operators can add .rego or .json policy
// files and have them hot-reloaded on change.
//
// A policy's deny rule yields structured violations. Violations of error or
// critical severity deny the plan, which the orchestration engine surfaces
// as a plan rejection; warnings and informational findings are reported but
// do not block.
package policy
