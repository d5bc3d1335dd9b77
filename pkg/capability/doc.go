// Package capability provides the capability gateway: a registry of
// invokable actions plan steps can name, with CUE parameter validation,
// a hard invocation timeout, and normalization of every failure into a
// structured Fault the replanner can reason about.
//
// Capabilities come in two flavors. Built-in capabilities are plain Go
// implementations registered through RegisterBuiltins. ScriptedCapability
// wraps a Starlark script, letting deployments add capabilities without
// recompiling.
package capability
