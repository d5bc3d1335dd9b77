// Package memory records finished goal runs and recalls them as planning
// context for similar future goals. Recall is keyword overlap against the
// goal text, delegated to the store.
package memory
