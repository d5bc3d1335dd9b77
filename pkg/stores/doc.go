// Package stores provides the persistence layer for the orchestration
// engine. It includes SQLite-based storage with WAL mode, embedded schema
// migrations, and the durable records the engine writes through: goals,
// versioned plans, the generation audit trail, and run memory.
package stores
