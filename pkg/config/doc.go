// Package config loads the service configuration: YAML file, SOLASTA_*
// environment overrides, struct-tag validation, and optional hot reload of
// the file. Defaults are usable without any file at all.
package config
