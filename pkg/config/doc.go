// Package config loads and validates the sync engine settings.
//
// Settings come from three layers, later layers overriding earlier ones:
// built-in defaults, an optional YAML file, and environment variables
// (including a best-effort .env file for local development). The loaded
// struct is validated with go-playground/validator before use.
//
// The resource-group tag filter specification is JSON-encoded in a single
// variable; malformed or wrongly-typed filter input deliberately degrades
// to "no filters" with a logged warning instead of failing the run.
package config
