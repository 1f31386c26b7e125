// Package stores persists sync run history in an embedded SQLite
// database. The store records one row per run with its mode, status and
// outcome counters; it is not a work queue and holds no pending tasks.
package stores
