// Package sqlite provides SQLite-backed election dataset persistence.
//
// It is the default on-disk store used by the simulation service and the
// importer that loads historical vote data.
package sqlite
