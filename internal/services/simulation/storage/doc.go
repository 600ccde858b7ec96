// Package storage defines persistence contracts for election datasets.
//
// These interfaces exist so the replay engine and the importer can depend on
// stable dataset semantics without coupling to SQLite schema details.
package storage
