// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between components and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// SubscriberWrite caps a single event write to a stream subscriber before
// the subscriber is considered failed.
const SubscriberWrite = 10 * time.Second

// StoreQuery caps a single read against the election store during session
// startup.
const StoreQuery = 5 * time.Second
