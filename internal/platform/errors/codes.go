// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidRequest represents a malformed API request.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Simulation errors
	CodeSimulationInvalidYear       Code = "SIMULATION_INVALID_YEAR"
	CodeSimulationInvalidSpeed      Code = "SIMULATION_INVALID_SPEED"
	CodeSimulationNotFound          Code = "SIMULATION_NOT_FOUND"
	CodeSimulationInvalidTransition Code = "SIMULATION_INVALID_STATUS_TRANSITION"

	// Election dataset errors
	CodeElectionNoData        Code = "ELECTION_NO_DATA_FOR_YEAR"
	CodeElectionInvalidRecord Code = "ELECTION_INVALID_RECORD"

	// Viewer grant errors
	CodeViewerGrantInvalid  Code = "VIEWER_GRANT_INVALID"
	CodeViewerGrantExpired  Code = "VIEWER_GRANT_EXPIRED"
	CodeViewerGrantMismatch Code = "VIEWER_GRANT_MISMATCH"

	// Stream errors
	CodeStreamSlowConsumer Code = "STREAM_SLOW_CONSUMER"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes for the control API.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeInvalidRequest,
		CodeSimulationInvalidYear,
		CodeSimulationInvalidSpeed,
		CodeElectionInvalidRecord:
		return http.StatusBadRequest

	// Conflict - state doesn't allow the operation
	case CodeSimulationInvalidTransition:
		return http.StatusConflict

	// Not found - resource doesn't exist
	case CodeSimulationNotFound,
		CodeElectionNoData,
		CodeNotFound:
		return http.StatusNotFound

	// Unauthorized - missing or unusable credentials
	case CodeViewerGrantInvalid,
		CodeViewerGrantExpired,
		CodeViewerGrantMismatch:
		return http.StatusUnauthorized

	// Too many requests - receiver cannot keep up
	case CodeStreamSlowConsumer:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
