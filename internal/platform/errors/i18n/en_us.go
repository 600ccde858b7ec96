package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown                     = "UNKNOWN"
	CodeInvalidRequest              = "INVALID_REQUEST"
	CodeSimulationInvalidYear       = "SIMULATION_INVALID_YEAR"
	CodeSimulationInvalidSpeed      = "SIMULATION_INVALID_SPEED"
	CodeSimulationNotFound          = "SIMULATION_NOT_FOUND"
	CodeSimulationInvalidTransition = "SIMULATION_INVALID_STATUS_TRANSITION"
	CodeElectionNoData              = "ELECTION_NO_DATA_FOR_YEAR"
	CodeElectionInvalidRecord       = "ELECTION_INVALID_RECORD"
	CodeViewerGrantInvalid          = "VIEWER_GRANT_INVALID"
	CodeViewerGrantExpired          = "VIEWER_GRANT_EXPIRED"
	CodeViewerGrantMismatch         = "VIEWER_GRANT_MISMATCH"
	CodeStreamSlowConsumer          = "STREAM_SLOW_CONSUMER"
	CodeNotFound                    = "NOT_FOUND"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeUnknown:        "An internal error occurred",
		CodeInvalidRequest: "The request body is invalid",

		// Simulation errors
		CodeSimulationInvalidYear:       "No election data is available for year {{.Year}}",
		CodeSimulationInvalidSpeed:      "Speed {{.Speed}} is out of range; it must be greater than 0 and at most 10",
		CodeSimulationNotFound:          "Simulation session was not found",
		CodeSimulationInvalidTransition: "Cannot move simulation from {{.FromStatus}} to {{.ToStatus}}",

		// Election dataset errors
		CodeElectionNoData:        "No election data is available for year {{.Year}}",
		CodeElectionInvalidRecord: "Dataset record is invalid: {{.Reason}}",

		// Viewer grant errors
		CodeViewerGrantInvalid:  "Viewer grant is invalid",
		CodeViewerGrantExpired:  "Viewer grant has expired",
		CodeViewerGrantMismatch: "Viewer grant {{.Field}} does not match",

		// Stream errors
		CodeStreamSlowConsumer: "Connection cannot keep up with the event stream",

		// Storage errors
		CodeNotFound: "The requested resource was not found",
	},
}
